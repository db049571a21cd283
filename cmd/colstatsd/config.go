// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"os"

	"sigs.k8s.io/yaml"
)

// config holds the defaults colstatsd applies when no matching flag
// is given on the command line. It is optional: colstatsd runs fine
// with none of these set.
type config struct {
	// LogVerbose turns on per-pseudo-partition diagnostics; off by
	// default to keep routine invocations quiet.
	LogVerbose bool `json:"logVerbose"`
	// Encoding selects the default output encoding ("json" or "ion").
	Encoding string `json:"encoding"`
}

func defaultConfig() config {
	return config{Encoding: "json"}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
