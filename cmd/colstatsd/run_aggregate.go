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
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/rmartin-rp/colstats"
)

// runAggregate implements the "aggregate" sub-command: it reads a
// JSON-encoded colstats.AggregationRequest from a file (or stdin, for
// "-" or when -in is omitted), runs colstats.Aggregate, and writes the
// resulting OutputStatsObj to stdout either as JSON (the default) or
// as the ion wire encoding OutputStatsObj.Marshal produces.
func runAggregate(args []string) {
	cmd := flag.NewFlagSet("aggregate", flag.ExitOnError)
	configPath := cmd.String("config", "", "optional YAML config file")
	inPath := cmd.String("in", "-", "path to a JSON AggregationRequest, or - for stdin")
	encoding := cmd.String("encoding", "", "output encoding: json or ion (default: from config, else json)")
	if cmd.Parse(args) != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "colstatsd: loading config: %s\n", err)
		os.Exit(1)
	}
	if *encoding != "" {
		cfg.Encoding = *encoding
	}

	requestID := uuid.New()
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", requestID), log.LstdFlags)
	if cfg.LogVerbose {
		colstats.SetLogger(logger)
	} else {
		colstats.SetLogger(log.New(io.Discard, "", 0))
	}

	req, err := readRequest(*inPath)
	if err != nil {
		logger.Printf("reading request: %s", err)
		os.Exit(1)
	}

	out, err := colstats.Aggregate(req)
	if err != nil {
		logger.Printf("aggregate failed: %s", err)
		os.Exit(1)
	}

	if err := writeResult(os.Stdout, out, cfg.Encoding); err != nil {
		logger.Printf("writing result: %s", err)
		os.Exit(1)
	}
}

func readRequest(path string) (colstats.AggregationRequest, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return colstats.AggregationRequest{}, err
		}
		defer f.Close()
		r = f
	}
	var req colstats.AggregationRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return colstats.AggregationRequest{}, fmt.Errorf("decoding request: %w", err)
	}
	return req, nil
}

func writeResult(w io.Writer, out colstats.OutputStatsObj, encoding string) error {
	switch encoding {
	case "ion":
		_, err := w.Write(out.Marshal())
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}
