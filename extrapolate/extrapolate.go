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

// Package extrapolate imputes a single scalar summary for a full set
// of partitions from a sparse set of observed per-(pseudo-)partition
// samples, using linear endpoint extrapolation: the lowest- and
// highest-valued samples are projected out to the full partition
// count.
package extrapolate

import (
	"math/bits"

	"golang.org/x/exp/slices"
)

// ObservedStats is the per-(pseudo-)partition sample the extrapolator
// imputes from. It deliberately mirrors only the scalar fields the
// string-column variant needs (avg/max length, distinct-value count);
// other column-type variants would extrapolate a different field set
// from an analogous struct.
type ObservedStats struct {
	AvgColLen float64
	MaxColLen uint64
	NumDVs    uint64
	NumNulls  uint64
}

// Result is the imputed summary for the full requested partition set.
type Result struct {
	AvgColLen float64
	MaxColLen uint64
	NumDVs    uint64
	NumNulls  uint64
}

// Extrapolate imputes a single Result describing numParts partitions
// from the observed samples in adjustedStats, keyed by the same
// pseudo-partition names used in adjustedIndex (each pseudo-partition's
// canonical index, or the mean of a run of indices it groups).
//
// densityAvg is accepted for parity with the other (out-of-scope)
// column-type extrapolators, which use it; the string-column variant
// does not.
func Extrapolate(numParts, numPartsWithStats int, adjustedIndex map[string]float64, adjustedStats map[string]ObservedStats, densityAvg float64) Result {
	_ = densityAvg // unused by the string-column variant; kept for signature parity

	rightBorder := float64(numParts)

	avgSamples := make([]fieldSample, 0, len(adjustedStats))
	maxSamples := make([]fieldSample, 0, len(adjustedStats)) // sort key: MaxColLen, value: AvgColLen (source quirk, see below)
	dvSamples := make([]fieldSample, 0, len(adjustedStats))
	var nullSum uint64

	for name, stats := range adjustedStats {
		idx := adjustedIndex[name]
		avgSamples = append(avgSamples, fieldSample{index: idx, sortKey: stats.AvgColLen, value: stats.AvgColLen})
		// Known source quirk, preserved verbatim: the sort key for
		// the max-length extrapolation is MaxColLen, but the
		// endpoint values taken from the extreme samples are each
		// sample's AvgColLen, not its MaxColLen.
		maxSamples = append(maxSamples, fieldSample{index: idx, sortKey: float64(stats.MaxColLen), value: stats.AvgColLen})
		dvSamples = append(dvSamples, fieldSample{index: idx, sortKey: float64(stats.NumDVs), value: float64(stats.NumDVs)})
		nullSum += stats.NumNulls
	}

	var out Result
	out.AvgColLen = extrapolateField(avgSamples, rightBorder)
	out.MaxColLen = uint64(extrapolateField(maxSamples, rightBorder))
	out.NumDVs = uint64(extrapolateField(dvSamples, rightBorder))
	if numPartsWithStats > 0 {
		out.NumNulls = scaleNulls(nullSum, numParts, numPartsWithStats)
	}
	return out
}

// scaleNulls computes sum*numParts/numPartsWithStats (multiply before
// divide, as the source does) using a 128-bit intermediate so that a
// large null-count sum times a large partition count cannot silently
// wrap around a 64-bit product before the division brings it back
// into range.
func scaleNulls(sum uint64, numParts, numPartsWithStats int) uint64 {
	hi, lo := bits.Mul64(sum, uint64(numParts))
	q, _ := bits.Div64(hi, lo, uint64(numPartsWithStats))
	return q
}

// fieldSample is one observed (index, value) pair for a single
// scalar field, plus the key that field is sorted by (equal to value
// for every field except MaxColLen; see the source quirk above).
type fieldSample struct {
	index   float64
	sortKey float64
	value   float64
}

// extrapolateField performs the linear endpoint extrapolation
// described by the aggregator: sort the observed samples by sortKey,
// take the lowest- and highest-keyed samples' values as the two
// endpoints of a line, and project that line out to rightBorder using
// each endpoint's canonical index as its position on the line.
func extrapolateField(samples []fieldSample, rightBorder float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := slices.Clone(samples)
	slices.SortFunc(sorted, func(a, b fieldSample) bool {
		return a.sortKey < b.sortKey
	})

	lo := sorted[0]
	hi := sorted[len(sorted)-1]
	minInd, maxInd := lo.index, hi.index
	loVal, hiVal := lo.value, hi.value

	switch {
	case minInd == maxInd:
		return loVal
	case minInd < maxInd:
		return loVal + (hiVal-loVal)*(rightBorder-minInd)/(maxInd-minInd)
	default: // minInd > maxInd
		return loVal + (hiVal-loVal)*minInd/(minInd-maxInd)
	}
}
