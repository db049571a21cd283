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

// Package colstats implements the per-column statistics aggregator:
// it merges per-partition StringColSummary records collected
// independently on many partitions of a logical table into a single
// summary describing a requested partition set as a whole.
package colstats

import "fmt"

// PartitionName identifies a partition of a logical table. It must be
// non-empty and unique within a single aggregation request.
type PartitionName string

// StringColSummary is the per-column statistics summary for a
// string-valued column, either as collected on a single partition or
// as the merged/extrapolated result of an aggregation.
type StringColSummary struct {
	// MaxColLen is the length in bytes of the longest observed value.
	MaxColLen uint64
	// AvgColLen is the mean length in bytes over non-null values.
	AvgColLen float64
	// NumNulls is the number of null values observed.
	NumNulls uint64
	// NumDVs is the best-known distinct-value count.
	NumDVs uint64
	// Bitvectors is the serialized NDV sketch for this summary, or
	// nil/empty if no sketch was collected for this partition.
	Bitvectors []byte
}

// hasSketch reports whether s carries a usable NDV sketch.
func (s StringColSummary) hasSketch() bool {
	return len(s.Bitvectors) > 0
}

// PerPartitionInput pairs a partition name with the column summary
// collected on that partition. A partition may appear at most once in
// a given AggregationRequest.
type PerPartitionInput struct {
	Partition PartitionName
	Summary   StringColSummary
}

// AggregationRequest is the input to Aggregate: the column being
// summarized, the ordered set of partitions the caller cares about
// (the canonical order), and whatever per-partition inputs are
// available (a subset of RequestedPartitions, each named at most
// once).
type AggregationRequest struct {
	ColumnName          string
	RequestedPartitions []PartitionName
	Inputs              []PerPartitionInput
}

// ColumnType tags the variant of OutputStatsObj.Data. Only String is
// implemented by this package; the others exist so that OutputStatsObj
// can describe the shape other type-specific aggregators (out of
// scope here) would return.
type ColumnType int

const (
	ColumnTypeUnknown ColumnType = iota
	ColumnTypeString
	ColumnTypeLong
	ColumnTypeDouble
	ColumnTypeDecimal
	ColumnTypeDate
	ColumnTypeBinary
	ColumnTypeBoolean
)

func (c ColumnType) String() string {
	switch c {
	case ColumnTypeString:
		return "string"
	case ColumnTypeLong:
		return "long"
	case ColumnTypeDouble:
		return "double"
	case ColumnTypeDecimal:
		return "decimal"
	case ColumnTypeDate:
		return "date"
	case ColumnTypeBinary:
		return "binary"
	case ColumnTypeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// OutputStatsObj is the result of Aggregate.
type OutputStatsObj struct {
	ColumnName string
	ColumnType ColumnType
	Data       StringColSummary
}

// MalformedInput is returned by Aggregate when the request cannot be
// processed: it has no inputs, a requested or input partition name is
// empty or repeated, an input references a partition that wasn't
// requested, or its sketch bytes fail to deserialize. It is the only
// error kind Aggregate raises.
type MalformedInput struct {
	Reason string
	Err    error
}

func (e *MalformedInput) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("colstats: malformed input: %s: %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("colstats: malformed input: %s", e.Reason)
}

func (e *MalformedInput) Unwrap() error { return e.Err }

func malformed(reason string, err error) error {
	return &MalformedInput{Reason: reason, Err: err}
}
