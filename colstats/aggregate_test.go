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

package colstats

import (
	"errors"
	"testing"

	"github.com/rmartin-rp/colstats/extrapolate"
	"github.com/rmartin-rp/colstats/ndv"
)

func sketchBytes(t *testing.T, registers ...byte) []byte {
	t.Helper()
	e, err := ndv.FromSerialized(registers)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	return e.Serialize()
}

func TestS1AllPartitionsNoSketches(t *testing.T) {
	req := AggregationRequest{
		ColumnName:          "c",
		RequestedPartitions: []PartitionName{"p0", "p1"},
		Inputs: []PerPartitionInput{
			{Partition: "p0", Summary: StringColSummary{MaxColLen: 10, AvgColLen: 5.0, NumNulls: 3, NumDVs: 7}},
			{Partition: "p1", Summary: StringColSummary{MaxColLen: 20, AvgColLen: 4.0, NumNulls: 2, NumDVs: 4}},
		},
	}
	out, err := Aggregate(req)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := StringColSummary{MaxColLen: 20, AvgColLen: 5.0, NumNulls: 5, NumDVs: 7}
	assertSummary(t, out.Data, want)
}

func TestS2AllPresentCompatibleSketches(t *testing.T) {
	// two 16-register sketches; the merged estimate is computed
	// independently below via the same ndv package Aggregate uses, so
	// this only checks that Aggregate's num_dvs equals that merge.
	a := make([]byte, 16)
	b := make([]byte, 16)
	for i := 0; i < 11; i++ {
		a[i] = 1
	}
	req := AggregationRequest{
		ColumnName:          "c",
		RequestedPartitions: []PartitionName{"p0", "p1"},
		Inputs: []PerPartitionInput{
			{Partition: "p0", Summary: StringColSummary{MaxColLen: 10, AvgColLen: 5.0, NumNulls: 3, NumDVs: 7, Bitvectors: a}},
			{Partition: "p1", Summary: StringColSummary{MaxColLen: 20, AvgColLen: 4.0, NumNulls: 2, NumDVs: 4, Bitvectors: b}},
		},
	}
	out, err := Aggregate(req)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Data.MaxColLen != 20 || out.Data.AvgColLen != 5.0 || out.Data.NumNulls != 5 {
		t.Fatalf("non-NDV fields wrong: %+v", out.Data)
	}
	merged, _ := ndv.FromSerialized(a)
	other, _ := ndv.FromSerialized(b)
	merged.Merge(other)
	if out.Data.NumDVs != merged.Estimate() {
		t.Fatalf("NumDVs = %d, want merged estimate %d", out.Data.NumDVs, merged.Estimate())
	}
}

func TestS3SparseNoSketches(t *testing.T) {
	req := AggregationRequest{
		ColumnName:          "c",
		RequestedPartitions: []PartitionName{"p0", "p1", "p2", "p3"},
		Inputs: []PerPartitionInput{
			{Partition: "p0", Summary: StringColSummary{MaxColLen: 10, AvgColLen: 6.0, NumNulls: 4, NumDVs: 8}},
			{Partition: "p2", Summary: StringColSummary{MaxColLen: 30, AvgColLen: 2.0, NumNulls: 6, NumDVs: 20}},
		},
	}
	out, err := Aggregate(req)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Data.NumNulls != 20 {
		t.Fatalf("NumNulls = %d, want 20", out.Data.NumNulls)
	}
	if out.Data.NumDVs != 32 {
		t.Fatalf("NumDVs = %d, want 32", out.Data.NumDVs)
	}
}

func TestS4SparseContiguousSketches(t *testing.T) {
	a := sketchBytes(t, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
	b := sketchBytes(t, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17)
	req := AggregationRequest{
		ColumnName:          "c",
		RequestedPartitions: []PartitionName{"p0", "p1", "p2", "p3"},
		Inputs: []PerPartitionInput{
			{Partition: "p0", Summary: StringColSummary{MaxColLen: 10, AvgColLen: 6.0, NumNulls: 4, Bitvectors: a}},
			{Partition: "p1", Summary: StringColSummary{MaxColLen: 12, AvgColLen: 5.0, NumNulls: 3, Bitvectors: b}},
		},
	}
	out, err := Aggregate(req)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Data.NumNulls != 14 { // (4+3)*4/2
		t.Fatalf("NumNulls = %d, want 14", out.Data.NumNulls)
	}
	merged, _ := ndv.FromSerialized(a)
	other, _ := ndv.FromSerialized(b)
	merged.Merge(other)
	if out.Data.NumDVs != merged.Estimate() {
		t.Fatalf("NumDVs = %d, want merged single-pseudo-partition estimate %d", out.Data.NumDVs, merged.Estimate())
	}
}

func TestS5SparseSketchesWithGap(t *testing.T) {
	a := sketchBytes(t, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
	b := sketchBytes(t, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	req := AggregationRequest{
		ColumnName:          "c",
		RequestedPartitions: []PartitionName{"p0", "p1", "p2", "p3"},
		Inputs: []PerPartitionInput{
			{Partition: "p0", Summary: StringColSummary{MaxColLen: 10, AvgColLen: 6.0, NumNulls: 4, Bitvectors: a}},
			{Partition: "p2", Summary: StringColSummary{MaxColLen: 30, AvgColLen: 2.0, NumNulls: 6, Bitvectors: b}},
		},
	}
	out, err := Aggregate(req)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Data.NumNulls != 20 { // (4+6)*4/2
		t.Fatalf("NumNulls = %d, want 20", out.Data.NumNulls)
	}
	// two pseudo-partitions at index 0 and 2, each with its own
	// estimate; the gap forces Branch B2 to close the group after p0,
	// and the extrapolator then linearly projects NDV out to index 4.
	estA, _ := ndv.FromSerialized(a)
	estB, _ := ndv.FromSerialized(b)
	if estA.Estimate() == estB.Estimate() {
		t.Fatalf("test fixture should produce two distinct per-group estimates")
	}
	want := extrapolate.Extrapolate(4, 2,
		map[string]float64{"p0": 0, "p2": 2},
		map[string]extrapolate.ObservedStats{
			"p0": {NumDVs: estA.Estimate()},
			"p2": {NumDVs: estB.Estimate()},
		}, -1.0)
	if out.Data.NumDVs != want.NumDVs {
		t.Fatalf("NumDVs = %d, want %d", out.Data.NumDVs, want.NumDVs)
	}
}

func TestS6SingleInputOfTwoRequested(t *testing.T) {
	req := AggregationRequest{
		ColumnName:          "c",
		RequestedPartitions: []PartitionName{"p0", "p1"},
		Inputs: []PerPartitionInput{
			{Partition: "p0", Summary: StringColSummary{MaxColLen: 10, AvgColLen: 5.0, NumNulls: 3, NumDVs: 7}},
		},
	}
	out, err := Aggregate(req)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := StringColSummary{MaxColLen: 10, AvgColLen: 5.0, NumNulls: 3, NumDVs: 7}
	assertSummary(t, out.Data, want)
}

func TestMalformedInputUnrequestedPartition(t *testing.T) {
	req := AggregationRequest{
		ColumnName:          "c",
		RequestedPartitions: []PartitionName{"p0"},
		Inputs: []PerPartitionInput{
			{Partition: "p1", Summary: StringColSummary{MaxColLen: 1}},
		},
	}
	_, err := Aggregate(req)
	if err == nil {
		t.Fatal("expected a MalformedInput error")
	}
	var mi *MalformedInput
	if !errors.As(err, &mi) {
		t.Fatalf("expected *MalformedInput, got %T: %v", err, err)
	}
}

func TestIncompatibleSketchesAreNotMalformed(t *testing.T) {
	req := AggregationRequest{
		ColumnName:          "c",
		RequestedPartitions: []PartitionName{"p0", "p1"},
		Inputs: []PerPartitionInput{
			{Partition: "p0", Summary: StringColSummary{MaxColLen: 1, Bitvectors: []byte{1, 2, 3}}},
			{Partition: "p1", Summary: StringColSummary{MaxColLen: 1, Bitvectors: []byte{1, 2}}},
		},
	}
	_, err := Aggregate(req)
	// mismatched register counts are simply incompatible (sketch-mode
	// off), not malformed; only deserialization failure is fatal.
	if err != nil {
		t.Fatalf("mismatched-but-parseable sketches should not error: %s", err)
	}
}

func assertSummary(t *testing.T, got, want StringColSummary) {
	t.Helper()
	if got.MaxColLen != want.MaxColLen || got.AvgColLen != want.AvgColLen ||
		got.NumNulls != want.NumNulls || got.NumDVs != want.NumDVs {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
