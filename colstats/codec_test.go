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

import "testing"

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := OutputStatsObj{
		ColumnName: "c",
		ColumnType: ColumnTypeString,
		Data: StringColSummary{
			MaxColLen: 20,
			AvgColLen: 5.0,
			NumNulls:  5,
			NumDVs:    11,
			Bitvectors: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		},
	}
	buf := in.Marshal()
	out, err := Unmarshal(buf)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.ColumnName != in.ColumnName || out.ColumnType != in.ColumnType {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	if out.Data.MaxColLen != in.Data.MaxColLen || out.Data.AvgColLen != in.Data.AvgColLen ||
		out.Data.NumNulls != in.Data.NumNulls || out.Data.NumDVs != in.Data.NumDVs {
		t.Fatalf("scalar fields did not round-trip: got %+v want %+v", out.Data, in.Data)
	}
	if string(out.Data.Bitvectors) != string(in.Data.Bitvectors) {
		t.Fatalf("bitvectors did not round-trip: got %x want %x", out.Data.Bitvectors, in.Data.Bitvectors)
	}
}

func TestMarshalWithoutSketch(t *testing.T) {
	in := OutputStatsObj{ColumnName: "c", ColumnType: ColumnTypeString, Data: StringColSummary{MaxColLen: 1, NumDVs: 1}}
	out, err := Unmarshal(in.Marshal())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(out.Data.Bitvectors) != 0 {
		t.Fatalf("expected no bitvectors, got %x", out.Data.Bitvectors)
	}
}
