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
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/rmartin-rp/colstats/ion"
)

// symbol table fields, interned once up front so that encoding a
// single OutputStatsObj doesn't pay per-call symtab overhead; mirrors
// plan.ExecStats's statsSymtab in the teacher.
var statsSymtab ion.Symtab

func init() {
	for _, s := range []string{
		"column_name",
		"column_type",
		"max_col_len",
		"avg_col_len",
		"num_nulls",
		"num_dvs",
		"bitvectors",
	} {
		statsSymtab.Intern(s)
	}
}

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		e, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			panic(err)
		}
		zstdEnc = e
	})
	return zstdEnc
}

func decoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		d, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		zstdDec = d
	})
	return zstdDec
}

// Marshal encodes obj as a self-contained ion structure, compressing
// the sketch bytes (if any) with zstd before they are framed into the
// blob field. It is the counterpart of Unmarshal.
func (o OutputStatsObj) Marshal() []byte {
	var dst ion.Buffer
	o.Encode(&dst, &statsSymtab)
	return dst.Bytes()
}

// Encode encodes o to dst using the provided symbol table, in the
// same style as the teacher's plan.ExecStats.Encode: a struct with
// one field per populated value.
func (o OutputStatsObj) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("column_name"))
	dst.WriteString(o.ColumnName)
	dst.BeginField(st.Intern("column_type"))
	dst.WriteString(o.ColumnType.String())
	dst.BeginField(st.Intern("max_col_len"))
	dst.WriteUint(o.Data.MaxColLen)
	dst.BeginField(st.Intern("avg_col_len"))
	dst.WriteFloat64(o.Data.AvgColLen)
	dst.BeginField(st.Intern("num_nulls"))
	dst.WriteUint(o.Data.NumNulls)
	dst.BeginField(st.Intern("num_dvs"))
	dst.WriteUint(o.Data.NumDVs)
	if len(o.Data.Bitvectors) > 0 {
		dst.BeginField(st.Intern("bitvectors"))
		dst.WriteBlob(encoder().EncodeAll(o.Data.Bitvectors, nil))
	}
	dst.EndStruct()
}

// Unmarshal decodes an OutputStatsObj encoded by Marshal.
func Unmarshal(buf []byte) (OutputStatsObj, error) {
	var o OutputStatsObj
	if err := o.Decode(buf, &statsSymtab); err != nil {
		return OutputStatsObj{}, err
	}
	return o, nil
}

// Decode decodes buf (one ion struct, as produced by Encode) into o,
// using st to resolve field-name symbols.
func (o *OutputStatsObj) Decode(buf []byte, st *ion.Symtab) error {
	if len(buf) == 0 {
		return fmt.Errorf("colstats.OutputStatsObj.Decode: cannot decode 0 bytes")
	}
	if ion.TypeOf(buf) != ion.StructType {
		return fmt.Errorf("colstats.OutputStatsObj.Decode: unexpected ion type %s", ion.TypeOf(buf))
	}
	inner, _ := ion.Contents(buf)
	if inner == nil {
		return fmt.Errorf("colstats.OutputStatsObj.Decode: invalid TLV bytes")
	}

	var err error
	var sym ion.Symbol
	for len(inner) > 0 {
		sym, inner, err = ion.ReadLabel(inner)
		if err != nil {
			return fmt.Errorf("colstats.OutputStatsObj.Decode: %w", err)
		}
		switch st.Get(sym) {
		case "column_name":
			o.ColumnName, inner, err = ion.ReadString(inner)
		case "column_type":
			var s string
			s, inner, err = ion.ReadString(inner)
			o.ColumnType = parseColumnType(s)
		case "max_col_len":
			o.Data.MaxColLen, inner, err = ion.ReadUint(inner)
		case "avg_col_len":
			o.Data.AvgColLen, inner, err = ion.ReadFloat64(inner)
		case "num_nulls":
			o.Data.NumNulls, inner, err = ion.ReadUint(inner)
		case "num_dvs":
			o.Data.NumDVs, inner, err = ion.ReadUint(inner)
		case "bitvectors":
			var compressed []byte
			compressed, inner, err = ion.ReadBytes(inner)
			if err == nil && len(compressed) > 0 {
				o.Data.Bitvectors, err = decoder().DecodeAll(compressed, nil)
			}
		default:
			inner = inner[ion.SizeOf(inner):]
		}
		if err != nil {
			return fmt.Errorf("colstats.OutputStatsObj.Decode: %w", err)
		}
	}
	return nil
}

func parseColumnType(s string) ColumnType {
	switch s {
	case "string":
		return ColumnTypeString
	case "long":
		return ColumnTypeLong
	case "double":
		return ColumnTypeDouble
	case "decimal":
		return ColumnTypeDecimal
	case "date":
		return ColumnTypeDate
	case "binary":
		return ColumnTypeBinary
	case "boolean":
		return ColumnTypeBoolean
	default:
		return ColumnTypeUnknown
	}
}
