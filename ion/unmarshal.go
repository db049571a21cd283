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

package ion

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type is one of the ion datatypes
type Type byte

const (
	NullType Type = iota
	BoolType
	UintType // unsigned integer
	IntType  // signed integer; always negative
	FloatType
	DecimalType
	TimestampType
	SymbolType
	StringType
	ClobType
	BlobType
	ListType
	SexpType
	StructType
	AnnotationType
	ReservedType
	InvalidType = Type(0xff)
)

func (t Type) String() string {
	switch t {
	case NullType:
		return "null"
	case BoolType:
		return "bool"
	case UintType:
		return "uint"
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case DecimalType:
		return "decimal"
	case TimestampType:
		return "timestamp"
	case SymbolType:
		return "symbol"
	case StringType:
		return "string"
	case ClobType:
		return "clob"
	case BlobType:
		return "blob"
	case ListType:
		return "list"
	case SexpType:
		return "sexp"
	case StructType:
		return "struct"
	case AnnotationType:
		return "annotation"
	case ReservedType:
		return "reserved"
	default:
		return "invalid"
	}
}

// TypeOf returns the type of the
// next object in the buffer
func TypeOf(msg []byte) Type {
	return Type(msg[0] >> 4)
}

// DecodeTLV explodes TLV byte into: type (t), raw length (l)
func DecodeTLV(b byte) (t Type, l byte) {
	t = Type(b >> 4)
	l = b & 0x0f
	return
}

// SizeOf returns the size of the next
// ion object, including the beginning
// TLV descriptor bytes.
//
// The return value of SizeOf is unspecified
// when msg is not a valid ion object.
func SizeOf(msg []byte) int {
	if len(msg) == 0 {
		return -1
	}
	if msg[0] == 0x11 {
		return 1
	}
	lo := msg[0] & 0x0f
	switch lo {
	case 0x0f:
		return 1
	case 0x0e:
		out := 0
		i := 0
		rest := msg[1:]
		if len(rest) > 8 {
			// guard against overflow
			rest = rest[:8]
		}
		for i = range rest {
			out <<= 7
			out += int(rest[i] & 0x7f)
			if rest[i]&0x80 != 0 {
				return out + i + 2
			}
		}
		return -1 // unterminated rest
	default:
		// CAUTION: the 0xd1 case (the struct has at least one symbol/value pair, the length field
		// exists, and the field name integers are sorted in increasing order) is not handled correctly.
		// The VarUInt length should be used, but the result of masking (0x01) is used instead. Therefore,
		// the function returns 2 instead of the VarUInt. The 0xd1 case has not been used in the codebase
		// so far, allowing for the simplification of the function, but if this ever changes, the bug hides here.
		return int(lo) + 1
	}
}

// Contents parses the TLV descriptor
// at the beginning of 'msg' and returns
// the bytes that correspond to the
// non-descriptor bytes of the object,
// plus the remaining bytes in the buffer
// as the second return value.
// The returned []byte will be nil if
// the encoded object size does not
// fit into 'msg'. (Note that a returned
// slice that is zero-length but non-nil
// means something different than a nil slice.)
func Contents(msg []byte) ([]byte, []byte) {
	if len(msg) == 0 {
		return nil, msg
	}
	if msg[0] == 0x11 {
		return msg[:0], msg[1:]
	}
	lo := msg[0] & 0x0f
	if lo == 0x0f {
		return msg[:0], msg[1:]
	}
	if lo < 0x0e {
		if len(msg) < int(lo)+1 {
			return nil, msg
		}
		return msg[1 : 1+lo], msg[1+lo:]
	}

	// lo must be equal to 0x0e
	rest := msg[1:]
	out := 0
	i := 0
	for i = range rest {
		out <<= 7
		out += int(rest[i] & 0x7f)
		if rest[i]&0x80 != 0 {
			if len(rest) < i+out+1 || out < 0 {
				return nil, msg
			}
			return rest[i+1 : i+out+1], rest[i+out+1:]
		}
	}
	return nil, msg
}

// Composite returns whether or not
// the type is an object containing
// other objects.
func (t Type) Composite() bool {
	switch t {
	case ListType, SexpType, StructType:
		return true
	default:
		return false
	}
}

// Integer returns whether or not
// the type is an integer type
// (either IntType or UintType).
func (t Type) Integer() bool {
	switch t {
	case IntType, UintType:
		return true
	default:
		return false
	}
}

// TypeError is the error returned by functions
// when the concrete type of a datum does not match the
// type expected by the function.
type TypeError struct {
	Wanted, Found Type
	Func, Field   string
}

func (t *TypeError) Error() string {
	const (
		fn    = "ion.%s: "
		field = "field %q: "
		msg   = "found type %s, wanted type %s"
	)
	if t.Func == "" {
		if t.Field == "" {
			return fmt.Sprintf(msg, t.Found, t.Wanted)
		} else {
			return fmt.Sprintf(field+msg, t.Field, t.Found, t.Wanted)
		}
	} else {
		if t.Field == "" {
			return fmt.Sprintf(fn+msg, t.Func, t.Found, t.Wanted)
		} else {
			return fmt.Sprintf(fn+field+msg, t.Func, t.Field, t.Found, t.Wanted)
		}
	}
}

func bad(got, want Type, fn string) error {
	return &TypeError{Wanted: want, Found: got, Func: fn}
}

func toosmall(got, want int, fn string) error {
	return fmt.Errorf("ion.%s: want at least %d bytes but have %d", fn, want, got)
}

var errInvalidIon = fmt.Errorf("invalid TLV encoding bytes")

func expectedinttype(got Type, fn string) error {
	return fmt.Errorf("ion.%s: found type %s, wanted an integer type", fn, got)
}

// ReadString reads a string from 'msg'
// and returns the string and the subsequent
// message bytes.
func ReadString(msg []byte) (string, []byte, error) {
	if t := TypeOf(msg); t != StringType {
		return "", nil, bad(t, StringType, "ReadString")
	}
	body, rest := Contents(msg)
	if body == nil {
		return "", nil, errInvalidIon
	}
	return string(body), rest, nil
}

// ReadBytesShared read a []byte (as an ion 'blob')
// and returns the blob and the subsequent
// message bytes. Note that the returned []byte
// aliases the input message, so the caller
// must copy those bytes into a new buffer if
// the original buffer is expected to be clobbered.
func ReadBytesShared(msg []byte) ([]byte, []byte, error) {
	if t := TypeOf(msg); t != BlobType {
		return nil, nil, bad(t, BlobType, "ReadBytesShared")
	}
	body, rest := Contents(msg)
	if body == nil {
		return nil, nil, errInvalidIon
	}
	return body, rest, nil
}

// ReadStringShared reads a string from 'msg'
// and returns the string and the subsequent
// message bytes. The returned slice containing
// the string contents aliases the input slice.
func ReadStringShared(msg []byte) ([]byte, []byte, error) {
	if t := TypeOf(msg); t != StringType {
		return nil, nil, bad(t, StringType, "ReadString")
	}
	body, rest := Contents(msg)
	if body == nil {
		return nil, nil, errInvalidIon
	}
	return body, rest, nil
}

// ReadBytes reads an ion blob from message.
// The returned slice does not alias msg.
// See also: ReadBytesShared.
func ReadBytes(msg []byte) ([]byte, []byte, error) {
	orig, rest, err := ReadBytesShared(msg)
	if err != nil {
		return nil, rest, err
	}
	out := make([]byte, len(orig))
	copy(out, orig)
	return out, rest, err
}

// ReadFloat64 reads an ion float as a float64
// and returns the value and the subsequent
// message bytes.
func ReadFloat64(msg []byte) (float64, []byte, error) {
	switch msg[0] {
	case 0x40:
		return 0.0, msg[1:], nil
	case 0x44:
		if len(msg) < 5 {
			return 0, nil, toosmall(len(msg), 5, "ReadFloat64")
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(msg[1:]))), msg[5:], nil
	case 0x48:
		if len(msg) < 9 {
			return 0, nil, toosmall(len(msg), 9, "ReadFloat64")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(msg[1:])), msg[9:], nil
	}
	if t := TypeOf(msg); t != FloatType {
		return 0, nil, bad(t, FloatType, "ReadFloat64")
	}
	return 0, nil, fmt.Errorf("ReadFloat64: cannot parse descriptor %x", msg[0])
}

// ReadFloat32 reads an ion float as a float32
// and returns the value and the subsequent
// message bytes.
func ReadFloat32(msg []byte) (float32, []byte, error) {
	switch msg[0] {
	case 0x40:
		return 0.0, msg[1:], nil
	case 0x44:
		if len(msg) < 5 {
			return 0, nil, toosmall(len(msg), 5, "ReadFloat32")
		}
		return math.Float32frombits(binary.BigEndian.Uint32(msg[1:])), msg[5:], nil
	}
	if t := TypeOf(msg); t != FloatType {
		return 0, nil, bad(t, FloatType, "ReadFloat32")
	}
	return 0, nil, fmt.Errorf("ReadFloat32: cannot parse descriptor %x", msg[0])
}

func readmag(msg []byte) uint64 {
	u := uint64(0)
	for i := range msg {
		u <<= 8
		u |= uint64(msg[i])
	}
	return u
}

// ReadInt reads an ion integer as an int64
// and returns the subsequent message bytes
func ReadInt(msg []byte) (int64, []byte, error) {
	t := TypeOf(msg)
	if t < UintType || t > IntType {
		return 0, nil, bad(t, IntType, "ReadInt")
	}
	body, rest := Contents(msg)
	if body == nil {
		return 0, nil, errInvalidIon
	}
	if len(body) > 8 {
		return 0, nil, fmt.Errorf("integer of %d bytes out of range", len(body))
	}
	mag := readmag(body)
	max := uint64(math.MaxInt64)
	if t == IntType {
		max++
	}
	if mag > max {
		return 0, nil, fmt.Errorf("ion.ReadInt: magnitude %d out of range for int64", mag)
	}
	v := int64(mag)
	if t == IntType {
		v = -v
	}
	return v, rest, nil
}

// ReadUint reads an ion integer as a uint64
// and returns the subsequent message bytes
func ReadUint(msg []byte) (uint64, []byte, error) {
	if t := TypeOf(msg); t != UintType {
		return 0, nil, bad(t, UintType, "ReadUint")
	}
	body, rest := Contents(msg)
	if body == nil {
		return 0, nil, errInvalidIon
	}
	if len(body) > 8 {
		return 0, nil, fmt.Errorf("ion.ReadUint: integer of %d bytes out of range", len(body))
	}
	return readmag(body), rest, nil
}

// ReadLabel reads a symbol preceding a structure field
// and returns the subsequent message bytes.
func ReadLabel(msg []byte) (Symbol, []byte, error) {
	uv, rest, ok := readuv(msg)
	if !ok {
		return 0, nil, errInvalidIon
	}
	return Symbol(uv), rest, nil
}

// read unsigned varint
func readuv(msg []byte) (uint, []byte, bool) {
	out := uint(0)
	i := 0
	prefix := msg
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	for i = range prefix {
		out <<= 7
		out += uint(prefix[i] & 0x7f)
		if prefix[i]&0x80 != 0 {
			return out, msg[i+1:], true
		}
	}
	return 0, nil, false
}
