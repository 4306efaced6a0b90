package tuple

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Value. One column holds one kind for every
// row; mixed-kind comparison is only defined across the numeric kinds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt          // 32-bit signed
	KindBigInt       // 64-bit signed
	KindVarchar      // variable length, bounded by the column size
	KindChar         // fixed length, space padded on disk
	KindFloat        // 32-bit IEEE 754
	KindDouble       // 64-bit IEEE 754
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "INT"
	case KindBigInt:
		return "BIGINT"
	case KindVarchar:
		return "VARCHAR"
	case KindChar:
		return "CHAR"
	case KindFloat:
		return "FLOAT"
	case KindDouble:
		return "DOUBLE"
	default:
		return "INVALID"
	}
}

// Value is one typed cell of a row.
type Value struct {
	Kind Kind
	Int  int64
	Real float64
	Str  string
}

func NewInt(v int32) Value      { return Value{Kind: KindInt, Int: int64(v)} }
func NewBigInt(v int64) Value   { return Value{Kind: KindBigInt, Int: v} }
func NewVarchar(s string) Value { return Value{Kind: KindVarchar, Str: s} }
func NewChar(s string) Value    { return Value{Kind: KindChar, Str: s} }
func NewFloat(v float32) Value  { return Value{Kind: KindFloat, Real: float64(v)} }
func NewDouble(v float64) Value { return Value{Kind: KindDouble, Real: v} }

func (v Value) IsNumeric() bool {
	switch v.Kind {
	case KindInt, KindBigInt, KindFloat, KindDouble:
		return true
	}
	return false
}

func (v Value) asFloat() float64 {
	switch v.Kind {
	case KindInt, KindBigInt:
		return float64(v.Int)
	default:
		return v.Real
	}
}

// Compare orders v against other: -1, 0 or 1. Numeric kinds compare
// numerically across widths; text kinds compare lexicographically with
// trailing Char padding ignored.
func (v Value) Compare(other Value) int {
	if v.IsNumeric() && other.IsNumeric() {
		a, b := v.asFloat(), other.asFloat()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	a := strings.TrimRight(v.Str, " ")
	b := strings.TrimRight(other.Str, " ")
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt, KindBigInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat, KindDouble:
		return fmt.Sprintf("%g", v.Real)
	case KindVarchar, KindChar:
		return v.Str
	default:
		return "<invalid>"
	}
}

// Row is one record: an ordered sequence of values matching its schema.
type Row []Value
