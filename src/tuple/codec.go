package tuple

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Row bytes are schema-driven: no per-value tags, the schema dictates every
// width, little endian throughout.
//
//	INT      int32
//	BIGINT   int64
//	VARCHAR  uint32 length + bytes (length bounded by the column size)
//	CHAR     exactly size bytes, space padded
//	FLOAT    float32 bits
//	DOUBLE   float64 bits

// Encode serializes row against schema.
func Encode(schema Schema, row Row) ([]byte, error) {
	if err := schema.checkRow(row); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 64)
	var scratch [8]byte
	for i, col := range schema.Columns {
		v := row[i]
		switch col.Kind {
		case KindInt:
			binary.LittleEndian.PutUint32(scratch[:4], uint32(int32(v.Int)))
			out = append(out, scratch[:4]...)
		case KindBigInt:
			binary.LittleEndian.PutUint64(scratch[:8], uint64(v.Int))
			out = append(out, scratch[:8]...)
		case KindVarchar:
			if col.Size > 0 && len(v.Str) > col.Size {
				return nil, errors.Errorf("column %s: value of %d bytes exceeds VARCHAR(%d)",
					col.Name, len(v.Str), col.Size)
			}
			binary.LittleEndian.PutUint32(scratch[:4], uint32(len(v.Str)))
			out = append(out, scratch[:4]...)
			out = append(out, v.Str...)
		case KindChar:
			if len(v.Str) > col.Size {
				return nil, errors.Errorf("column %s: value of %d bytes exceeds CHAR(%d)",
					col.Name, len(v.Str), col.Size)
			}
			out = append(out, v.Str...)
			for pad := col.Size - len(v.Str); pad > 0; pad-- {
				out = append(out, ' ')
			}
		case KindFloat:
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(float32(v.Real)))
			out = append(out, scratch[:4]...)
		case KindDouble:
			binary.LittleEndian.PutUint64(scratch[:8], math.Float64bits(v.Real))
			out = append(out, scratch[:8]...)
		default:
			return nil, errors.Errorf("column %s: unsupported kind %d", col.Name, col.Kind)
		}
	}
	return out, nil
}

// Decode deserializes one row, consuming buf exactly.
func Decode(schema Schema, buf []byte) (Row, error) {
	row := make(Row, 0, len(schema.Columns))
	off := 0
	for _, col := range schema.Columns {
		switch col.Kind {
		case KindInt:
			if off+4 > len(buf) {
				return nil, truncated(col.Name)
			}
			row = append(row, NewInt(int32(binary.LittleEndian.Uint32(buf[off:]))))
			off += 4
		case KindBigInt:
			if off+8 > len(buf) {
				return nil, truncated(col.Name)
			}
			row = append(row, NewBigInt(int64(binary.LittleEndian.Uint64(buf[off:]))))
			off += 8
		case KindVarchar:
			if off+4 > len(buf) {
				return nil, truncated(col.Name)
			}
			n := int(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
			if off+n > len(buf) {
				return nil, truncated(col.Name)
			}
			row = append(row, NewVarchar(string(buf[off:off+n])))
			off += n
		case KindChar:
			if off+col.Size > len(buf) {
				return nil, truncated(col.Name)
			}
			row = append(row, NewChar(strings.TrimRight(string(buf[off:off+col.Size]), " ")))
			off += col.Size
		case KindFloat:
			if off+4 > len(buf) {
				return nil, truncated(col.Name)
			}
			row = append(row, NewFloat(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))))
			off += 4
		case KindDouble:
			if off+8 > len(buf) {
				return nil, truncated(col.Name)
			}
			row = append(row, NewDouble(math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))))
			off += 8
		default:
			return nil, errors.Errorf("column %s: unsupported kind %d", col.Name, col.Kind)
		}
	}
	if off != len(buf) {
		return nil, errors.Errorf("row decode left %d trailing bytes", len(buf)-off)
	}
	return row, nil
}

// EncodeKey serializes a single key value, self-describing (tag byte first)
// so the index entry log can be replayed without the table schema in hand.
func EncodeKey(v Value) []byte {
	var scratch [8]byte
	out := []byte{byte(v.Kind)}
	switch v.Kind {
	case KindInt, KindBigInt:
		binary.LittleEndian.PutUint64(scratch[:8], uint64(v.Int))
		return append(out, scratch[:8]...)
	case KindFloat, KindDouble:
		binary.LittleEndian.PutUint64(scratch[:8], math.Float64bits(v.Real))
		return append(out, scratch[:8]...)
	default:
		binary.LittleEndian.PutUint16(scratch[:2], uint16(len(v.Str)))
		out = append(out, scratch[:2]...)
		return append(out, v.Str...)
	}
}

// DecodeKey reads one key value from the front of buf, returning the value
// and the number of bytes consumed.
func DecodeKey(buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, truncated("key")
	}
	kind := Kind(buf[0])
	switch kind {
	case KindInt, KindBigInt:
		if len(buf) < 9 {
			return Value{}, 0, truncated("key")
		}
		return Value{Kind: kind, Int: int64(binary.LittleEndian.Uint64(buf[1:]))}, 9, nil
	case KindFloat, KindDouble:
		if len(buf) < 9 {
			return Value{}, 0, truncated("key")
		}
		return Value{Kind: kind, Real: math.Float64frombits(binary.LittleEndian.Uint64(buf[1:]))}, 9, nil
	case KindVarchar, KindChar:
		if len(buf) < 3 {
			return Value{}, 0, truncated("key")
		}
		n := int(binary.LittleEndian.Uint16(buf[1:]))
		if len(buf) < 3+n {
			return Value{}, 0, truncated("key")
		}
		return Value{Kind: kind, Str: string(buf[3 : 3+n])}, 3 + n, nil
	default:
		return Value{}, 0, errors.Errorf("key has unknown kind tag %d", kind)
	}
}

func truncated(what string) error {
	return errors.Errorf("truncated value for %s", what)
}
