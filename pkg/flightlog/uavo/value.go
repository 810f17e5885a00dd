package uavo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrShortPayload is returned when a payload is smaller than the object layout.
var ErrShortPayload = errors.New("payload shorter than object layout")

// FieldValue is the decoded value of one field. Every element is carried as a
// float64 regardless of the wire type; Format renders it back per type.
type FieldValue struct {
	Field  *Field
	Values []float64
}

// Name returns the field name.
func (v FieldValue) Name() string {
	return v.Field.Name
}

// String renders the value. Multi-element fields render as a bracketed,
// comma-separated list.
func (v FieldValue) String() string {
	if len(v.Values) == 1 {
		return v.format(v.Values[0])
	}
	parts := make([]string, len(v.Values))
	for i, x := range v.Values {
		parts[i] = v.format(x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (v FieldValue) format(x float64) string {
	switch v.Field.Type {
	case Float32:
		return strconv.FormatFloat(x, 'g', -1, 32)
	case Enum:
		i := int(x)
		if i >= 0 && i < len(v.Field.Options) {
			return v.Field.Options[i]
		}
		return strconv.Itoa(i)
	default:
		return strconv.FormatInt(int64(x), 10)
	}
}

// Unpack decodes a little-endian payload into field values. Trailing bytes
// beyond the layout are ignored.
func (o *ObjectType) Unpack(payload []byte) ([]FieldValue, error) {
	if len(payload) < o.Size() {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPayload, o.Name, o.Size(), len(payload))
	}
	out := make([]FieldValue, 0, len(o.Fields))
	off := 0
	for i := range o.Fields {
		f := &o.Fields[i]
		vals := make([]float64, f.Count())
		for j := range vals {
			vals[j] = readElement(f.Type, payload[off:])
			off += f.Type.Size()
		}
		out = append(out, FieldValue{Field: f, Values: vals})
	}
	return out, nil
}

// Pack encodes named values into a payload. Missing fields are zero; extra
// elements are an error.
func (o *ObjectType) Pack(values map[string][]float64) ([]byte, error) {
	buf := make([]byte, o.Size())
	off := 0
	for i := range o.Fields {
		f := &o.Fields[i]
		vals := values[f.Name]
		if len(vals) > f.Count() {
			return nil, fmt.Errorf("%s.%s: %d values for %d elements", o.Name, f.Name, len(vals), f.Count())
		}
		for j := 0; j < f.Count(); j++ {
			var x float64
			if j < len(vals) {
				x = vals[j]
			}
			writeElement(f.Type, buf[off:], x)
			off += f.Type.Size()
		}
	}
	return buf, nil
}

func readElement(t FieldType, b []byte) float64 {
	switch t {
	case Int8:
		return float64(int8(b[0]))
	case Uint8, Enum:
		return float64(b[0])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(b))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(b))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

func writeElement(t FieldType, b []byte, x float64) {
	switch t {
	case Int8:
		b[0] = byte(int8(x))
	case Uint8, Enum:
		b[0] = uint8(x)
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(x)))
	case Uint16:
		binary.LittleEndian.PutUint16(b, uint16(x))
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(int32(x)))
	case Uint32:
		binary.LittleEndian.PutUint32(b, uint32(x))
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(x)))
	}
}
