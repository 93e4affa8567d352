package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Parse decodes a JSON document into a Value, preserving the key
// order of objects.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Null, err
	}
	if dec.More() {
		return Null, fmt.Errorf("unexpected trailing data")
	}
	return v, nil
}

// MustParse is Parse for literals in tests and examples; it panics on
// malformed input.
func MustParse(data string) Value {
	v, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return v
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Null, err
		}
		return Float(f), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Null, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return Null, err
			}
			return Sequence(items...), nil
		case '{':
			var entries []Entry
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null, fmt.Errorf("object key is not a string")
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Null, err
				}
				entries = append(entries, Entry{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // closing }
				return Null, err
			}
			return Mapping(entries...), nil
		default:
			return Null, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return Null, fmt.Errorf("unexpected token %v", tok)
	}
}

// MarshalJSON encodes v preserving mapping key insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes v from JSON, preserving mapping key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Canonical returns the canonical serialization of v: mapping keys
// sorted lexicographically and numbers in their shortest decimal
// form. Two structurally equal values always canonicalize to the same
// bytes, regardless of construction order.
func (v Value) Canonical() []byte {
	var buf bytes.Buffer
	// encode cannot fail when writing to a bytes.Buffer.
	_ = encode(&buf, v, true)
	return buf.Bytes()
}

func encode(buf *bytes.Buffer, v Value, canonical bool) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if v.isInt {
			buf.WriteString(strconv.FormatInt(v.i, 10))
			return nil
		}
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("cannot encode non-finite number")
		}
		// Integral floats print in integer form so numerically equal
		// values share one serialization.
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			buf.WriteString(strconv.FormatInt(int64(v.f), 10))
			return nil
		}
		b := strconv.AppendFloat(nil, v.f, 'g', -1, 64)
		buf.Write(b)
	case KindString:
		writeString(buf, v.s)
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item, canonical); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		keys := v.keys
		if canonical {
			keys = append([]string(nil), v.keys...)
			sort.Strings(keys)
		}
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if err := encode(buf, v.items[k], canonical); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// String returns the JSON form of v for logs and debugging.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid value: %v>", err)
	}
	return string(b)
}
