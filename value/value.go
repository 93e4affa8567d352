// Package value implements the schema-less value tree used for
// document payloads: null, booleans, numbers, strings, sequences, and
// string-keyed mappings with insertion-ordered keys.
package value

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "invalid"
	}
}

// Value is a tagged union over the supported payload variants. The
// zero value is null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	isInt bool
	s     string
	seq   []Value
	keys  []string
	items map[string]Value
}

// Null is the null value.
var Null = Value{kind: KindNull}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer-backed number value.
func Int(i int64) Value { return Value{kind: KindNumber, i: i, isInt: true} }

// Float returns a float-backed number value.
func Float(f float64) Value { return Value{kind: KindNumber, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Sequence returns an ordered sequence of the given items.
func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, seq: items}
}

// Entry is a single key/value pair of a mapping.
type Entry struct {
	Key   string
	Value Value
}

// Mapping returns a mapping containing the given entries in order.
// A repeated key keeps its first position and takes the last value.
func Mapping(entries ...Entry) Value {
	v := Value{kind: KindMapping, items: make(map[string]Value, len(entries))}
	for _, e := range entries {
		if _, ok := v.items[e.Key]; !ok {
			v.keys = append(v.keys, e.Key)
		}
		v.items[e.Key] = e.Value
	}
	return v
}

// Kind returns the variant tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsFloat returns the numeric payload as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.isInt {
		return float64(v.i), true
	}
	return v.f, true
}

// AsInt returns the numeric payload as an int64 when it is
// integer-backed.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber || !v.isInt {
		return 0, false
	}
	return v.i, true
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Len returns the number of items in a sequence or entries in a
// mapping, and 0 for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.keys)
	default:
		return 0
	}
}

// Index returns the sequence item at i.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindSequence || i < 0 || i >= len(v.seq) {
		return Null, false
	}
	return v.seq[i], true
}

// Items returns the items of a sequence. The slice must not be
// modified.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return v.seq
}

// Get returns the mapping value for key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Null, false
	}
	val, ok := v.items[key]
	return val, ok
}

// Keys returns the mapping keys in insertion order. The slice must
// not be modified.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	return v.keys
}

// Set returns a copy of the mapping with key set to val. Setting a
// key on a non-mapping returns a single-entry mapping.
func (v Value) Set(key string, val Value) Value {
	if v.kind != KindMapping {
		return Mapping(Entry{Key: key, Value: val})
	}
	out := Value{kind: KindMapping, items: make(map[string]Value, len(v.items)+1)}
	out.keys = append(out.keys, v.keys...)
	for k, e := range v.items {
		out.items[k] = e
	}
	if _, ok := out.items[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.items[key] = val
	return out
}

// Merge returns new merged over old: when both are mappings the
// entries of new override or extend old (shallow), otherwise new
// replaces old entirely.
func Merge(old, new Value) Value {
	if old.kind != KindMapping || new.kind != KindMapping {
		return new
	}
	out := old
	for _, k := range new.keys {
		out = out.Set(k, new.items[k])
	}
	return out
}

// Equal reports structural equality with other.
func (v Value) Equal(other Value) bool { return Equal(v, other) }

// Equal reports structural equality. Sequences are order-sensitive;
// mappings compare by key set and per-key values, independent of key
// order. Integer- and float-backed numbers are equal when they
// represent the same numeric value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	case KindString:
		return a.s == b.s
	case KindSequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for k, av := range a.items {
			bv, ok := b.items[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
