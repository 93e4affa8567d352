package value

import (
	"cmp"
	"strings"
)

// typeOrder fixes the cross-kind ordering used when sorting mixed
// values: null < bool < number < string < sequence < mapping.
func typeOrder(v Value) int {
	switch v.kind {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindNumber:
		return 2
	case KindString:
		return 3
	case KindSequence:
		return 4
	case KindMapping:
		return 5
	default:
		return 6
	}
}

// Compare orders two values for sorting. Values of different kinds
// order by kind; numbers compare numerically, strings
// lexicographically, booleans as false < true, and sequences and
// mappings by length.
func Compare(a, b Value) int {
	if ta, tb := typeOrder(a), typeOrder(b); ta != tb {
		return cmp.Compare(ta, tb)
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case b.b:
			return -1
		default:
			return 1
		}
	case KindNumber:
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return cmp.Compare(af, bf)
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindSequence:
		return cmp.Compare(len(a.seq), len(b.seq))
	case KindMapping:
		return cmp.Compare(len(a.keys), len(b.keys))
	default:
		return 0
	}
}

// Comparable reports whether two values can be meaningfully ordered
// by a range operator: both numbers, both strings, or both booleans.
func Comparable(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNumber, KindString, KindBool:
		return true
	default:
		return false
	}
}
