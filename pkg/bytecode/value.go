package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// Value represents a runtime value using NaN-boxing.
//
// All values are 64-bit words. Floats are stored as their native IEEE 754
// bits; everything else is encoded in the quiet-NaN space using tag bits:
//
//   - Float: native IEEE 754 double (any non-tagged bit pattern)
//   - Int:   quiet NaN + tagInt + 48-bit signed payload
//   - Special: quiet NaN + tagSpecial + nil/true/false id
type Value uint64

const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0.
	nanBits uint64 = 0x7FF8000000000000

	// Tag bits within the NaN mantissa space.
	tagMask    uint64 = 0x0007000000000000
	tagInt     uint64 = 0x0001000000000000 // 48-bit signed integer
	tagSpecial uint64 = 0x0002000000000000 // nil, true, false

	// 48-bit payload.
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	// Sign handling for the 48-bit integer payload.
	intSignBit    uint64 = 0x0000800000000000
	intSignExtend uint64 = 0xFFFF000000000000
)

const (
	specialNil   uint64 = 0
	specialTrue  uint64 = 1
	specialFalse uint64 = 2
)

// Pre-defined special values.
const (
	Nil   Value = Value(nanBits | tagSpecial | specialNil)
	True  Value = Value(nanBits | tagSpecial | specialTrue)
	False Value = Value(nanBits | tagSpecial | specialFalse)
)

// Integer range representable in the 48-bit payload.
const (
	MaxInt int64 = (1 << 47) - 1
	MinInt int64 = -(1 << 47)
)

// Kind is the runtime type tag of a Value, as observed by the profiler.
type Kind int

const (
	KindNil Kind = iota
	KindInt
	KindFloat
	KindBool
)

// String returns the type name used in profile reports.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindNil:
		return "nil"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FromInt boxes an integer. Values outside the 48-bit payload range are
// boxed as floats, losing the integer tag but not the magnitude.
func FromInt(v int64) Value {
	if v < MinInt || v > MaxInt {
		return FromFloat(float64(v))
	}
	return Value(nanBits | tagInt | (uint64(v) & payloadMask))
}

// FromFloat boxes a float.
func FromFloat(v float64) Value {
	return Value(math.Float64bits(v))
}

// FromBool boxes a boolean.
func FromBool(v bool) Value {
	if v {
		return True
	}
	return False
}

// IsInt reports whether v holds a tagged integer.
func (v Value) IsInt() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits | tagInt)
}

// IsFloat reports whether v holds a native float.
func (v Value) IsFloat() bool {
	bits := uint64(v)
	if (bits & 0x7FF0000000000000) != 0x7FF0000000000000 {
		return true // ordinary float
	}
	if bits&0x000FFFFFFFFFFFFF == 0 {
		return true // +/-Inf
	}
	if (bits & nanBits) != nanBits {
		return true // signaling NaN
	}
	return bits&tagMask == 0 // untagged quiet NaN is a real float NaN
}

// IsBool reports whether v is true or false.
func (v Value) IsBool() bool {
	return v == True || v == False
}

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool {
	return v == Nil
}

// IsNumeric reports whether v is an int or a float.
func (v Value) IsNumeric() bool {
	return v.IsInt() || v.IsFloat()
}

// AsInt extracts the integer payload with sign extension.
// Only valid when IsInt reports true.
func (v Value) AsInt() int64 {
	payload := uint64(v) & payloadMask
	if payload&intSignBit != 0 {
		payload |= intSignExtend
	}
	return int64(payload)
}

// AsFloat extracts the float. Only valid when IsFloat reports true.
func (v Value) AsFloat() float64 {
	return math.Float64frombits(uint64(v))
}

// AsBool extracts the boolean. Only valid when IsBool reports true.
func (v Value) AsBool() bool {
	return v == True
}

// AsNumber widens int or float to float64 for mixed arithmetic.
func (v Value) AsNumber() float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// Kind returns the runtime type tag.
func (v Value) Kind() Kind {
	switch {
	case v.IsInt():
		return KindInt
	case v.IsBool():
		return KindBool
	case v.IsNil():
		return KindNil
	default:
		return KindFloat
	}
}

// String renders the value the way print does.
func (v Value) String() string {
	switch {
	case v.IsInt():
		return strconv.FormatInt(v.AsInt(), 10)
	case v.IsBool():
		return strconv.FormatBool(v.AsBool())
	case v.IsNil():
		return "nil"
	default:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	}
}
