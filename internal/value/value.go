// Package value implements the polymorphic payload transported between
// pipeline blocks. A Value is a small tagged union over the scalar and
// sequence kinds the runtime understands; conversions happen on the
// consumer side so producers never need to know what a downstream block
// expects.
package value

import "strconv"

// Kind identifies which variant a Value currently holds.
type Kind int

const (
	// KindNone is the zero Value: it reads as the zero of every type.
	KindNone Kind = iota
	KindFloat
	KindInt
	KindBool
	KindString
	KindSequence
)

// String returns the tag name used in metrics and API payloads.
func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	default:
		return "none"
	}
}

// Value is the discriminated union carried along connections. The zero
// Value holds nothing and reads as zero for every kind. Values are
// copied on transport; Sequence copies its backing slice so two Values
// never alias the same storage.
type Value struct {
	kind Kind
	f    float64
	i    int64
	b    bool
	s    string
	seq  []float64
}

// Float constructs a scalar float Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Int constructs a scalar integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String constructs a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Sequence constructs a homogeneous float-sequence Value. The slice is
// copied so the caller may reuse its buffer.
func Sequence(seq []float64) Value {
	cp := make([]float64, len(seq))
	copy(cp, seq)
	return Value{kind: KindSequence, seq: cp}
}

// Kind reports the current tag.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the zero Value (no variant set).
func (v Value) IsZero() bool { return v.kind == KindNone }

// AsFloat reads the value as a float. Any numeric variant converts;
// everything else reads as 0.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	default:
		return 0
	}
}

// AsInt reads the value as an integer. Floats truncate toward zero;
// non-numeric variants read as 0.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	default:
		return 0
	}
}

// AsBool reads the value as a boolean. Cross-category reads are false.
func (v Value) AsBool() bool {
	if v.kind == KindBool {
		return v.b
	}
	return false
}

// AsString reads the value as a string. Cross-category reads are "".
func (v Value) AsString() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// AsSequence reads the value as a float sequence. Numeric scalars read
// as a singleton sequence; other variants read as nil. The returned
// slice is a copy.
func (v Value) AsSequence() []float64 {
	switch v.kind {
	case KindSequence:
		cp := make([]float64, len(v.seq))
		copy(cp, v.seq)
		return cp
	case KindFloat:
		return []float64{v.f}
	case KindInt:
		return []float64{float64(v.i)}
	default:
		return nil
	}
}

// Equal reports structural equality: same kind and same payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.f == o.f
	case KindInt:
		return v.i == o.i
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if v.seq[i] != o.seq[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Repr returns a short printable form used by the metrics surface.
func (v Value) Repr() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	case KindSequence:
		return "sequence[" + strconv.Itoa(len(v.seq)) + "]"
	default:
		return ""
	}
}
