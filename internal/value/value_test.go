package value

import "testing"

func TestAsFloat_NumericWidening(t *testing.T) {
	if got := Float(1.5).AsFloat(); got != 1.5 {
		t.Errorf("float read: got %v", got)
	}
	if got := Int(3).AsFloat(); got != 3.0 {
		t.Errorf("int→float read: got %v", got)
	}
	if got := String("3.5").AsFloat(); got != 0 {
		t.Errorf("string→float must be zero, got %v", got)
	}
	if got := Bool(true).AsFloat(); got != 0 {
		t.Errorf("bool→float must be zero, got %v", got)
	}
}

func TestAsInt_Truncation(t *testing.T) {
	if got := Float(2.9).AsInt(); got != 2 {
		t.Errorf("float→int truncates toward zero, got %d", got)
	}
	if got := Float(-2.9).AsInt(); got != -2 {
		t.Errorf("negative float→int truncates toward zero, got %d", got)
	}
	if got := Sequence([]float64{1}).AsInt(); got != 0 {
		t.Errorf("sequence→int must be zero, got %d", got)
	}
}

func TestAsSequence_SingletonFromScalar(t *testing.T) {
	got := Float(4.25).AsSequence()
	if len(got) != 1 || got[0] != 4.25 {
		t.Errorf("float→sequence must be singleton, got %v", got)
	}

	got = Int(7).AsSequence()
	if len(got) != 1 || got[0] != 7 {
		t.Errorf("int→sequence must be singleton, got %v", got)
	}

	if got := String("x").AsSequence(); got != nil {
		t.Errorf("string→sequence must be nil, got %v", got)
	}
	if got := Bool(true).AsSequence(); got != nil {
		t.Errorf("bool→sequence must be nil, got %v", got)
	}
}

func TestAsSequence_CopiesStorage(t *testing.T) {
	src := []float64{1, 2, 3}
	v := Sequence(src)

	src[0] = 99
	if v.AsSequence()[0] != 1 {
		t.Error("constructor must copy the caller's slice")
	}

	out := v.AsSequence()
	out[1] = 99
	if v.AsSequence()[1] != 2 {
		t.Error("reads must return a copy")
	}
}

func TestZeroValue(t *testing.T) {
	var v Value

	if !v.IsZero() || v.Kind() != KindNone {
		t.Fatalf("zero value kind: %v", v.Kind())
	}
	if v.AsFloat() != 0 || v.AsInt() != 0 || v.AsBool() || v.AsString() != "" || v.AsSequence() != nil {
		t.Error("zero value must read as zero for every type")
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"float same", Float(1), Float(1), true},
		{"float diff", Float(1), Float(2), false},
		{"float vs int", Float(1), Int(1), false},
		{"seq same", Sequence([]float64{1, 2}), Sequence([]float64{1, 2}), true},
		{"seq diff len", Sequence([]float64{1}), Sequence([]float64{1, 2}), false},
		{"seq diff elem", Sequence([]float64{1, 2}), Sequence([]float64{1, 3}), false},
		{"string same", String("a"), String("a"), true},
		{"zero zero", Value{}, Value{}, true},
		{"zero vs float", Value{}, Float(0), false},
	}

	for _, c := range cases {
		if got := c.a.Equal(c.b); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestKindString(t *testing.T) {
	want := map[Kind]string{
		KindNone:     "none",
		KindFloat:    "float",
		KindInt:      "int",
		KindBool:     "bool",
		KindString:   "string",
		KindSequence: "sequence",
	}
	for k, s := range want {
		if k.String() != s {
			t.Errorf("kind %d: got %q, want %q", k, k.String(), s)
		}
	}
}
