package blocks

import (
	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// scale applies a linear transform out = in*gain + offset. Sequences
// pass through element-wise, scalars as scalars.
//
// Config:
//
//	"gain":   float (default 1.0)
//	"offset": float (default 0)
//
// Input pins:  "in"
// Output pins: "out"
type scale struct {
	gain   float64
	offset float64

	in  value.Value
	out value.Value
}

func init() {
	block.RegisterBuiltin("scale", func() block.Block { return &scale{} })
}

func (b *scale) ID() string      { return "scale" }
func (b *scale) Version() string { return Version }

func (b *scale) Initialize(config map[string]string) bool {
	ok := true

	var valid bool
	b.gain, valid = configFloat(config, "gain", 1.0)
	ok = ok && valid
	b.offset, valid = configFloat(config, "offset", 0)
	ok = ok && valid

	return ok
}

func (b *scale) InputPins() []block.Pin {
	return []block.Pin{inPin("in", "float", value.Float(0))}
}

func (b *scale) OutputPins() []block.Pin {
	return []block.Pin{outPin("out", "float", value.Float(0))}
}

func (b *scale) SetInput(pin string, v value.Value) {
	if pin == "in" {
		b.in = v
	}
}

func (b *scale) Execute() bool {
	if b.in.Kind() == value.KindSequence {
		seq := b.in.AsSequence()
		for i := range seq {
			seq[i] = seq[i]*b.gain + b.offset
		}
		b.out = value.Sequence(seq)
		return true
	}

	b.out = value.Float(b.in.AsFloat()*b.gain + b.offset)
	return true
}

func (b *scale) GetOutput(pin string) value.Value {
	if pin == "out" {
		return b.out
	}
	return value.Value{}
}

func (b *scale) Shutdown() {}
