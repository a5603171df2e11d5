package blocks

import (
	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// threshold emits a boolean telling whether the input crossed a level.
//
// Config:
//
//	"level": float — comparison level (default 0.5)
//
// Input pins:  "in"
// Output pins: "out" (bool), "value" (the raw input passed through)
type threshold struct {
	level float64

	in  value.Value
	out value.Value
}

func init() {
	block.RegisterBuiltin("threshold", func() block.Block { return &threshold{} })
}

func (b *threshold) ID() string      { return "threshold" }
func (b *threshold) Version() string { return Version }

func (b *threshold) Initialize(config map[string]string) bool {
	var ok bool
	b.level, ok = configFloat(config, "level", 0.5)
	return ok
}

func (b *threshold) InputPins() []block.Pin {
	return []block.Pin{inPin("in", "float", value.Float(0))}
}

func (b *threshold) OutputPins() []block.Pin {
	return []block.Pin{
		outPin("out", "bool", value.Bool(false)),
		outPin("value", "float", value.Float(0)),
	}
}

func (b *threshold) SetInput(pin string, v value.Value) {
	if pin == "in" {
		b.in = v
	}
}

func (b *threshold) Execute() bool {
	b.out = value.Bool(b.in.AsFloat() > b.level)
	return true
}

func (b *threshold) GetOutput(pin string) value.Value {
	switch pin {
	case "out":
		return b.out
	case "value":
		return b.in
	default:
		return value.Value{}
	}
}

func (b *threshold) Shutdown() {}
