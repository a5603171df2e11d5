package blocks

import (
	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// constSource emits a fixed float on every tick.
//
// Config:
//
//	"value": float — the constant to emit (default 1.0)
//
// Output pins: "out"
type constSource struct {
	val value.Value
	out value.Value
}

func init() {
	block.RegisterBuiltin("const-source", func() block.Block { return &constSource{} })
}

func (b *constSource) ID() string      { return "const-source" }
func (b *constSource) Version() string { return Version }

func (b *constSource) Initialize(config map[string]string) bool {
	f, ok := configFloat(config, "value", 1.0)
	b.val = value.Float(f)
	return ok
}

func (b *constSource) InputPins() []block.Pin { return nil }

func (b *constSource) OutputPins() []block.Pin {
	return []block.Pin{outPin("out", "float", value.Float(0))}
}

func (b *constSource) SetInput(string, value.Value) {}

func (b *constSource) Execute() bool {
	b.out = b.val
	return true
}

func (b *constSource) GetOutput(pin string) value.Value {
	if pin == "out" {
		return b.out
	}
	return value.Value{}
}

func (b *constSource) Shutdown() {}
