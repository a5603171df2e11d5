package blocks

import (
	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// addOne adds one to its input. Mostly useful for wiring tests and
// demo pipelines.
//
// Input pins:  "in" (default 0)
// Output pins: "out"
type addOne struct {
	in  value.Value
	out value.Value
}

func init() {
	block.RegisterBuiltin("add-one", func() block.Block { return &addOne{} })
}

func (b *addOne) ID() string      { return "add-one" }
func (b *addOne) Version() string { return Version }

func (b *addOne) Initialize(map[string]string) bool { return true }

func (b *addOne) InputPins() []block.Pin {
	return []block.Pin{inPin("in", "float", value.Float(0))}
}

func (b *addOne) OutputPins() []block.Pin {
	return []block.Pin{outPin("out", "float", value.Float(0))}
}

func (b *addOne) SetInput(pin string, v value.Value) {
	if pin == "in" {
		b.in = v
	}
}

func (b *addOne) Execute() bool {
	b.out = value.Float(b.in.AsFloat() + 1)
	return true
}

func (b *addOne) GetOutput(pin string) value.Value {
	if pin == "out" {
		return b.out
	}
	return value.Value{}
}

func (b *addOne) Shutdown() {}
