package blocks

import (
	"log/slog"

	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// sink terminates a chain: it stores the last input and republishes it
// on the "last" output pin so dashboards and tests can observe it.
//
// Config:
//
//	"log": "true" to log each stored value at debug level
//
// Input pins:  "in"
// Output pins: "last"
type sink struct {
	logEach bool

	in   value.Value
	last value.Value
}

func init() {
	block.RegisterBuiltin("sink", func() block.Block { return &sink{} })
}

func (b *sink) ID() string      { return "sink" }
func (b *sink) Version() string { return Version }

func (b *sink) Initialize(config map[string]string) bool {
	b.logEach = config["log"] == "true"
	return true
}

func (b *sink) InputPins() []block.Pin {
	return []block.Pin{inPin("in", "float", value.Float(0))}
}

func (b *sink) OutputPins() []block.Pin {
	return []block.Pin{outPin("last", "float", value.Float(0))}
}

func (b *sink) SetInput(pin string, v value.Value) {
	if pin == "in" {
		b.in = v
	}
}

func (b *sink) Execute() bool {
	b.last = b.in
	if b.logEach {
		slog.Debug("sink", "value", b.last.Repr(), "type", b.last.Kind().String())
	}
	return true
}

func (b *sink) GetOutput(pin string) value.Value {
	if pin == "last" {
		return b.last
	}
	return value.Value{}
}

func (b *sink) Shutdown() {}
