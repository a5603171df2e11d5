package blocks

import (
	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// movingAverage smooths its input with a fixed-size window mean. Until
// the window fills, the mean is over the samples seen so far.
//
// Config:
//
//	"window": int — number of samples (default 10, minimum 1)
//
// Input pins:  "in"
// Output pins: "out"
type movingAverage struct {
	window []float64
	next   int
	filled int
	sum    float64
	in     value.Value
	out    value.Value
}

func init() {
	block.RegisterBuiltin("moving-average", func() block.Block { return &movingAverage{} })
}

func (b *movingAverage) ID() string      { return "moving-average" }
func (b *movingAverage) Version() string { return Version }

func (b *movingAverage) Initialize(config map[string]string) bool {
	n, ok := configInt(config, "window", 10)
	if n < 1 {
		n = 1
		ok = false
	}

	b.window = make([]float64, n)
	return ok
}

func (b *movingAverage) InputPins() []block.Pin {
	return []block.Pin{inPin("in", "float", value.Float(0))}
}

func (b *movingAverage) OutputPins() []block.Pin {
	return []block.Pin{outPin("out", "float", value.Float(0))}
}

func (b *movingAverage) SetInput(pin string, v value.Value) {
	if pin == "in" {
		b.in = v
	}
}

func (b *movingAverage) Execute() bool {
	sample := b.in.AsFloat()

	if b.filled == len(b.window) {
		b.sum -= b.window[b.next]
	} else {
		b.filled++
	}

	b.window[b.next] = sample
	b.sum += sample
	b.next = (b.next + 1) % len(b.window)

	b.out = value.Float(b.sum / float64(b.filled))
	return true
}

func (b *movingAverage) GetOutput(pin string) value.Value {
	if pin == "out" {
		return b.out
	}
	return value.Value{}
}

func (b *movingAverage) Shutdown() {}
