package blocks

import (
	"math"

	"github.com/rakunlabs/edgeflow/internal/block"
	"github.com/rakunlabs/edgeflow/internal/value"
)

// sineSource generates a sine wave sampled once per tick. The sample
// clock is the tick counter, so the waveform is deterministic and
// independent of wall time.
//
// Config:
//
//	"amplitude":   float — peak amplitude (default 1.0)
//	"frequency":   float — cycles per second at sample_rate (default 1.0)
//	"phase":       float — phase offset in radians (default 0)
//	"sample_rate": float — ticks per second the wave assumes (default 10)
//
// Output pins: "out"
type sineSource struct {
	amplitude  float64
	frequency  float64
	phase      float64
	sampleRate float64

	tick int64
	out  value.Value
}

func init() {
	block.RegisterBuiltin("sine-source", func() block.Block { return &sineSource{} })
}

func (b *sineSource) ID() string      { return "sine-source" }
func (b *sineSource) Version() string { return Version }

func (b *sineSource) Initialize(config map[string]string) bool {
	ok := true

	var valid bool
	b.amplitude, valid = configFloat(config, "amplitude", 1.0)
	ok = ok && valid
	b.frequency, valid = configFloat(config, "frequency", 1.0)
	ok = ok && valid
	b.phase, valid = configFloat(config, "phase", 0)
	ok = ok && valid
	b.sampleRate, valid = configFloat(config, "sample_rate", 10)
	ok = ok && valid

	if b.sampleRate <= 0 {
		b.sampleRate = 10
		ok = false
	}

	return ok
}

func (b *sineSource) InputPins() []block.Pin { return nil }

func (b *sineSource) OutputPins() []block.Pin {
	return []block.Pin{outPin("out", "float", value.Float(0))}
}

func (b *sineSource) SetInput(string, value.Value) {}

func (b *sineSource) Execute() bool {
	t := float64(b.tick) / b.sampleRate
	b.out = value.Float(b.amplitude * math.Sin(2*math.Pi*b.frequency*t+b.phase))
	b.tick++
	return true
}

func (b *sineSource) GetOutput(pin string) value.Value {
	if pin == "out" {
		return b.out
	}
	return value.Value{}
}

func (b *sineSource) Shutdown() {}
