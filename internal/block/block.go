// Package block defines the plug-in contract between the runtime and
// block implementations, and the registry that resolves manifest
// descriptors to loaded factories.
//
// A block is a black-box stateful processor. The scheduler is the only
// caller of SetInput, Execute and GetOutput and never calls them
// concurrently. InputPins and OutputPins are also called by the HTTP
// block listing from its own goroutines, so those two may run
// concurrently with a tick.
package block

import "github.com/rakunlabs/edgeflow/internal/value"

// Direction tells whether a pin consumes or produces values.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Pin is a named input or output on a block instance. Type is advisory
// metadata for the graph builder; transport always uses value.Value.
type Pin struct {
	Name      string      `json:"name"`
	Direction Direction   `json:"direction"`
	Type      string      `json:"type"`
	Default   value.Value `json:"-"`
}

// Block is the contract every plug-in implements.
//
// Lifecycle: created by a factory, Initialize exactly once, Execute
// zero or more times, Shutdown exactly once. Shutdown must be
// idempotent.
type Block interface {
	// Initialize performs one-time setup with the node's config map.
	// Returning false signals a degraded state (typically absent
	// hardware); the node stays in the graph regardless.
	Initialize(config map[string]string) bool

	// ID and Version self-identify the implementation and must match
	// the descriptor that was requested.
	ID() string
	Version() string

	// InputPins and OutputPins are stable for the instance lifetime.
	InputPins() []Pin
	OutputPins() []Pin

	// SetInput supplies a value for an input pin, overwriting any prior
	// value not yet consumed this tick. Unknown pins are ignored.
	SetInput(pin string, v value.Value)

	// Execute advances one tick. Returning false signals a recoverable
	// per-tick failure: counted and logged, never fatal.
	Execute() bool

	// GetOutput returns the current value on an output pin. Unknown
	// pins yield the zero Value.
	GetOutput(pin string) value.Value

	// Shutdown releases resources.
	Shutdown()
}

// Factory creates a fresh block instance.
type Factory func() Block

// Destructor releases an instance created by the matching Factory.
// Artifact-loaded blocks may need it to free native resources; builtin
// blocks usually leave it nil.
type Destructor func(Block)

// Exported symbol names every block artifact must provide.
const (
	SymbolFactory    = "NewBlock"
	SymbolDestructor = "DestroyBlock"
)
