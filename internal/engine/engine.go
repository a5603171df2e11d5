// Package engine drives the executable graph: a single control
// goroutine ticks the pipeline at a configured rate, transporting
// values along connections between block executions.
//
// One tick is Propagate → Execute → Harvest. Propagation reads the
// output buffers filled by the previous tick's harvest, so a downstream
// block on tick N observes what its upstream produced on tick N−1.
// Per-tick block failures are counted and tolerated; the failed block's
// output buffers keep their previous contents so downstream consumers
// see the last good value.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rakunlabs/edgeflow/internal/graph"
	"github.com/rakunlabs/edgeflow/internal/metrics"
)

// Options configure the tick loop.
type Options struct {
	// Rate is the target tick rate in Hz. Values <= 0 fall back to the
	// default of 10 Hz.
	Rate float64

	// Iterations stops the loop after this many ticks. Zero means run
	// until cancelled.
	Iterations uint64
}

// DefaultRate is the tick rate used when none is configured.
const DefaultRate = 10.0

// Status is the scheduler state snapshot exposed to the HTTP surface.
type Status struct {
	Running    bool    `json:"running"`
	Ticks      uint64  `json:"ticks"`
	Lags       uint64  `json:"lags"`
	RateHz     float64 `json:"rate_hz"`
	Order      []int   `json:"execution_order"`
	Degraded   []int   `json:"degraded_nodes,omitempty"`
	SkippedIDs []int   `json:"skipped_nodes,omitempty"`
}

// Engine executes a built graph. SetInput, Execute and GetOutput are
// called only from the goroutine running Run; Initialize and Shutdown
// run outside the tick loop. Concurrent readers touch the status
// snapshot and the metrics collector, and the HTTP block listing calls
// InputPins and OutputPins on the live blocks.
type Engine struct {
	graph     *graph.Graph
	collector *metrics.Collector
	period    time.Duration
	rate      float64
	maxIters  uint64

	mu          sync.Mutex
	running     bool
	initialized bool
	shutdown    bool
	ticks       uint64
	lags        uint64
	degraded    []int

	// failed marks nodes whose Execute returned false this tick, so
	// harvest leaves their output buffers untouched.
	failed map[int]bool

	// finished closes when the configured iteration count is reached.
	finished     chan struct{}
	finishedOnce sync.Once
}

// New creates an engine over a built graph.
func New(g *graph.Graph, collector *metrics.Collector, opts Options) *Engine {
	rate := opts.Rate
	if rate <= 0 {
		rate = DefaultRate
	}

	return &Engine{
		graph:     g,
		collector: collector,
		rate:      rate,
		period:    time.Duration(float64(time.Second) / rate),
		maxIters:  opts.Iterations,
		failed:    make(map[int]bool),
		finished:  make(chan struct{}),
	}
}

// Finished closes once the configured iteration count is reached.
// Engines without an iteration limit never finish on their own.
func (e *Engine) Finished() <-chan struct{} { return e.finished }

// Initialize calls Initialize on every node exactly once, in no
// particular order. Nodes whose initializer returns false are marked
// degraded and stay in the graph.
func (e *Engine) Initialize() {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return
	}
	e.initialized = true
	e.mu.Unlock()

	var degraded []int
	for _, node := range e.graph.Nodes {
		node.InitOK = node.Block.Initialize(node.Config)
		if !node.InitOK {
			degraded = append(degraded, node.ID)
			slog.Warn("block initialize failed, running degraded",
				"node_id", node.ID, "block", node.Descriptor.Key())
		}
	}

	e.mu.Lock()
	e.degraded = degraded
	e.mu.Unlock()
}

// Run ticks the graph until the context is cancelled or the configured
// iteration count is reached. It calls Initialize if that has not
// happened yet, so a bare Run is enough for embedded use.
func (e *Engine) Run(ctx context.Context) {
	e.Initialize()

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		started := time.Now()
		e.Tick()
		elapsed := time.Since(started)

		e.mu.Lock()
		ticks := e.ticks
		if elapsed > e.period {
			e.lags++
			slog.Debug("tick lag", "elapsed", elapsed, "period", e.period, "lags", e.lags)
		}
		e.mu.Unlock()

		if sleep := e.period - elapsed; sleep > 0 {
			timer.Reset(sleep)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}

		if e.maxIters > 0 && ticks >= e.maxIters {
			e.finishedOnce.Do(func() { close(e.finished) })
			return
		}
	}
}

// Tick runs one Propagate → Execute → Harvest cycle.
func (e *Engine) Tick() {
	e.propagate()
	e.execute()
	e.harvest()

	e.mu.Lock()
	e.ticks++
	e.mu.Unlock()
}

// propagate carries each connection's source output (previous tick, or
// the pin default before the first harvest) to the destination buffer
// and block.
func (e *Engine) propagate() {
	for _, c := range e.graph.Connections {
		src := e.graph.Nodes[c.FromNodeID]
		dst := e.graph.Nodes[c.ToNodeID]

		v, ok := src.OutputValues[c.FromPin]
		if !ok {
			pin, _ := src.OutputPin(c.FromPin)
			v = pin.Default
		}

		dst.InputValues[c.ToPin] = v
		dst.Block.SetInput(c.ToPin, v)
	}
}

// execute runs every node in topological order, measuring wall latency.
// A false return increments the block's error counter and execution
// continues.
func (e *Engine) execute() {
	clear(e.failed)

	for _, id := range e.graph.Order {
		node := e.graph.Nodes[id]

		started := time.Now()
		ok := node.Block.Execute()
		latency := time.Since(started)

		e.collector.RecordExecution(node.Descriptor.ID, latency)
		if !ok {
			e.failed[id] = true
			e.collector.RecordError(node.Descriptor.ID)
			slog.Debug("block execute failed", "node_id", id, "block", node.Descriptor.ID)
		}
	}
}

// harvest pulls every output pin into the node's output buffer for the
// next tick's propagation. Failed nodes keep their previous buffers.
func (e *Engine) harvest() {
	for _, id := range e.graph.Order {
		if e.failed[id] {
			continue
		}

		node := e.graph.Nodes[id]
		for _, pin := range node.Block.OutputPins() {
			v := node.Block.GetOutput(pin.Name)
			node.OutputValues[pin.Name] = v
			e.collector.RecordOutput(node.Descriptor.ID, pin.Name, v.Repr(), v.Kind().String())
		}
	}
}

// Shutdown calls Shutdown on every node in reverse execution order,
// regardless of initialization outcome. Idempotent.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return
	}
	e.shutdown = true
	e.mu.Unlock()

	for i := len(e.graph.Order) - 1; i >= 0; i-- {
		node := e.graph.Nodes[e.graph.Order[i]]
		node.Block.Shutdown()
		node.Handle.Destroy(node.Block)
	}
}

// Status returns a copy of the scheduler's observable state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Running: e.running,
		Ticks:   e.ticks,
		Lags:    e.lags,
		RateHz:  e.rate,
		Order:   append([]int(nil), e.graph.Order...),
	}

	st.Degraded = append([]int(nil), e.degraded...)
	for _, sk := range e.graph.Skipped {
		st.SkippedIDs = append(st.SkippedIDs, sk.NodeID)
	}

	return st
}

// Graph exposes the immutable graph for read-only introspection.
func (e *Engine) Graph() *graph.Graph { return e.graph }
