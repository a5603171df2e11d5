// Package metrics aggregates per-block execution counters and samples
// process/system vitals. A single collector is shared between the
// scheduler (writer) and the HTTP surface (reader); all access goes
// through one internal lock, held only for the duration of an update or
// a snapshot copy.
package metrics

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Block holds the accumulated counters for one block id.
type Block struct {
	ID              string  `json:"id"`
	ExecutionCount  uint64  `json:"execution_count"`
	ErrorCount      uint64  `json:"error_count"`
	TotalLatencyMS  float64 `json:"total_latency_ms"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
	LastExecutionMS int64   `json:"last_execution_ms"` // unix epoch milliseconds
	LastOutputPin   string  `json:"last_output_pin"`
	LastOutput      string  `json:"last_output"`
	LastOutputType  string  `json:"last_output_type"`
}

// System is the process/system vitals snapshot, sampled lazily when a
// snapshot is requested.
type System struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	CPUPercent    float64 `json:"cpu_percent"`
}

// Snapshot is the JSON shape served by the metrics endpoint.
type Snapshot struct {
	Blocks    []Block `json:"blocks"`
	System    System  `json:"system"`
	Timestamp int64   `json:"timestamp"` // unix epoch milliseconds
}

// Collector accumulates block metrics monotonically until an explicit
// reset. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	blocks map[string]*Block

	start time.Time
	proc  *process.Process

	// CPU usage is derived from successive deltas of the process-wide
	// busy counter; the first sample reports zero.
	lastCPUBusy float64
	lastCPUAt   time.Time
}

// NewCollector creates a collector with its uptime reference set to now.
func NewCollector() *Collector {
	c := &Collector{
		blocks: make(map[string]*Block),
		start:  time.Now(),
	}

	// Process handle failure leaves CPU sampling at zero; everything
	// else still works.
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = p
	}

	return c
}

// RecordExecution updates count, cumulative latency, derived mean and
// the last-execution timestamp for a block.
func (c *Collector) RecordExecution(blockID string, latency time.Duration) {
	latencyMS := float64(latency) / float64(time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.block(blockID)
	b.ExecutionCount++
	b.TotalLatencyMS += latencyMS
	b.AvgLatencyMS = b.TotalLatencyMS / float64(b.ExecutionCount)
	b.LastExecutionMS = time.Now().UnixMilli()
}

// RecordError counts a recoverable per-tick execution failure.
func (c *Collector) RecordError(blockID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.block(blockID).ErrorCount++
}

// RecordOutput updates the last-output fields read by the HTTP surface.
func (c *Collector) RecordOutput(blockID, pin, repr, typeTag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.block(blockID)
	b.LastOutputPin = pin
	b.LastOutput = repr
	b.LastOutputType = typeTag
}

// block returns the entry for id, creating it on first use. Caller
// holds c.mu.
func (c *Collector) block(id string) *Block {
	b, ok := c.blocks[id]
	if !ok {
		b = &Block{ID: id}
		c.blocks[id] = b
	}
	return b
}

// Block returns a copy of one block's counters.
func (c *Collector) Block(id string) (Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[id]
	if !ok {
		return Block{}, false
	}
	return *b, true
}

// Reset clears every block counter. The scheduler is unaffected.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks = make(map[string]*Block)
}

// ResetBlock clears the counters of a single block.
func (c *Collector) ResetBlock(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.blocks, id)
}

// Snapshot copies the block table under the lock, then samples system
// vitals outside of it so OS queries never block the scheduler.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	blocks := make([]Block, 0, len(c.blocks))
	for _, b := range c.blocks {
		blocks = append(blocks, *b)
	}
	c.mu.Unlock()

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })

	return Snapshot{
		Blocks:    blocks,
		System:    c.sampleSystem(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// sampleSystem queries the OS for memory and CPU vitals.
func (c *Collector) sampleSystem() System {
	s := System{
		UptimeSeconds: time.Since(c.start).Seconds(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
		s.MemoryTotalMB = float64(vm.Total) / (1024 * 1024)
	}

	s.CPUPercent = c.sampleCPU()

	return s
}

// sampleCPU computes usage from the delta of the process-wide busy
// counter since the previous sample. The first call reports zero.
func (c *Collector) sampleCPU() float64 {
	if c.proc == nil {
		return 0
	}

	times, err := c.proc.Times()
	if err != nil {
		return 0
	}
	busy := times.User + times.System
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastCPUAt.IsZero() {
		c.lastCPUBusy = busy
		c.lastCPUAt = now
		return 0
	}

	wall := now.Sub(c.lastCPUAt).Seconds()
	delta := busy - c.lastCPUBusy
	c.lastCPUBusy = busy
	c.lastCPUAt = now

	if wall <= 0 || delta < 0 {
		return 0
	}

	return delta / wall * 100
}
