package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Controller is the runtime-control facade over the engine: it owns the
// goroutine running the tick loop and serializes start/stop/restart
// requests coming from the HTTP surface and the orchestrator.
//
// Stopping the controller pauses ticking; block state and metrics are
// kept, so a subsequent start resumes the pipeline. Tearing down blocks
// is the orchestrator's job via Engine.Shutdown at process stop.
type Controller struct {
	engine *Engine
	parent context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController wraps an engine. The parent context bounds every run:
// when it is cancelled the loop stops for good.
func NewController(parent context.Context, e *Engine) *Controller {
	return &Controller{engine: e, parent: parent}
}

// Start launches the tick loop if it is not already running.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(c.parent)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		c.engine.Run(ctx)

		// Clear ownership when the loop ends on its own (iteration
		// limit or parent cancellation), so Start works again.
		c.mu.Lock()
		if c.done == done {
			c.cancel = nil
			c.done = nil
		}
		c.mu.Unlock()
	}()

	slog.Info("scheduler started", "rate_hz", c.engine.rate)
}

// Stop cancels the tick loop and waits for the current tick to finish.
// No-op when not running.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	slog.Info("scheduler stopped", "ticks", c.engine.Status().Ticks)
}

// Restart stops the loop if running and starts it again.
func (c *Controller) Restart() {
	c.Stop()
	c.Start()
}

// Status proxies the engine's snapshot.
func (c *Controller) Status() Status { return c.engine.Status() }

// Engine returns the controlled engine.
func (c *Controller) Engine() *Engine { return c.engine }
