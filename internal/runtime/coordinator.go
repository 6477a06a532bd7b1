// Package runtime owns process lifecycle: it starts the long-running
// components, waits for a shutdown signal and stops them in reverse order.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Component is a long-running part of the process.
type Component interface {
	// Start begins work in the background. A returned error aborts startup.
	Start(ctx context.Context) error
	// Stop ends work and blocks until the component has exited.
	Stop()
}

// ErrShutdownTimeout is returned when a component outlives the shutdown timeout.
var ErrShutdownTimeout = errors.New("shutdown timed out")

type registered struct {
	name      string
	component Component
}

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	// ShutdownTimeout bounds the whole reverse-order stop (default: 30s).
	ShutdownTimeout time.Duration
	// Signals that trigger shutdown (default: SIGINT, SIGTERM).
	Signals []os.Signal
	Logger  *slog.Logger
}

// Coordinator starts registered components in order and stops them in
// reverse order once the root context ends.
type Coordinator struct {
	timeout time.Duration
	signals []os.Signal
	logger  *slog.Logger

	mu         sync.Mutex
	components []registered
	closers    []func() error
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		timeout: cfg.ShutdownTimeout,
		signals: cfg.Signals,
		logger:  logger,
	}
}

// Register adds a component. Components start in registration order.
func (c *Coordinator) Register(name string, component Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, registered{name: name, component: component})
}

// OnClose registers a cleanup run after every component has stopped,
// in reverse registration order. Used for connections and clients.
func (c *Coordinator) OnClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Run starts all components and blocks until ctx is cancelled or a
// shutdown signal arrives, then stops everything. A start failure stops
// the components already started and is returned.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, c.signals...)
	defer stop()

	c.mu.Lock()
	components := append([]registered(nil), c.components...)
	c.mu.Unlock()

	started := 0
	var startErr error
	for _, r := range components {
		if err := r.component.Start(ctx); err != nil {
			startErr = fmt.Errorf("failed to start %s: %w", r.name, err)
			c.logger.Error("component failed to start", "component", r.name, "error", err)
			break
		}
		c.logger.Info("component started", "component", r.name)
		started++
	}

	if startErr == nil {
		<-ctx.Done()
		c.logger.Info("shutdown requested", "cause", context.Cause(ctx))
	}

	stopErr := c.shutdown(components[:started])
	return errors.Join(startErr, stopErr)
}

// shutdown stops components in reverse order within the timeout, then
// runs the closers.
func (c *Coordinator) shutdown(components []registered) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(components) - 1; i >= 0; i-- {
			r := components[i]
			c.logger.Info("stopping component", "component", r.name)
			r.component.Stop()
		}
	}()

	var err error
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		err = fmt.Errorf("%w after %s", ErrShutdownTimeout, c.timeout)
		c.logger.Error("components did not stop in time", "timeout", c.timeout)
	}

	c.mu.Lock()
	closers := append([]func() error(nil), c.closers...)
	c.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		if cerr := closers[i](); cerr != nil {
			c.logger.Warn("close failed", "error", cerr)
		}
	}

	if err == nil {
		c.logger.Info("shutdown complete")
	}
	return err
}
