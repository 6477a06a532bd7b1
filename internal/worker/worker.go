package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driving"
)

// State is a position in the worker lifecycle.
type State string

const (
	StateIdle        State = "idle"
	StateSubscribing State = "subscribing"
	StateListening   State = "listening"
	StateProcessing  State = "processing"
	StateCancelling  State = "cancelling"
	StateStopped     State = "stopped"
)

// Worker consumes document notifications and runs ingestion for each one.
// Items are processed one at a time in arrival order.
type Worker struct {
	subscriber driven.Subscriber
	ingestion  driving.IngestionService
	logger     *slog.Logger

	// Internal state
	mu      sync.RWMutex
	state   State
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	received  atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	lastAt    atomic.Int64
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Subscriber driven.Subscriber
	Ingestion  driving.IngestionService
	Logger     *slog.Logger
}

// NewWorker creates a new ingestion worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		subscriber: cfg.Subscriber,
		ingestion:  cfg.Ingestion,
		logger:     logger,
		state:      StateIdle,
	}
}

// Start subscribes to the notification channel and begins the worker loop.
// A subscription failure is returned and the worker does not start.
// The loop runs until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.state = StateSubscribing
	w.mu.Unlock()

	w.logger.Info("worker subscribing")

	sub, err := w.subscriber.Subscribe(ctx)
	if err != nil {
		w.setState(StateStopped)
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	w.mu.Lock()
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.state = StateListening
	w.mu.Unlock()

	w.logger.Info("worker listening")

	go func() {
		defer close(w.doneCh)
		w.loop(ctx, sub)
	}()

	return nil
}

// Stop interrupts the listening wait, lets the current item finish and
// waits for the loop to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker loop exits.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// loop is the listening loop. Receiving a message is its only wait.
func (w *Worker) loop(ctx context.Context, sub driven.Subscription) {
	defer func() {
		w.setState(StateCancelling)
		if err := sub.Close(); err != nil {
			w.logger.Warn("failed to close subscription", "error", err)
		}
		w.setState(StateStopped)
	}()

	for {
		// select picks randomly among ready cases, so a stop that arrived
		// while an item was in flight must win over buffered messages.
		if w.stopping(ctx) {
			return
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			w.logger.Info("worker stop signal received")
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				w.logger.Warn("notification subscription closed")
				return
			}
			if w.stopping(ctx) {
				w.logger.Debug("discarding message received during shutdown", "channel", msg.Channel)
				return
			}
			w.handle(ctx, msg)
		}
	}
}

// stopping reports without blocking whether ctx is done or Stop was called.
func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		w.logger.Info("worker context cancelled")
		return true
	case <-w.stopCh:
		w.logger.Info("worker stop signal received")
		return true
	default:
		return false
	}
}

// handle processes one notification. It never returns an error: every
// per-item failure is logged and the worker goes back to listening.
func (w *Worker) handle(ctx context.Context, msg domain.NotificationMessage) {
	if !msg.IsData() {
		w.logger.Debug("ignoring control message", "channel", msg.Channel, "kind", msg.Kind)
		return
	}
	w.received.Add(1)

	meta, err := domain.DecodeMetadata(msg.Payload)
	if err != nil {
		w.dropped.Add(1)
		w.logger.Warn("dropping malformed notification", "channel", msg.Channel, "error", err)
		return
	}

	w.setState(StateProcessing)
	defer w.setState(StateListening)

	logger := w.logger.With("document_id", meta.ID, "filename", meta.Filename)
	logger.Info("processing document")

	// The current item completes even if shutdown begins mid-way.
	result, err := w.ingestion.Ingest(context.WithoutCancel(ctx), meta)
	w.lastAt.Store(time.Now().UnixNano())
	if err != nil {
		var pe *domain.ParseError
		switch {
		case errors.As(err, &pe):
			w.dropped.Add(1)
			logger.Warn("dropping unparseable document", "error", err)
		case errors.Is(err, domain.ErrNotFound):
			w.dropped.Add(1)
			logger.Warn("dropping document with missing blob", "error", err)
		default:
			w.failed.Add(1)
			logger.Error("document ingestion failed", "error", err)
		}
		return
	}

	w.processed.Add(1)
	logger.Debug("document processed",
		"chunks", result.Chunks,
		"failed_backends", result.FailedBackends(),
	)
}

// Health reports the worker's state and counters.
type Health struct {
	Running       bool       `json:"running"`
	State         State      `json:"state"`
	Received      int64      `json:"received"`
	Processed     int64      `json:"processed"`
	Dropped       int64      `json:"dropped"`
	Failed        int64      `json:"failed"`
	LastProcessed *time.Time `json:"last_processed,omitempty"`
	BrokerHealth  bool       `json:"broker_health"`
	Error         string     `json:"error,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	health := Health{
		Running: w.running,
		State:   w.state,
	}
	w.mu.RUnlock()

	health.Received = w.received.Load()
	health.Processed = w.processed.Load()
	health.Dropped = w.dropped.Load()
	health.Failed = w.failed.Load()
	if ns := w.lastAt.Load(); ns > 0 {
		t := time.Unix(0, ns).UTC()
		health.LastProcessed = &t
	}

	health.BrokerHealth = true
	if p, ok := w.subscriber.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			health.BrokerHealth = false
			health.Error = err.Error()
		}
	}

	return health
}
