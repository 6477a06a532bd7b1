package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.Enumerator = (*Enumerator)(nil)

// Enumerator walks a connector's paginated listing and forwards new items to
// the ingestion entrypoint with bounded concurrency.
//
// Pages are listed strictly in sequence. Items within a page are fetched
// concurrently; each accepted item holds one semaphore slot for its existence
// check, fetch and forward. A failing item is logged and counted and never
// stops the sweep.
type Enumerator struct {
	entrypoint  driven.IngestionEntrypoint
	pageSize    int64
	expandLimit int
	logger      *slog.Logger
}

// EnumeratorConfig holds configuration for the enumerator.
type EnumeratorConfig struct {
	Entrypoint        driven.IngestionEntrypoint
	Logger            *slog.Logger
	PageSize          int64 // Items requested per listing page (0 leaves it to the connector)
	ExpandConcurrency int   // Containers expanded concurrently, e.g. mail messages (default: 20)
}

// NewEnumerator creates a new enumerator.
func NewEnumerator(cfg EnumeratorConfig) *Enumerator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	expandLimit := cfg.ExpandConcurrency
	if expandLimit <= 0 {
		expandLimit = 20
	}

	return &Enumerator{
		entrypoint:  cfg.Entrypoint,
		pageSize:    cfg.PageSize,
		expandLimit: expandLimit,
		logger:      logger,
	}
}

// sweepCounters are shared by the tasks of one sweep.
type sweepCounters struct {
	expanded  atomic.Int64
	filtered  atomic.Int64
	existing  atomic.Int64
	forwarded atomic.Int64
	failed    atomic.Int64
}

// EnumerateAndFetch runs one full sweep and returns its counters.
// The number of forwarded items is result.Forwarded.
//
// Cancelling ctx stops listing and dispatching; tasks already holding a slot
// run to completion. A listing failure ends the sweep with an error after
// in-flight tasks finish.
func (e *Enumerator) EnumerateAndFetch(ctx context.Context, conn driven.Connector, filter domain.ItemFilter, limit int) (*domain.SweepResult, error) {
	return e.Sweep(ctx, conn, filter, domain.SweepLimits{Items: limit})
}

// Sweep runs one full sweep with explicit limits. limits.Containers bounds
// how many containers are expanded at once and falls back to the
// enumerator's ExpandConcurrency when zero.
func (e *Enumerator) Sweep(ctx context.Context, conn driven.Connector, filter domain.ItemFilter, limits domain.SweepLimits) (*domain.SweepResult, error) {
	limit := limits.Items
	if limit <= 0 {
		limit = 1
	}
	expandLimit := limits.Containers
	if expandLimit <= 0 {
		expandLimit = e.expandLimit
	}
	if filter == nil {
		filter = domain.AcceptAll
	}

	start := time.Now()
	logger := e.logger.With("connector", conn.Name())
	logger.Info("sweep started", "concurrency", limit, "expand_concurrency", expandLimit, "page_size", e.pageSize)

	items := semaphore.NewWeighted(int64(limit))
	expander, expands := conn.(driven.ItemExpander)
	var containers *semaphore.Weighted
	if expands {
		containers = semaphore.NewWeighted(int64(expandLimit))
	}

	result := &domain.SweepResult{Connector: conn.Name()}
	counters := &sweepCounters{}
	var wg sync.WaitGroup
	var sweepErr error

	cursor := domain.ConnectorCursor{PageSize: e.pageSize}

pages:
	for {
		if err := ctx.Err(); err != nil {
			sweepErr = err
			break
		}

		page, err := conn.List(ctx, cursor)
		if err != nil {
			sweepErr = fmt.Errorf("failed to list page %d: %w", result.Pages+1, err)
			break
		}
		result.Pages++
		result.Listed += len(page.Items)

		for _, item := range page.Items {
			if expands {
				if err := containers.Acquire(ctx, 1); err != nil {
					sweepErr = err
					break pages
				}
				wg.Add(1)
				go func(item domain.RemoteItem) {
					defer wg.Done()
					defer containers.Release(1)
					e.expand(ctx, conn, expander, item, filter, items, counters, logger)
				}(item)
				continue
			}

			if err := e.dispatch(ctx, conn, item, filter, items, &wg, counters, logger); err != nil {
				sweepErr = err
				break pages
			}
		}

		if page.NextPageToken == "" {
			break
		}
		cursor.PageToken = page.NextPageToken
	}

	wg.Wait()

	result.Expanded = int(counters.expanded.Load())
	result.Filtered = int(counters.filtered.Load())
	result.Existing = int(counters.existing.Load())
	result.Forwarded = int(counters.forwarded.Load())
	result.Failed = int(counters.failed.Load())
	result.Duration = time.Since(start)

	attrs := []any{
		"pages", result.Pages,
		"listed", result.Listed,
		"filtered", result.Filtered,
		"existing", result.Existing,
		"forwarded", result.Forwarded,
		"failed", result.Failed,
		"duration", result.Duration,
	}
	if sweepErr != nil {
		logger.Error("sweep aborted", append(attrs, "error", sweepErr)...)
		return result, sweepErr
	}
	logger.Info("sweep completed", attrs...)
	return result, nil
}

// expand resolves a container into its items and dispatches them. The
// container slot is held until all of its items are done.
func (e *Enumerator) expand(ctx context.Context, conn driven.Connector, expander driven.ItemExpander, container domain.RemoteItem, filter domain.ItemFilter, items *semaphore.Weighted, counters *sweepCounters, logger *slog.Logger) {
	children, err := expander.Expand(context.WithoutCancel(ctx), container)
	if err != nil {
		counters.failed.Add(1)
		logger.Warn("failed to expand item", "item_id", container.ID, "error", err)
		return
	}
	counters.expanded.Add(int64(len(children)))

	var wg sync.WaitGroup
	for _, child := range children {
		if err := e.dispatch(ctx, conn, child, filter, items, &wg, counters, logger); err != nil {
			break
		}
	}
	wg.Wait()
}

// dispatch filters an item and, if accepted, waits for a slot and starts its task.
// It only fails when ctx is cancelled while waiting for a slot.
func (e *Enumerator) dispatch(ctx context.Context, conn driven.Connector, item domain.RemoteItem, filter domain.ItemFilter, items *semaphore.Weighted, wg *sync.WaitGroup, counters *sweepCounters, logger *slog.Logger) error {
	if !filter(item) {
		counters.filtered.Add(1)
		logger.Debug("item filtered", "item_id", item.ID, "name", item.Name)
		return nil
	}

	if err := items.Acquire(ctx, 1); err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer items.Release(1)
		e.process(context.WithoutCancel(ctx), conn, item, counters, logger)
	}()
	return nil
}

// process runs exists-check, fetch and forward for one item.
func (e *Enumerator) process(ctx context.Context, conn driven.Connector, item domain.RemoteItem, counters *sweepCounters, logger *slog.Logger) {
	logger = logger.With("item_id", item.ID, "name", item.Name)

	exists, err := e.entrypoint.Exists(ctx, item.Name)
	if err != nil {
		counters.failed.Add(1)
		logger.Warn("existence check failed", "error", err)
		return
	}
	if exists {
		counters.existing.Add(1)
		logger.Debug("item already ingested")
		return
	}

	fetched, err := conn.Fetch(ctx, item)
	if err != nil {
		counters.failed.Add(1)
		logger.Warn("failed to fetch item", "error", err)
		return
	}
	if fetched.Name == "" {
		fetched.Name = item.Name
	}
	if fetched.ContentType == "" {
		fetched.ContentType = item.ContentType
	}

	id, err := e.entrypoint.Submit(ctx, fetched)
	if err != nil {
		counters.failed.Add(1)
		logger.Warn("failed to forward item", "error", err)
		return
	}

	counters.forwarded.Add(1)
	logger.Info("item forwarded", "document_id", id)
}
