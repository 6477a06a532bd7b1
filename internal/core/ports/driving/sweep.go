package driving

import (
	"context"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Enumerator runs one full enumeration sweep over a connector.
type Enumerator interface {
	// EnumerateAndFetch lists every page, filters items, deduplicates against
	// the ingestion entrypoint and forwards new items with at most limit
	// concurrent fetches.
	EnumerateAndFetch(ctx context.Context, conn driven.Connector, filter domain.ItemFilter, limit int) (*domain.SweepResult, error)

	// Sweep is EnumerateAndFetch with both concurrency tiers set explicitly.
	Sweep(ctx context.Context, conn driven.Connector, filter domain.ItemFilter, limits domain.SweepLimits) (*domain.SweepResult, error)
}
