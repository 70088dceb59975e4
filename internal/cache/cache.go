package cache

import (
	"context"
	"time"

	"github.com/AchayoEarnest/smartpos/internal/domain"
)

// SummaryCache holds computed daily summaries so repeated dashboard loads
// do not hit the aggregate queries.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.DailySummary, bool, error)
	Set(ctx context.Context, key string, value *domain.DailySummary, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.DailySummary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.DailySummary, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
