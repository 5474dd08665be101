package reports

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Summary is the dashboard snapshot of the whole business.
type Summary struct {
	TotalRevenue           float64          `json:"totalRevenue"`
	OutstandingReceivables float64          `json:"outstandingReceivables"`
	OutstandingPayables    float64          `json:"outstandingPayables"`
	SupplyProfit           float64          `json:"supplyProfit"`
	OrderCounts            map[string]int64 `json:"orderCounts"`
	SupplyOrderCounts      map[string]int64 `json:"supplyOrderCounts"`
	CustomerCount          int64            `json:"customerCount"`
	LowStockItems          []LowStockItem   `json:"lowStockItems"`
	GeneratedAt            time.Time        `json:"generatedAt"`
}

// LowStockItem is a restocking alert line.
type LowStockItem struct {
	ID         int64  `json:"id"`
	MarbleType string `json:"marbleType"`
	Size       string `json:"size"`
	Quantity   int64  `json:"quantity"`
	Status     string `json:"status"`
}

// Store loads the summary from storage.
type Store interface {
	LoadSummary(ctx context.Context) (Summary, error)
}

// Service produces cached business summaries. Concurrent requests for
// a cold cache collapse into a single load.
type Service struct {
	store  Store
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(store Store, cache *Cache, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// Summary returns the current business summary, cached.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "summary")
	if err != nil {
		return Summary{}, err
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var out Summary
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
			s.logger.Debug("loading business summary from storage")
			return s.store.LoadSummary(ctx)
		})
		return out, err
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

// Invalidate drops every cached summary after a write.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
