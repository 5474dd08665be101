package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/marbledesk/marbledesk/internal/inventory"
	"github.com/marbledesk/marbledesk/internal/reports"
	"github.com/marbledesk/marbledesk/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan flags items needing replenishment.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskSummaryWarmup precomputes the dashboard summary.
	TaskSummaryWarmup = "reports:summary_warmup"
	// TaskIdempotencyCleanup prunes stale idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// LowStockPayload carries optional scan parameters.
type LowStockPayload struct {
	NotifyThreshold int `json:"notifyThreshold"`
}

// NewLowStockScanTask constructs the low stock scan task.
func NewLowStockScanTask() (*asynq.Task, error) {
	data, err := json.Marshal(LowStockPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// NewSummaryWarmupTask constructs the summary warmup task.
func NewSummaryWarmupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskSummaryWarmup, nil), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskIdempotencyCleanup, nil), nil
}

// Handlers bundles the dependencies the task handlers need.
type Handlers struct {
	Inventory   *inventory.Service
	Reports     *reports.Service
	Idempotency *shared.IdempotencyStore
	Logger      *slog.Logger
}

// HandleLowStockScan logs every item at or below the threshold so the
// operator sees replenishment candidates in the worker output.
func (h *Handlers) HandleLowStockScan(ctx context.Context, t *asynq.Task) error {
	var payload LowStockPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	items, err := h.Inventory.ListLowStock(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		h.Logger.Warn("low stock",
			slog.Int64("item_id", it.ID),
			slog.String("marble_type", it.MarbleType),
			slog.String("size", it.Size),
			slog.Int64("quantity", it.Quantity),
			slog.String("status", string(it.Status)))
	}
	h.Logger.Info("low stock scan finished", slog.Int("flagged", len(items)))
	return nil
}

// HandleSummaryWarmup refreshes the cached dashboard summary.
func (h *Handlers) HandleSummaryWarmup(ctx context.Context, _ *asynq.Task) error {
	if _, err := h.Reports.Summary(ctx); err != nil {
		return err
	}
	h.Logger.Info("summary cache warmed")
	return nil
}

// HandleIdempotencyCleanup prunes keys older than a day.
func (h *Handlers) HandleIdempotencyCleanup(ctx context.Context, _ *asynq.Task) error {
	if err := h.Idempotency.Cleanup(ctx, 24*time.Hour); err != nil {
		return err
	}
	h.Logger.Info("idempotency keys pruned")
	return nil
}
