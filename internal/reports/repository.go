package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marbledesk/marbledesk/internal/inventory"
)

// Repository aggregates summary figures straight from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadSummary computes the dashboard snapshot. Cancelled orders are
// excluded from revenue and receivables.
func (r *Repository) LoadSummary(ctx context.Context) (Summary, error) {
	s := Summary{
		OrderCounts:       make(map[string]int64),
		SupplyOrderCounts: make(map[string]int64),
		GeneratedAt:       time.Now(),
	}

	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(paid_amount), 0), COALESCE(SUM(remaining_amount), 0)
		FROM orders WHERE status <> 'Cancelled'`).
		Scan(&s.TotalRevenue, &s.OutstandingReceivables)
	if err != nil {
		return Summary{}, err
	}

	var supplyReceived, supplyReceivable, supplyPayable, supplyProfit float64
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(received_from_customer), 0),
		       COALESCE(SUM(total_sale_amount - received_from_customer), 0),
		       COALESCE(SUM(total_purchase_amount - paid_to_factory), 0),
		       COALESCE(SUM(profit), 0)
		FROM supply_orders`).
		Scan(&supplyReceived, &supplyReceivable, &supplyPayable, &supplyProfit)
	if err != nil {
		return Summary{}, err
	}
	s.TotalRevenue += supplyReceived
	s.OutstandingReceivables += supplyReceivable
	s.OutstandingPayables = supplyPayable
	s.SupplyProfit = supplyProfit

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return Summary{}, err
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return Summary{}, err
		}
		s.OrderCounts[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	rows, err = r.pool.Query(ctx, `SELECT status, COUNT(*) FROM supply_orders GROUP BY status`)
	if err != nil {
		return Summary{}, err
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return Summary{}, err
		}
		s.SupplyOrderCounts[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&s.CustomerCount); err != nil {
		return Summary{}, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, marble_type, size, quantity, status FROM inventory_items
		WHERE status IN ($1, $2) ORDER BY quantity ASC LIMIT 20`,
		string(inventory.StatusLowStock), string(inventory.StatusOutOfStock))
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it LowStockItem
		if err := rows.Scan(&it.ID, &it.MarbleType, &it.Size, &it.Quantity, &it.Status); err != nil {
			return Summary{}, err
		}
		s.LowStockItems = append(s.LowStockItems, it)
	}
	return s, rows.Err()
}
