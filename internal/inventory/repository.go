package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marbledesk/marbledesk/internal/platform/db"
)

// Repository persists inventory items in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, marble_type, size, quantity, purchase_rate, sale_rate, supplier, status, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	var status string
	if err := row.Scan(&it.ID, &it.MarbleType, &it.Size, &it.Quantity, &it.PurchaseRate, &it.SaleRate, &it.Supplier, &status, &it.CreatedAt, &it.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	it.Status = StockStatus(status)
	return it, nil
}

// Insert stores a new item and returns it with generated fields.
func (r *Repository) Insert(ctx context.Context, in CreateInput) (Item, error) {
	now := time.Now()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO inventory_items (marble_type, size, quantity, purchase_rate, sale_rate, supplier, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+itemColumns,
		in.MarbleType, in.Size, in.Quantity, in.PurchaseRate, in.SaleRate, in.Supplier, string(StatusFor(in.Quantity)), now)
	return scanItem(row)
}

// Get fetches an item by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1`, id)
	return scanItem(row)
}

// List returns items matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Item, int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(marble_type ILIKE $%d OR size ILIKE $%d OR supplier ILIKE $%d)", len(args), len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM inventory_items%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		itemColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// ListLowStock returns items at or below the low stock threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE status IN ($1, $2) ORDER BY quantity ASC`,
		string(StatusLowStock), string(StatusOutOfStock))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Update applies the given changes and refreshes the derived status.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (Item, error) {
	var updated Item
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if in.MarbleType != nil {
			current.MarbleType = *in.MarbleType
		}
		if in.Size != nil {
			current.Size = *in.Size
		}
		if in.Quantity != nil {
			current.Quantity = *in.Quantity
		}
		if in.PurchaseRate != nil {
			current.PurchaseRate = *in.PurchaseRate
		}
		if in.SaleRate != nil {
			current.SaleRate = *in.SaleRate
		}
		if in.Supplier != nil {
			current.Supplier = *in.Supplier
		}
		current.Status = StatusFor(current.Quantity)

		row := tx.QueryRow(ctx, `
			UPDATE inventory_items
			SET marble_type=$2, size=$3, quantity=$4, purchase_rate=$5, sale_rate=$6, supplier=$7, status=$8, updated_at=now()
			WHERE id=$1
			RETURNING `+itemColumns,
			id, current.MarbleType, current.Size, current.Quantity, current.PurchaseRate, current.SaleRate, current.Supplier, string(current.Status))
		updated, err = scanItem(row)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

// Delete removes an item permanently.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reserve decrements stock for a sale inside the given transaction.
// The conditional update refuses to go negative.
func Reserve(ctx context.Context, tx pgx.Tx, itemID, qty int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE inventory_items
		SET quantity = quantity - $2,
		    status = CASE
		        WHEN quantity - $2 <= 0 THEN $3
		        WHEN quantity - $2 <= $5 THEN $4
		        ELSE $6
		    END,
		    updated_at = now()
		WHERE id = $1 AND quantity >= $2`,
		itemID, qty, string(StatusOutOfStock), string(StatusLowStock), LowStockThreshold, string(StatusInStock))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM inventory_items WHERE id=$1)`, itemID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

// Release returns previously reserved stock inside the given transaction.
func Release(ctx context.Context, tx pgx.Tx, itemID, qty int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE inventory_items
		SET quantity = quantity + $2,
		    status = CASE
		        WHEN quantity + $2 <= 0 THEN $3
		        WHEN quantity + $2 <= $5 THEN $4
		        ELSE $6
		    END,
		    updated_at = now()
		WHERE id = $1`,
		itemID, qty, string(StatusOutOfStock), string(StatusLowStock), LowStockThreshold, string(StatusInStock))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetForUpdate locks an item row inside the given transaction.
func GetForUpdate(ctx context.Context, tx pgx.Tx, itemID int64) (Item, error) {
	return scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1 FOR UPDATE`, itemID))
}
