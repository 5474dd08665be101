package supply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marbledesk/marbledesk/internal/customers"
	"github.com/marbledesk/marbledesk/internal/orders"
	"github.com/marbledesk/marbledesk/internal/platform/db"
)

// Repository persists supply orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Tx exposes the operations available inside a supply order transaction.
type Tx interface {
	InsertSupplyOrder(ctx context.Context, so SupplyOrder) (SupplyOrder, error)
	GetForUpdate(ctx context.Context, id int64) (SupplyOrder, error)
	InsertPayment(ctx context.Context, supplyOrderID int64, p Payment) (Payment, error)
	UpdateLedger(ctx context.Context, so SupplyOrder) error
	UpdateStatus(ctx context.Context, id int64, status Status) error

	GetCustomerForUpdate(ctx context.Context, customerID int64) (customers.Customer, error)
}

// Store is the persistence surface the service depends on.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	Get(ctx context.Context, id int64) (SupplyOrder, error)
	List(ctx context.Context, filter ListFilter) ([]SupplyOrder, int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const supplyColumns = `id, order_number, customer_id, customer_name, factory_name,
	total_purchase_amount, total_sale_amount, profit,
	paid_to_factory, received_from_customer,
	status, factory_payment_status, customer_payment_status,
	delivery_address, delivery_date, notes, created_by, created_at, updated_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanSupplyOrder(row pgx.Row) (SupplyOrder, error) {
	var (
		so     SupplyOrder
		status string
		fps    string
		cps    string
		notes  *string
	)
	err := row.Scan(&so.ID, &so.Number, &so.CustomerID, &so.CustomerName, &so.FactoryName,
		&so.TotalPurchaseAmount, &so.TotalSaleAmount, &so.Profit,
		&so.PaidToFactory, &so.ReceivedFromCustomer,
		&status, &fps, &cps,
		&so.DeliveryAddress, &so.DeliveryDate, &notes, &so.CreatedBy, &so.CreatedAt, &so.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplyOrder{}, ErrNotFound
		}
		return SupplyOrder{}, err
	}
	so.Status = Status(status)
	so.FactoryPaymentStatus = orders.PaymentStatus(fps)
	so.CustomerPaymentStatus = orders.PaymentStatus(cps)
	if notes != nil {
		so.Notes = *notes
	}
	return so, nil
}

func loadChildren(ctx context.Context, q rowQuerier, so *SupplyOrder) error {
	rows, err := q.Query(ctx, `
		SELECT id, supply_order_id, marble_type, size, quantity,
		       purchase_rate, sale_rate, total_purchase_amount, total_sale_amount
		FROM supply_order_items WHERE supply_order_id=$1 ORDER BY id`, so.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		var size *string
		if err := rows.Scan(&it.ID, &it.SupplyOrderID, &it.MarbleType, &size, &it.Quantity,
			&it.PurchaseRate, &it.SaleRate, &it.TotalPurchaseAmount, &it.TotalSaleAmount); err != nil {
			return err
		}
		if size != nil {
			it.Size = *size
		}
		so.Items = append(so.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payRows, err := q.Query(ctx, `
		SELECT id, supply_order_id, leg, amount, method, reference, notes, paid_at
		FROM supply_order_payments WHERE supply_order_id=$1 ORDER BY paid_at, id`, so.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	for payRows.Next() {
		var (
			p         Payment
			leg       string
			method    string
			reference *string
			notes     *string
		)
		if err := payRows.Scan(&p.ID, &p.SupplyOrderID, &leg, &p.Amount, &method, &reference, &notes, &p.PaidAt); err != nil {
			return err
		}
		p.Leg = PaymentLeg(leg)
		p.Method = orders.PaymentMethod(method)
		if reference != nil {
			p.Reference = *reference
		}
		if notes != nil {
			p.Notes = *notes
		}
		so.Payments = append(so.Payments, p)
	}
	return payRows.Err()
}

// Get fetches a supply order with its items and payments.
func (r *Repository) Get(ctx context.Context, id int64) (SupplyOrder, error) {
	so, err := scanSupplyOrder(r.pool.QueryRow(ctx, `SELECT `+supplyColumns+` FROM supply_orders WHERE id=$1`, id))
	if err != nil {
		return SupplyOrder{}, err
	}
	if err := loadChildren(ctx, r.pool, &so); err != nil {
		return SupplyOrder{}, err
	}
	return so, nil
}

// List returns supply orders matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]SupplyOrder, int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(order_number ILIKE $%d OR customer_name ILIKE $%d OR factory_name ILIKE $%d)", n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM supply_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM supply_orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		supplyColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []SupplyOrder
	for rows.Next() {
		so, err := scanSupplyOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, so)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		if err := loadChildren(ctx, r.pool, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (t *txRepo) InsertSupplyOrder(ctx context.Context, so SupplyOrder) (SupplyOrder, error) {
	now := time.Now()
	row := t.tx.QueryRow(ctx, `
		INSERT INTO supply_orders (order_number, customer_id, customer_name, factory_name,
			total_purchase_amount, total_sale_amount, profit,
			paid_to_factory, received_from_customer,
			status, factory_payment_status, customer_payment_status,
			delivery_address, delivery_date, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		RETURNING `+supplyColumns,
		so.Number, so.CustomerID, so.CustomerName, so.FactoryName,
		so.TotalPurchaseAmount, so.TotalSaleAmount, so.Profit,
		so.PaidToFactory, so.ReceivedFromCustomer,
		string(so.Status), string(so.FactoryPaymentStatus), string(so.CustomerPaymentStatus),
		so.DeliveryAddress, so.DeliveryDate, so.Notes, so.CreatedBy, now)
	inserted, err := scanSupplyOrder(row)
	if err != nil {
		return SupplyOrder{}, err
	}

	for _, it := range so.Items {
		var itemID int64
		err := t.tx.QueryRow(ctx, `
			INSERT INTO supply_order_items (supply_order_id, marble_type, size, quantity,
				purchase_rate, sale_rate, total_purchase_amount, total_sale_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			inserted.ID, it.MarbleType, it.Size, it.Quantity,
			it.PurchaseRate, it.SaleRate, it.TotalPurchaseAmount, it.TotalSaleAmount).Scan(&itemID)
		if err != nil {
			return SupplyOrder{}, err
		}
		it.ID = itemID
		it.SupplyOrderID = inserted.ID
		inserted.Items = append(inserted.Items, it)
	}
	return inserted, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (SupplyOrder, error) {
	so, err := scanSupplyOrder(t.tx.QueryRow(ctx, `SELECT `+supplyColumns+` FROM supply_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return SupplyOrder{}, err
	}
	if err := loadChildren(ctx, t.tx, &so); err != nil {
		return SupplyOrder{}, err
	}
	return so, nil
}

func (t *txRepo) InsertPayment(ctx context.Context, supplyOrderID int64, p Payment) (Payment, error) {
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO supply_order_payments (supply_order_id, leg, amount, method, reference, notes, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		supplyOrderID, string(p.Leg), p.Amount, string(p.Method), p.Reference, p.Notes, p.PaidAt).Scan(&p.ID)
	if err != nil {
		return Payment{}, err
	}
	p.SupplyOrderID = supplyOrderID
	return p, nil
}

func (t *txRepo) UpdateLedger(ctx context.Context, so SupplyOrder) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE supply_orders
		SET paid_to_factory=$2, received_from_customer=$3,
		    factory_payment_status=$4, customer_payment_status=$5,
		    status=$6, updated_at=now()
		WHERE id=$1`,
		so.ID, so.PaidToFactory, so.ReceivedFromCustomer,
		string(so.FactoryPaymentStatus), string(so.CustomerPaymentStatus), string(so.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE supply_orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, customerID int64) (customers.Customer, error) {
	return customers.GetForUpdate(ctx, t.tx, customerID)
}
