package orders

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
	"github.com/marbledesk/marbledesk/internal/inventory"
	"github.com/marbledesk/marbledesk/internal/platform/db"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Tx exposes the operations available inside an order transaction.
// Inventory and customer mutations ride in the same database transaction
// so an order either lands fully or not at all.
type Tx interface {
	InsertOrder(ctx context.Context, o Order) (Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) error
	InsertPayment(ctx context.Context, orderID int64, p Payment) (Payment, error)
	UpdatePaymentTotals(ctx context.Context, id int64, paid, remaining float64, status PaymentStatus) error
	DeleteOrder(ctx context.Context, id int64) error

	ReserveStock(ctx context.Context, itemID, qty int64) error
	ReleaseStock(ctx context.Context, itemID, qty int64) error
	GetItemForUpdate(ctx context.Context, itemID int64) (inventory.Item, error)

	GetCustomerForUpdate(ctx context.Context, customerID int64) (customers.Customer, error)
	RecordCustomerOrder(ctx context.Context, customerID int64, amount float64) error
	ReverseCustomerOrder(ctx context.Context, customerID int64, amount float64) error
	AdjustCustomerArrears(ctx context.Context, customerID int64, delta float64) error
}

// Store is the persistence surface the service depends on.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int64, error)
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

const orderColumns = `id, order_number, customer_id, customer_type, customer_name, customer_contact,
	total_amount, paid_amount, remaining_amount, status, payment_status,
	delivery_address, delivery_date, notes, created_by, created_at, updated_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o        Order
		status   string
		payState string
		notes    *string
		contact  *string
	)
	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &o.CustomerType, &o.CustomerName, &contact,
		&o.TotalAmount, &o.PaidAmount, &o.RemainingAmount, &status, &payState,
		&o.DeliveryAddress, &o.DeliveryDate, &notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.Status = OrderStatus(status)
	o.PaymentStatus = PaymentStatus(payState)
	if notes != nil {
		o.Notes = *notes
	}
	if contact != nil {
		o.CustomerContact = *contact
	}
	return o, nil
}

func loadOrderChildren(ctx context.Context, q rowQuerier, o *Order) error {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, inventory_id, marble_type, size, quantity, rate_per_foot, amount
		FROM order_items WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.InventoryID, &it.MarbleType, &it.Size, &it.Quantity, &it.RatePerFoot, &it.Amount); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payRows, err := q.Query(ctx, `
		SELECT id, order_id, amount, method, reference, notes, paid_at
		FROM order_payments WHERE order_id=$1 ORDER BY paid_at, id`, o.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	for payRows.Next() {
		var (
			p         Payment
			method    string
			reference *string
			notes     *string
		)
		if err := payRows.Scan(&p.ID, &p.OrderID, &p.Amount, &method, &reference, &notes, &p.PaidAt); err != nil {
			return err
		}
		p.Method = PaymentMethod(method)
		if reference != nil {
			p.Reference = *reference
		}
		if notes != nil {
			p.Notes = *notes
		}
		o.Payments = append(o.Payments, p)
	}
	return payRows.Err()
}

// Get fetches an order with its items and payments.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return Order{}, err
	}
	if err := loadOrderChildren(ctx, r.pool, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// List returns orders matching the filter, newest first. Child rows are
// loaded per order, listings are small enough for that to stay cheap.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, int64, error) {
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
	if filter.PaymentStatus != "" {
		args = append(args, string(filter.PaymentStatus))
		conds = append(conds, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(order_number ILIKE $%d OR customer_name ILIKE $%d)", n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		if err := loadOrderChildren(ctx, r.pool, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (t *txRepo) InsertOrder(ctx context.Context, o Order) (Order, error) {
	now := time.Now()
	row := t.tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, customer_id, customer_type, customer_name, customer_contact,
			total_amount, paid_amount, remaining_amount, status, payment_status,
			delivery_address, delivery_date, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING `+orderColumns,
		o.Number, o.CustomerID, o.CustomerType, o.CustomerName, o.CustomerContact,
		o.TotalAmount, o.PaidAmount, o.RemainingAmount, string(o.Status), string(o.PaymentStatus),
		o.DeliveryAddress, o.DeliveryDate, o.Notes, o.CreatedBy, now)
	inserted, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}

	for _, it := range o.Items {
		var itemID int64
		err := t.tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, inventory_id, marble_type, size, quantity, rate_per_foot, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			inserted.ID, it.InventoryID, it.MarbleType, it.Size, it.Quantity, it.RatePerFoot, it.Amount).Scan(&itemID)
		if err != nil {
			return Order{}, err
		}
		it.ID = itemID
		it.OrderID = inserted.ID
		inserted.Items = append(inserted.Items, it)
	}
	return inserted, nil
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, err
	}
	if err := loadOrderChildren(ctx, t.tx, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, orderID int64, p Payment) (Payment, error) {
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_payments (order_id, amount, method, reference, notes, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		orderID, p.Amount, string(p.Method), p.Reference, p.Notes, p.PaidAt).Scan(&p.ID)
	if err != nil {
		return Payment{}, err
	}
	p.OrderID = orderID
	return p, nil
}

func (t *txRepo) UpdatePaymentTotals(ctx context.Context, id int64, paid, remaining float64, status PaymentStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET paid_amount=$2, remaining_amount=$3, payment_status=$4, updated_at=now()
		WHERE id=$1`, id, paid, remaining, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_payments WHERE order_id=$1`, id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) ReserveStock(ctx context.Context, itemID, qty int64) error {
	return inventory.Reserve(ctx, t.tx, itemID, qty)
}

func (t *txRepo) ReleaseStock(ctx context.Context, itemID, qty int64) error {
	return inventory.Release(ctx, t.tx, itemID, qty)
}

func (t *txRepo) GetItemForUpdate(ctx context.Context, itemID int64) (inventory.Item, error) {
	return inventory.GetForUpdate(ctx, t.tx, itemID)
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, customerID int64) (customers.Customer, error) {
	return customers.GetForUpdate(ctx, t.tx, customerID)
}

func (t *txRepo) RecordCustomerOrder(ctx context.Context, customerID int64, amount float64) error {
	return customers.RecordOrder(ctx, t.tx, customerID, amount)
}

func (t *txRepo) ReverseCustomerOrder(ctx context.Context, customerID int64, amount float64) error {
	return customers.ReverseOrder(ctx, t.tx, customerID, amount)
}

func (t *txRepo) AdjustCustomerArrears(ctx context.Context, customerID int64, delta float64) error {
	return customers.AdjustArrears(ctx, t.tx, customerID, delta)
}
