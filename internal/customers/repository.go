package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists customers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, customer_type, phone, email, address, city, status,
	total_orders, total_spent,
	business_name, contact_person, business_type, current_arrears,
	first_name, last_name, id_card, preferences,
	created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var (
		c       Customer
		ctype   string
		status  string
		email   *string
		bizName *string
		contact *string
		bizType *string
		first   *string
		last    *string
		idCard  *string
		prefs   []string
	)
	err := row.Scan(&c.ID, &ctype, &c.Phone, &email, &c.Address, &c.City, &status,
		&c.TotalOrders, &c.TotalSpent,
		&bizName, &contact, &bizType, &c.CurrentArrears,
		&first, &last, &idCard, &prefs,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	c.Type = CustomerType(ctype)
	c.Status = AccountStatus(status)
	c.Email = deref(email)
	c.BusinessName = deref(bizName)
	c.ContactPerson = deref(contact)
	c.BusinessType = deref(bizType)
	c.FirstName = deref(first)
	c.LastName = deref(last)
	c.IDCard = deref(idCard)
	c.Preferences = prefs
	return c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Insert stores a new customer.
func (r *Repository) Insert(ctx context.Context, in CreateInput) (Customer, error) {
	now := time.Now()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (customer_type, phone, email, address, city, status,
			business_name, contact_person, business_type,
			first_name, last_name, id_card, preferences,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING `+customerColumns,
		string(in.Type), in.Phone, in.Email, in.Address, in.City, string(StatusActive),
		in.BusinessName, in.ContactPerson, in.BusinessType,
		in.FirstName, in.LastName, in.IDCard, in.Preferences, now)
	return scanCustomer(row)
}

// Get fetches a customer by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
	return scanCustomer(row)
}

// List returns customers matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Customer, int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("customer_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(phone ILIKE $%d OR business_name ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", n, n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM customers%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		customerColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Update applies the given changes.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (Customer, error) {
	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(col string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if in.Phone != nil {
		add("phone", *in.Phone)
	}
	if in.Email != nil {
		add("email", strings.ToLower(*in.Email))
	}
	if in.Address != nil {
		add("address", *in.Address)
	}
	if in.City != nil {
		add("city", *in.City)
	}
	if in.Status != nil {
		add("status", string(*in.Status))
	}
	if in.BusinessName != nil {
		add("business_name", *in.BusinessName)
	}
	if in.ContactPerson != nil {
		add("contact_person", *in.ContactPerson)
	}
	if in.BusinessType != nil {
		add("business_type", *in.BusinessType)
	}
	if in.FirstName != nil {
		add("first_name", *in.FirstName)
	}
	if in.LastName != nil {
		add("last_name", *in.LastName)
	}
	if in.IDCard != nil {
		add("id_card", *in.IDCard)
	}
	if in.Preferences != nil {
		add("preferences", *in.Preferences)
	}

	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id=$1 RETURNING %s`, strings.Join(set, ", "), customerColumns)
	return scanCustomer(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a customer permanently.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordOrder bumps the aggregate counters inside the given transaction.
func RecordOrder(ctx context.Context, tx pgx.Tx, customerID int64, amount float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE customers
		SET total_orders = total_orders + 1,
		    total_spent = total_spent + $2,
		    updated_at = now()
		WHERE id = $1`,
		customerID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReverseOrder undoes RecordOrder inside the given transaction.
// Counters are floored at zero so a reversal can never leave the
// aggregate negative.
func ReverseOrder(ctx context.Context, tx pgx.Tx, customerID int64, amount float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE customers
		SET total_orders = GREATEST(total_orders - 1, 0),
		    total_spent = GREATEST(total_spent - $2, 0),
		    updated_at = now()
		WHERE id = $1`,
		customerID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetForUpdate locks a customer row inside the given transaction.
func GetForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (Customer, error) {
	return scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1 FOR UPDATE`, customerID))
}

// AdjustArrears shifts a B2B customer's outstanding balance inside the
// given transaction. Delta may be negative when arrears are settled.
func AdjustArrears(ctx context.Context, tx pgx.Tx, customerID int64, delta float64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE customers
		SET current_arrears = GREATEST(current_arrears + $2, 0),
		    updated_at = now()
		WHERE id = $1 AND customer_type = 'B2B'`,
		customerID, delta)
	if err != nil {
		return err
	}
	// B2C customers have no arrears ledger, silently skip.
	_ = tag
	return nil
}
