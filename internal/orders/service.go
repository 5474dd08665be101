package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marbledesk/marbledesk/internal/customers"
)

const createRetries = 3

// Service implements the order engine use cases. Every mutation runs in
// a single database transaction together with its inventory and customer
// side effects.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create places a new order. Stock is reserved and customer totals are
// bumped in the same transaction, so nothing sticks on failure. The
// whole transaction is retried when the generated order number collides.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if in.CustomerID == 0 {
		return Order{}, fmt.Errorf("%w: customer is required", ErrValidation)
	}
	if len(in.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for _, it := range in.Items {
		if it.InventoryID == 0 {
			return Order{}, fmt.Errorf("%w: item is missing an inventory reference", ErrValidation)
		}
		if it.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
		if it.RatePerFoot < 0 {
			return Order{}, fmt.Errorf("%w: item rate cannot be negative", ErrValidation)
		}
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return Order{}, fmt.Errorf("%w: delivery address is required", ErrValidation)
	}
	if in.InitialPayment != nil {
		if in.InitialPayment.Amount <= 0 {
			return Order{}, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
		}
		if !ValidMethod(in.InitialPayment.Method) {
			return Order{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.InitialPayment.Method)
		}
	}

	var created Order
	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		created, err = s.createOnce(ctx, in)
		if err == nil {
			break
		}
		if !IsUniqueViolation(err) {
			return Order{}, err
		}
		s.logger.Warn("order number collision, retrying", slog.Int("attempt", attempt+1))
	}
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		slog.String("order_number", created.Number),
		slog.Int64("customer_id", created.CustomerID),
		slog.Float64("total", created.TotalAmount))
	return created, nil
}

func (s *Service) createOnce(ctx context.Context, in CreateInput) (Order, error) {
	var created Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		cust, err := tx.GetCustomerForUpdate(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if cust.Status != customers.StatusActive {
			return fmt.Errorf("%w: %s", customers.ErrInactive, cust.DisplayName())
		}

		order := Order{
			Number:          NewOrderNumber(),
			CustomerID:      cust.ID,
			CustomerType:    string(cust.Type),
			CustomerName:    cust.DisplayName(),
			CustomerContact: cust.Phone,
			Status:          StatusPending,
			PaymentStatus:   PaymentUnpaid,
			DeliveryAddress: in.DeliveryAddress,
			DeliveryDate:    in.DeliveryDate,
			Notes:           in.Notes,
			CreatedBy:       in.CreatedBy,
		}

		for _, line := range in.Items {
			item, err := tx.GetItemForUpdate(ctx, line.InventoryID)
			if err != nil {
				return err
			}
			rate := line.RatePerFoot
			if rate == 0 {
				rate = item.SaleRate
			}
			if err := tx.ReserveStock(ctx, item.ID, line.Quantity); err != nil {
				return err
			}
			amount := float64(line.Quantity) * rate
			order.Items = append(order.Items, OrderItem{
				InventoryID: item.ID,
				MarbleType:  item.MarbleType,
				Size:        item.Size,
				Quantity:    line.Quantity,
				RatePerFoot: rate,
				Amount:      amount,
			})
			order.TotalAmount += amount
		}

		if in.InitialPayment != nil && in.InitialPayment.Amount > order.TotalAmount {
			return fmt.Errorf("%w: %.2f over a total of %.2f",
				ErrExceedsRemaining, in.InitialPayment.Amount, order.TotalAmount)
		}
		if in.InitialPayment != nil {
			order.PaidAmount = in.InitialPayment.Amount
		}
		order.RemainingAmount = order.TotalAmount - order.PaidAmount
		order.PaymentStatus = PaymentStatusFor(order.PaidAmount, order.TotalAmount)

		inserted, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		if in.InitialPayment != nil {
			p, err := tx.InsertPayment(ctx, inserted.ID, Payment{
				Amount:    in.InitialPayment.Amount,
				Method:    in.InitialPayment.Method,
				Reference: in.InitialPayment.Reference,
				Notes:     in.InitialPayment.Notes,
			})
			if err != nil {
				return err
			}
			inserted.Payments = append(inserted.Payments, p)
		}

		if err := tx.RecordCustomerOrder(ctx, cust.ID, inserted.TotalAmount); err != nil {
			return err
		}
		if cust.Type == customers.TypeB2B && inserted.RemainingAmount > 0 {
			if err := tx.AdjustCustomerArrears(ctx, cust.ID, inserted.RemainingAmount); err != nil {
				return err
			}
		}

		created = inserted
		return nil
	})
	return created, err
}

// Get returns a single order with its items and payments.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.store.Get(ctx, id)
}

// List returns orders and the filtered total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, int64, error) {
	return s.store.List(ctx, filter)
}

// UpdateStatus moves an order through its lifecycle. Cancelling restores
// reserved stock and reverses the customer aggregate, and both of those
// happen exactly once because cancelled orders accept no further moves.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to OrderStatus) (Order, error) {
	switch to {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
	default:
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}

	var updated Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%w: cannot move %s order to %s", ErrInvalidTransition, o.Status, to)
		}

		if to == StatusCancelled {
			if err := s.reverseOrderEffects(ctx, tx, o); err != nil {
				return err
			}
		}

		if err := tx.UpdateStatus(ctx, o.ID, to); err != nil {
			return err
		}
		o.Status = to
		updated = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.logger.Info("order status updated",
		slog.String("order_number", updated.Number),
		slog.String("status", string(updated.Status)))
	return updated, nil
}

// AddPayment appends a payment to the order ledger and recomputes the
// derived amounts. Overpayment is rejected.
func (s *Service) AddPayment(ctx context.Context, id int64, in PaymentInput) (Order, error) {
	if in.Amount <= 0 {
		return Order{}, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if !ValidMethod(in.Method) {
		return Order{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.Method)
	}

	var updated Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status == StatusCancelled {
			return fmt.Errorf("%w: cancelled orders do not accept payments", ErrInvalidState)
		}
		if in.Amount > o.RemainingAmount {
			return fmt.Errorf("%w: %.2f against a balance of %.2f",
				ErrExceedsRemaining, in.Amount, o.RemainingAmount)
		}

		p, err := tx.InsertPayment(ctx, o.ID, Payment{
			Amount:    in.Amount,
			Method:    in.Method,
			Reference: in.Reference,
			Notes:     in.Notes,
		})
		if err != nil {
			return err
		}

		o.PaidAmount += in.Amount
		o.RemainingAmount = o.TotalAmount - o.PaidAmount
		o.PaymentStatus = PaymentStatusFor(o.PaidAmount, o.TotalAmount)
		if err := tx.UpdatePaymentTotals(ctx, o.ID, o.PaidAmount, o.RemainingAmount, o.PaymentStatus); err != nil {
			return err
		}

		if o.CustomerType == string(customers.TypeB2B) {
			if err := tx.AdjustCustomerArrears(ctx, o.CustomerID, -in.Amount); err != nil {
				return err
			}
		}

		o.Payments = append(o.Payments, p)
		updated = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.logger.Info("order payment recorded",
		slog.String("order_number", updated.Number),
		slog.Float64("paid", updated.PaidAmount),
		slog.String("payment_status", string(updated.PaymentStatus)))
	return updated, nil
}

// Delete removes a pending order entirely, restoring stock and customer
// totals. Orders past Pending must be cancelled instead so the record
// survives.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			return fmt.Errorf("%w: only pending orders can be deleted", ErrInvalidState)
		}
		if err := s.reverseOrderEffects(ctx, tx, o); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, o.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("order deleted", slog.Int64("order_id", id))
	return nil
}

func (s *Service) reverseOrderEffects(ctx context.Context, tx Tx, o Order) error {
	for _, it := range o.Items {
		if err := tx.ReleaseStock(ctx, it.InventoryID, it.Quantity); err != nil {
			return err
		}
	}
	if err := tx.ReverseCustomerOrder(ctx, o.CustomerID, o.TotalAmount); err != nil {
		return err
	}
	if o.CustomerType == string(customers.TypeB2B) && o.RemainingAmount > 0 {
		if err := tx.AdjustCustomerArrears(ctx, o.CustomerID, -o.RemainingAmount); err != nil {
			return err
		}
	}
	return nil
}
