package supply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marbledesk/marbledesk/internal/customers"
	"github.com/marbledesk/marbledesk/internal/orders"
)

const createRetries = 3

// Service implements the supply order use cases. A supply order is
// sourced from a factory, so creation never touches the inventory
// ledger, the goods go straight to the customer.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create places a new supply order. Profit is snapshotted at creation
// from the purchase and sale rates, and line edits are not exposed so
// it cannot go stale.
func (s *Service) Create(ctx context.Context, in CreateInput) (SupplyOrder, error) {
	if in.CustomerID == 0 {
		return SupplyOrder{}, fmt.Errorf("%w: customer is required", ErrValidation)
	}
	if strings.TrimSpace(in.FactoryName) == "" {
		return SupplyOrder{}, fmt.Errorf("%w: factory name is required", ErrValidation)
	}
	if len(in.Items) == 0 {
		return SupplyOrder{}, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.MarbleType) == "" {
			return SupplyOrder{}, fmt.Errorf("%w: item marble type is required", ErrValidation)
		}
		if it.Quantity <= 0 {
			return SupplyOrder{}, fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
		if it.PurchaseRate <= 0 || it.SaleRate <= 0 {
			return SupplyOrder{}, fmt.Errorf("%w: item rates must be positive", ErrValidation)
		}
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return SupplyOrder{}, fmt.Errorf("%w: delivery address is required", ErrValidation)
	}

	var created SupplyOrder
	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		created, err = s.createOnce(ctx, in)
		if err == nil {
			break
		}
		if !IsUniqueViolation(err) {
			return SupplyOrder{}, err
		}
		s.logger.Warn("supply order number collision, retrying", slog.Int("attempt", attempt+1))
	}
	if err != nil {
		return SupplyOrder{}, fmt.Errorf("create supply order: %w", err)
	}

	s.logger.Info("supply order created",
		slog.String("order_number", created.Number),
		slog.String("factory", created.FactoryName),
		slog.Float64("profit", created.Profit))
	return created, nil
}

func (s *Service) createOnce(ctx context.Context, in CreateInput) (SupplyOrder, error) {
	var created SupplyOrder
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		cust, err := tx.GetCustomerForUpdate(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if cust.Status != customers.StatusActive {
			return fmt.Errorf("%w: %s", customers.ErrInactive, cust.DisplayName())
		}

		so := SupplyOrder{
			Number:                NewSupplyOrderNumber(),
			CustomerID:            cust.ID,
			CustomerName:          cust.DisplayName(),
			FactoryName:           in.FactoryName,
			Status:                StatusPending,
			FactoryPaymentStatus:  orders.PaymentUnpaid,
			CustomerPaymentStatus: orders.PaymentUnpaid,
			DeliveryAddress:       in.DeliveryAddress,
			DeliveryDate:          in.DeliveryDate,
			Notes:                 in.Notes,
			CreatedBy:             in.CreatedBy,
		}

		for _, line := range in.Items {
			purchase := float64(line.Quantity) * line.PurchaseRate
			sale := float64(line.Quantity) * line.SaleRate
			so.Items = append(so.Items, Item{
				MarbleType:          line.MarbleType,
				Size:                line.Size,
				Quantity:            line.Quantity,
				PurchaseRate:        line.PurchaseRate,
				SaleRate:            line.SaleRate,
				TotalPurchaseAmount: purchase,
				TotalSaleAmount:     sale,
			})
			so.TotalPurchaseAmount += purchase
			so.TotalSaleAmount += sale
		}
		so.Profit = so.TotalSaleAmount - so.TotalPurchaseAmount

		inserted, err := tx.InsertSupplyOrder(ctx, so)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	return created, err
}

// Get returns a single supply order with items and payments.
func (s *Service) Get(ctx context.Context, id int64) (SupplyOrder, error) {
	return s.store.Get(ctx, id)
}

// List returns supply orders and the filtered total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]SupplyOrder, int64, error) {
	return s.store.List(ctx, filter)
}

// AddFactoryPayment records money paid out to the factory.
func (s *Service) AddFactoryPayment(ctx context.Context, id int64, in orders.PaymentInput) (SupplyOrder, error) {
	return s.addPayment(ctx, id, LegFactory, in)
}

// AddCustomerPayment records money received from the customer.
func (s *Service) AddCustomerPayment(ctx context.Context, id int64, in orders.PaymentInput) (SupplyOrder, error) {
	return s.addPayment(ctx, id, LegCustomer, in)
}

func (s *Service) addPayment(ctx context.Context, id int64, leg PaymentLeg, in orders.PaymentInput) (SupplyOrder, error) {
	if in.Amount <= 0 {
		return SupplyOrder{}, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if !orders.ValidMethod(in.Method) {
		return SupplyOrder{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.Method)
	}

	var updated SupplyOrder
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		so, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		var remaining float64
		if leg == LegFactory {
			remaining = so.TotalPurchaseAmount - so.PaidToFactory
		} else {
			remaining = so.TotalSaleAmount - so.ReceivedFromCustomer
		}
		if in.Amount > remaining {
			return fmt.Errorf("%w: %.2f against a balance of %.2f", ErrExceedsRemaining, in.Amount, remaining)
		}

		p, err := tx.InsertPayment(ctx, so.ID, Payment{
			Leg:       leg,
			Amount:    in.Amount,
			Method:    in.Method,
			Reference: in.Reference,
			Notes:     in.Notes,
		})
		if err != nil {
			return err
		}

		if leg == LegFactory {
			so.PaidToFactory += in.Amount
			so.FactoryPaymentStatus = orders.PaymentStatusFor(so.PaidToFactory, so.TotalPurchaseAmount)
		} else {
			so.ReceivedFromCustomer += in.Amount
			so.CustomerPaymentStatus = orders.PaymentStatusFor(so.ReceivedFromCustomer, so.TotalSaleAmount)
		}
		so.Status = DerivedStatus(so.Status, so.FactoryPaymentStatus, so.CustomerPaymentStatus)

		if err := tx.UpdateLedger(ctx, so); err != nil {
			return err
		}
		so.Payments = append(so.Payments, p)
		updated = so
		return nil
	})
	if err != nil {
		return SupplyOrder{}, err
	}

	s.logger.Info("supply order payment recorded",
		slog.String("order_number", updated.Number),
		slog.String("leg", string(leg)),
		slog.String("status", string(updated.Status)))
	return updated, nil
}

// UpdateStatus moves a supply order forward manually, typically to
// Dispatched or Delivered. Completion is derived from the two payment
// legs and cannot be set by hand.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status) (SupplyOrder, error) {
	if !KnownStatus(to) {
		return SupplyOrder{}, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	if to == StatusCompleted {
		return SupplyOrder{}, fmt.Errorf("%w: completion is derived from payments", ErrInvalidState)
	}

	var updated SupplyOrder
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		so, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !Advances(so.Status, to) {
			return fmt.Errorf("%w: cannot move %s supply order to %s", ErrInvalidState, so.Status, to)
		}
		if err := tx.UpdateStatus(ctx, so.ID, to); err != nil {
			return err
		}
		so.Status = to
		updated = so
		return nil
	})
	if err != nil {
		return SupplyOrder{}, err
	}

	s.logger.Info("supply order status updated",
		slog.String("order_number", updated.Number),
		slog.String("status", string(updated.Status)))
	return updated, nil
}
