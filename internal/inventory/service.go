package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Store abstracts persistence so the service can be tested in memory.
type Store interface {
	Insert(ctx context.Context, in CreateInput) (Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	List(ctx context.Context, filter ListFilter) ([]Item, int64, error)
	ListLowStock(ctx context.Context) ([]Item, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Item, error)
	Delete(ctx context.Context, id int64) error
}

// Service implements inventory use cases.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create validates and stores a new item.
func (s *Service) Create(ctx context.Context, in CreateInput) (Item, error) {
	in.MarbleType = strings.TrimSpace(in.MarbleType)
	in.Size = strings.TrimSpace(in.Size)
	in.Supplier = strings.TrimSpace(in.Supplier)
	if in.MarbleType == "" {
		return Item{}, fmt.Errorf("%w: marble type is required", ErrValidation)
	}
	if in.Size == "" {
		return Item{}, fmt.Errorf("%w: size is required", ErrValidation)
	}
	if in.Quantity < 0 {
		return Item{}, fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}
	if in.PurchaseRate <= 0 || in.SaleRate <= 0 {
		return Item{}, fmt.Errorf("%w: rates must be positive", ErrValidation)
	}
	if in.SaleRate < in.PurchaseRate {
		return Item{}, fmt.Errorf("%w: sale rate below purchase rate", ErrValidation)
	}

	item, err := s.store.Insert(ctx, in)
	if err != nil {
		return Item{}, fmt.Errorf("insert inventory item: %w", err)
	}
	s.logger.Info("inventory item created",
		slog.Int64("item_id", item.ID),
		slog.String("marble_type", item.MarbleType),
		slog.String("size", item.Size),
		slog.Int64("quantity", item.Quantity))
	return item, nil
}

// Get returns a single item.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.store.Get(ctx, id)
}

// List returns items and the filtered total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Item, int64, error) {
	return s.store.List(ctx, filter)
}

// ListLowStock returns items needing replenishment.
func (s *Service) ListLowStock(ctx context.Context) ([]Item, error) {
	return s.store.ListLowStock(ctx)
}

// Update applies a partial update and recomputes the stock status.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Item, error) {
	if in.MarbleType != nil {
		trimmed := strings.TrimSpace(*in.MarbleType)
		if trimmed == "" {
			return Item{}, fmt.Errorf("%w: marble type cannot be empty", ErrValidation)
		}
		in.MarbleType = &trimmed
	}
	if in.Size != nil {
		trimmed := strings.TrimSpace(*in.Size)
		if trimmed == "" {
			return Item{}, fmt.Errorf("%w: size cannot be empty", ErrValidation)
		}
		in.Size = &trimmed
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return Item{}, fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}
	if in.PurchaseRate != nil && *in.PurchaseRate <= 0 {
		return Item{}, fmt.Errorf("%w: purchase rate must be positive", ErrValidation)
	}
	if in.SaleRate != nil && *in.SaleRate <= 0 {
		return Item{}, fmt.Errorf("%w: sale rate must be positive", ErrValidation)
	}

	item, err := s.store.Update(ctx, id, in)
	if err != nil {
		return Item{}, err
	}
	s.logger.Info("inventory item updated", slog.Int64("item_id", item.ID))
	return item, nil
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("inventory item deleted", slog.Int64("item_id", id))
	return nil
}
