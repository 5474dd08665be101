package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var nameCaser = cases.Title(language.Und, cases.NoLower)

// Store abstracts persistence so the service can be tested in memory.
type Store interface {
	Insert(ctx context.Context, in CreateInput) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, int64, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Customer, error)
	Delete(ctx context.Context, id int64) error
}

// Service implements customer use cases.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create validates and stores a new customer.
func (s *Service) Create(ctx context.Context, in CreateInput) (Customer, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Phone == "" {
		return Customer{}, fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if in.Address == "" {
		return Customer{}, fmt.Errorf("%w: address is required", ErrValidation)
	}
	if in.City == "" {
		return Customer{}, fmt.Errorf("%w: city is required", ErrValidation)
	}

	switch in.Type {
	case TypeB2B:
		if strings.TrimSpace(in.BusinessName) == "" {
			return Customer{}, fmt.Errorf("%w: business name is required for B2B customers", ErrValidation)
		}
		if strings.TrimSpace(in.ContactPerson) == "" {
			return Customer{}, fmt.Errorf("%w: contact person is required for B2B customers", ErrValidation)
		}
		if strings.TrimSpace(in.BusinessType) == "" {
			return Customer{}, fmt.Errorf("%w: business type is required for B2B customers", ErrValidation)
		}
	case TypeB2C:
		in.FirstName = nameCaser.String(strings.TrimSpace(in.FirstName))
		in.LastName = nameCaser.String(strings.TrimSpace(in.LastName))
		if in.FirstName == "" || in.LastName == "" {
			return Customer{}, fmt.Errorf("%w: first and last name are required for B2C customers", ErrValidation)
		}
	default:
		return Customer{}, fmt.Errorf("%w: unknown customer type %q", ErrValidation, in.Type)
	}

	c, err := s.store.Insert(ctx, in)
	if err != nil {
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	s.logger.Info("customer created",
		slog.Int64("customer_id", c.ID),
		slog.String("type", string(c.Type)),
		slog.String("name", c.DisplayName()))
	return c, nil
}

// Get returns a single customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.store.Get(ctx, id)
}

// List returns customers and the filtered total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, int64, error) {
	return s.store.List(ctx, filter)
}

// Update applies a partial update. Type cannot change after creation.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Customer, error) {
	if in.Phone != nil && strings.TrimSpace(*in.Phone) == "" {
		return Customer{}, fmt.Errorf("%w: phone cannot be empty", ErrValidation)
	}
	if in.Status != nil && *in.Status != StatusActive && *in.Status != StatusInactive {
		return Customer{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
	}

	c, err := s.store.Update(ctx, id, in)
	if err != nil {
		return Customer{}, err
	}
	s.logger.Info("customer updated", slog.Int64("customer_id", c.ID))
	return c, nil
}

// Delete removes a customer.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("customer deleted", slog.Int64("customer_id", id))
	return nil
}
