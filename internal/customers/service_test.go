package customers

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	nextID    int64
	customers map[int64]Customer
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1, customers: make(map[int64]Customer)}
}

func (m *memoryStore) Insert(_ context.Context, in CreateInput) (Customer, error) {
	c := Customer{
		ID:            m.nextID,
		Type:          in.Type,
		Phone:         in.Phone,
		Email:         in.Email,
		Address:       in.Address,
		City:          in.City,
		Status:        StatusActive,
		BusinessName:  in.BusinessName,
		ContactPerson: in.ContactPerson,
		BusinessType:  in.BusinessType,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		IDCard:        in.IDCard,
		Preferences:   in.Preferences,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	m.customers[c.ID] = c
	m.nextID++
	return c, nil
}

func (m *memoryStore) Get(_ context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) List(_ context.Context, filter ListFilter) ([]Customer, int64, error) {
	var out []Customer
	for _, c := range m.customers {
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memoryStore) Update(_ context.Context, id int64, in UpdateInput) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	if in.Phone != nil {
		c.Phone = *in.Phone
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	if in.City != nil {
		c.City = *in.City
	}
	c.UpdatedAt = time.Now()
	m.customers[id] = c
	return c, nil
}

func (m *memoryStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.customers[id]; !ok {
		return ErrNotFound
	}
	delete(m.customers, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(store, logger), store
}

func TestCreateB2BCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Create(context.Background(), CreateInput{
		Type:          TypeB2B,
		Phone:         "0300-1234567",
		Address:       "Industrial Area",
		City:          "Lahore",
		BusinessName:  "Stonecraft Traders",
		ContactPerson: "Ali Raza",
		BusinessType:  "Wholesaler",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, "Stonecraft Traders", c.DisplayName())
	assert.Zero(t, c.TotalOrders)
	assert.Zero(t, c.TotalSpent)
}

func TestCreateB2CCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Create(context.Background(), CreateInput{
		Type:      TypeB2C,
		Phone:     "0301-7654321",
		Address:   "Model Town",
		City:      "Karachi",
		FirstName: "Sara",
		LastName:  "Khan",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sara Khan", c.DisplayName())
}

func TestCreateB2CCustomerNormalizesNames(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Create(context.Background(), CreateInput{
		Type:      TypeB2C,
		Phone:     "0301-0000000",
		Address:   "Model Town",
		City:      "Karachi",
		FirstName: "  sara ",
		LastName:  "khan",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sara", c.FirstName)
	assert.Equal(t, "Khan", c.LastName)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Type: TypeB2B, Phone: "1", Address: "a", City: "c"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Type: TypeB2C, Phone: "1", Address: "a", City: "c", FirstName: "Only"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Type: "B2X", Phone: "1", Address: "a", City: "c"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Type: TypeB2C, Address: "a", City: "c", FirstName: "A", LastName: "B"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateCustomerStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{
		Type: TypeB2C, Phone: "1", Address: "a", City: "c", FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)

	inactive := StatusInactive
	updated, err := svc.Update(ctx, c.ID, UpdateInput{Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, updated.Status)

	bogus := AccountStatus("Archived")
	_, err = svc.Update(ctx, c.ID, UpdateInput{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteCustomer(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{
		Type: TypeB2C, Phone: "1", Address: "a", City: "c", FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.Empty(t, store.customers)
	assert.ErrorIs(t, svc.Delete(ctx, c.ID), ErrNotFound)
}
