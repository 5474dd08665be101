package supply

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marbledesk/marbledesk/internal/customers"
	"github.com/marbledesk/marbledesk/internal/orders"
)

type memStore struct {
	nextID        int64
	nextPaymentID int64
	supplyOrders  map[int64]SupplyOrder
	customers     map[int64]customers.Customer
}

func newMemStore() *memStore {
	return &memStore{
		nextID:        1,
		nextPaymentID: 1,
		supplyOrders:  make(map[int64]SupplyOrder),
		customers:     make(map[int64]customers.Customer),
	}
}

func (m *memStore) snapshot() *memStore {
	cp := newMemStore()
	cp.nextID = m.nextID
	cp.nextPaymentID = m.nextPaymentID
	for k, v := range m.supplyOrders {
		v.Items = append([]Item(nil), v.Items...)
		v.Payments = append([]Payment(nil), v.Payments...)
		cp.supplyOrders[k] = v
	}
	for k, v := range m.customers {
		cp.customers[k] = v
	}
	return cp
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	work := m.snapshot()
	if err := fn(ctx, &memTx{store: work}); err != nil {
		return err
	}
	*m = *work
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (SupplyOrder, error) {
	so, ok := m.supplyOrders[id]
	if !ok {
		return SupplyOrder{}, ErrNotFound
	}
	return so, nil
}

func (m *memStore) List(_ context.Context, filter ListFilter) ([]SupplyOrder, int64, error) {
	var out []SupplyOrder
	for _, so := range m.supplyOrders {
		if filter.Status != "" && so.Status != filter.Status {
			continue
		}
		out = append(out, so)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

type memTx struct {
	store *memStore
}

func (t *memTx) InsertSupplyOrder(_ context.Context, so SupplyOrder) (SupplyOrder, error) {
	so.ID = t.store.nextID
	t.store.nextID++
	so.CreatedAt = time.Now()
	so.UpdatedAt = so.CreatedAt
	for i := range so.Items {
		so.Items[i].SupplyOrderID = so.ID
	}
	t.store.supplyOrders[so.ID] = so
	return so, nil
}

func (t *memTx) GetForUpdate(_ context.Context, id int64) (SupplyOrder, error) {
	so, ok := t.store.supplyOrders[id]
	if !ok {
		return SupplyOrder{}, ErrNotFound
	}
	return so, nil
}

func (t *memTx) InsertPayment(_ context.Context, supplyOrderID int64, p Payment) (Payment, error) {
	so, ok := t.store.supplyOrders[supplyOrderID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	p.ID = t.store.nextPaymentID
	t.store.nextPaymentID++
	p.SupplyOrderID = supplyOrderID
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}
	so.Payments = append(so.Payments, p)
	t.store.supplyOrders[supplyOrderID] = so
	return p, nil
}

func (t *memTx) UpdateLedger(_ context.Context, so SupplyOrder) error {
	stored, ok := t.store.supplyOrders[so.ID]
	if !ok {
		return ErrNotFound
	}
	stored.PaidToFactory = so.PaidToFactory
	stored.ReceivedFromCustomer = so.ReceivedFromCustomer
	stored.FactoryPaymentStatus = so.FactoryPaymentStatus
	stored.CustomerPaymentStatus = so.CustomerPaymentStatus
	stored.Status = so.Status
	t.store.supplyOrders[so.ID] = stored
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, id int64, status Status) error {
	so, ok := t.store.supplyOrders[id]
	if !ok {
		return ErrNotFound
	}
	so.Status = status
	t.store.supplyOrders[id] = so
	return nil
}

func (t *memTx) GetCustomerForUpdate(_ context.Context, customerID int64) (customers.Customer, error) {
	c, ok := t.store.customers[customerID]
	if !ok {
		return customers.Customer{}, customers.ErrNotFound
	}
	return c, nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	store.customers[1] = customers.Customer{
		ID: 1, Type: customers.TypeB2B, Status: customers.StatusActive,
		BusinessName: "Stonecraft Traders", Phone: "0300-1234567",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(store, logger), store
}

func createSample(t *testing.T, svc *Service) SupplyOrder {
	t.Helper()
	so, err := svc.Create(context.Background(), CreateInput{
		CustomerID:      1,
		FactoryName:     "Ziarat Marble Works",
		Items:           []ItemInput{{MarbleType: "Ziarat White", Quantity: 100, PurchaseRate: 100, SaleRate: 150}},
		DeliveryAddress: "Warehouse 3",
	})
	require.NoError(t, err)
	return so
}

func TestCreateSupplyOrderSnapshotsProfit(t *testing.T) {
	svc, _ := newTestService(t)

	so := createSample(t, svc)
	assert.Equal(t, 10000.0, so.TotalPurchaseAmount)
	assert.Equal(t, 15000.0, so.TotalSaleAmount)
	assert.Equal(t, 5000.0, so.Profit)
	assert.Equal(t, StatusPending, so.Status)
	assert.Equal(t, orders.PaymentUnpaid, so.FactoryPaymentStatus)
	assert.Equal(t, orders.PaymentUnpaid, so.CustomerPaymentStatus)
	assert.Equal(t, "Stonecraft Traders", so.CustomerName)
}

func TestCreateSupplyOrderValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{CustomerID: 1, FactoryName: "F", DeliveryAddress: "W"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		CustomerID:  1,
		FactoryName: "F",
		Items:       []ItemInput{{MarbleType: "X", Quantity: 0, PurchaseRate: 1, SaleRate: 2}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		CustomerID:      99,
		FactoryName:     "F",
		Items:           []ItemInput{{MarbleType: "X", Quantity: 1, PurchaseRate: 1, SaleRate: 2}},
		DeliveryAddress: "W",
	})
	assert.ErrorIs(t, err, customers.ErrNotFound)
}

func TestFactoryPaymentRejectsOverpayment(t *testing.T) {
	svc, _ := newTestService(t)
	so := createSample(t, svc)

	// Paying the factory more than the purchase total must fail even
	// though the sale total is higher.
	_, err := svc.AddFactoryPayment(context.Background(), so.ID, orders.PaymentInput{
		Amount: 12000, Method: orders.MethodCash,
	})
	require.ErrorIs(t, err, ErrExceedsRemaining)

	reloaded, err := svc.Get(context.Background(), so.ID)
	require.NoError(t, err)
	assert.Zero(t, reloaded.PaidToFactory)
	assert.Empty(t, reloaded.Payments)
}

func TestPaymentsDriveCombinedStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	so := createSample(t, svc)

	so, err := svc.AddFactoryPayment(ctx, so.ID, orders.PaymentInput{Amount: 4000, Method: orders.MethodCash})
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPartial, so.FactoryPaymentStatus)
	assert.Equal(t, StatusProcessing, so.Status)

	so, err = svc.AddFactoryPayment(ctx, so.ID, orders.PaymentInput{Amount: 6000, Method: orders.MethodBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, so.FactoryPaymentStatus)
	assert.Equal(t, StatusProcessing, so.Status)

	so, err = svc.AddCustomerPayment(ctx, so.ID, orders.PaymentInput{Amount: 15000, Method: orders.MethodCheck, Reference: "CHK-55"})
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, so.CustomerPaymentStatus)
	assert.Equal(t, StatusCompleted, so.Status)
	assert.Len(t, so.Payments, 3)
}

func TestDerivedStatusNeverMovesBackwards(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	so := createSample(t, svc)

	so, err := svc.UpdateStatus(ctx, so.ID, StatusDispatched)
	require.NoError(t, err)
	require.Equal(t, StatusDispatched, so.Status)

	// A partial payment derives Processing, which must not demote a
	// dispatched order.
	so, err = svc.AddCustomerPayment(ctx, so.ID, orders.PaymentInput{Amount: 5000, Method: orders.MethodCash})
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, so.Status)
}

func TestManualStatusRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	so := createSample(t, svc)

	_, err := svc.UpdateStatus(ctx, so.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidState)

	so, err = svc.UpdateStatus(ctx, so.ID, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, so.Status)

	_, err = svc.UpdateStatus(ctx, so.ID, StatusDispatched)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.UpdateStatus(ctx, so.ID, Status("Returned"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBothLegsPaidCompletesFromDelivered(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	so := createSample(t, svc)

	so, err := svc.UpdateStatus(ctx, so.ID, StatusDelivered)
	require.NoError(t, err)

	so, err = svc.AddFactoryPayment(ctx, so.ID, orders.PaymentInput{Amount: 10000, Method: orders.MethodCash})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, so.Status)

	so, err = svc.AddCustomerPayment(ctx, so.ID, orders.PaymentInput{Amount: 15000, Method: orders.MethodCash})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, so.Status)
}
