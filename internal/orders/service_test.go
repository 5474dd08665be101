package orders

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
	"github.com/marbledesk/marbledesk/internal/inventory"
)

// memStore is an in-memory Store with commit/rollback semantics so the
// all-or-nothing behaviour of order transactions can be asserted.
type memStore struct {
	nextOrderID   int64
	nextPaymentID int64
	orders        map[int64]Order
	items         map[int64]inventory.Item
	customers     map[int64]customers.Customer
}

func newMemStore() *memStore {
	return &memStore{
		nextOrderID:   1,
		nextPaymentID: 1,
		orders:        make(map[int64]Order),
		items:         make(map[int64]inventory.Item),
		customers:     make(map[int64]customers.Customer),
	}
}

func (m *memStore) snapshot() *memStore {
	cp := newMemStore()
	cp.nextOrderID = m.nextOrderID
	cp.nextPaymentID = m.nextPaymentID
	for k, v := range m.orders {
		v.Items = append([]OrderItem(nil), v.Items...)
		v.Payments = append([]Payment(nil), v.Payments...)
		cp.orders[k] = v
	}
	for k, v := range m.items {
		cp.items[k] = v
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

func (m *memStore) Get(_ context.Context, id int64) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memStore) List(_ context.Context, filter ListFilter) ([]Order, int64, error) {
	var out []Order
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.CustomerID != 0 && o.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

type memTx struct {
	store *memStore
}

func (t *memTx) InsertOrder(_ context.Context, o Order) (Order, error) {
	for _, existing := range t.store.orders {
		if existing.Number == o.Number {
			return Order{}, assert.AnError
		}
	}
	o.ID = t.store.nextOrderID
	t.store.nextOrderID++
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	t.store.orders[o.ID] = o
	return o, nil
}

func (t *memTx) GetOrderForUpdate(_ context.Context, id int64) (Order, error) {
	o, ok := t.store.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (t *memTx) UpdateStatus(_ context.Context, id int64, status OrderStatus) error {
	o, ok := t.store.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	t.store.orders[id] = o
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, orderID int64, p Payment) (Payment, error) {
	o, ok := t.store.orders[orderID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	p.ID = t.store.nextPaymentID
	t.store.nextPaymentID++
	p.OrderID = orderID
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}
	o.Payments = append(o.Payments, p)
	t.store.orders[orderID] = o
	return p, nil
}

func (t *memTx) UpdatePaymentTotals(_ context.Context, id int64, paid, remaining float64, status PaymentStatus) error {
	o, ok := t.store.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.PaidAmount = paid
	o.RemainingAmount = remaining
	o.PaymentStatus = status
	t.store.orders[id] = o
	return nil
}

func (t *memTx) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := t.store.orders[id]; !ok {
		return ErrNotFound
	}
	delete(t.store.orders, id)
	return nil
}

func (t *memTx) ReserveStock(_ context.Context, itemID, qty int64) error {
	it, ok := t.store.items[itemID]
	if !ok {
		return inventory.ErrNotFound
	}
	if it.Quantity < qty {
		return inventory.ErrInsufficientStock
	}
	it.Quantity -= qty
	it.Status = inventory.StatusFor(it.Quantity)
	t.store.items[itemID] = it
	return nil
}

func (t *memTx) ReleaseStock(_ context.Context, itemID, qty int64) error {
	it, ok := t.store.items[itemID]
	if !ok {
		return inventory.ErrNotFound
	}
	it.Quantity += qty
	it.Status = inventory.StatusFor(it.Quantity)
	t.store.items[itemID] = it
	return nil
}

func (t *memTx) GetItemForUpdate(_ context.Context, itemID int64) (inventory.Item, error) {
	it, ok := t.store.items[itemID]
	if !ok {
		return inventory.Item{}, inventory.ErrNotFound
	}
	return it, nil
}

func (t *memTx) GetCustomerForUpdate(_ context.Context, customerID int64) (customers.Customer, error) {
	c, ok := t.store.customers[customerID]
	if !ok {
		return customers.Customer{}, customers.ErrNotFound
	}
	return c, nil
}

func (t *memTx) RecordCustomerOrder(_ context.Context, customerID int64, amount float64) error {
	c, ok := t.store.customers[customerID]
	if !ok {
		return customers.ErrNotFound
	}
	c.TotalOrders++
	c.TotalSpent += amount
	t.store.customers[customerID] = c
	return nil
}

func (t *memTx) ReverseCustomerOrder(_ context.Context, customerID int64, amount float64) error {
	c, ok := t.store.customers[customerID]
	if !ok {
		return customers.ErrNotFound
	}
	if c.TotalOrders > 0 {
		c.TotalOrders--
	}
	c.TotalSpent -= amount
	if c.TotalSpent < 0 {
		c.TotalSpent = 0
	}
	t.store.customers[customerID] = c
	return nil
}

func (t *memTx) AdjustCustomerArrears(_ context.Context, customerID int64, delta float64) error {
	c, ok := t.store.customers[customerID]
	if !ok {
		return customers.ErrNotFound
	}
	if c.Type != customers.TypeB2B {
		return nil
	}
	c.CurrentArrears += delta
	if c.CurrentArrears < 0 {
		c.CurrentArrears = 0
	}
	t.store.customers[customerID] = c
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	store.items[1] = inventory.Item{
		ID: 1, MarbleType: "Carrara White", Size: "24x24", Quantity: 150,
		PurchaseRate: 300, SaleRate: 500,
		Status: inventory.StatusFor(150),
	}
	store.customers[1] = customers.Customer{
		ID: 1, Type: customers.TypeB2B, Status: customers.StatusActive,
		BusinessName: "Stonecraft Traders", Phone: "0300-1234567",
	}
	store.customers[2] = customers.Customer{
		ID: 2, Type: customers.TypeB2C, Status: customers.StatusActive,
		FirstName: "Sara", LastName: "Khan", Phone: "0301-7654321",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(store, logger), store
}

func TestCreateOrderReservesStockAndBumpsCustomer(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, 30000.0, order.TotalAmount)
	assert.Equal(t, 30000.0, order.RemainingAmount)
	assert.Equal(t, "Stonecraft Traders", order.CustomerName)

	item := store.items[1]
	assert.Equal(t, int64(90), item.Quantity)
	assert.Equal(t, inventory.StatusLowStock, item.Status)

	cust := store.customers[1]
	assert.Equal(t, int64(1), cust.TotalOrders)
	assert.Equal(t, 30000.0, cust.TotalSpent)
	assert.Equal(t, 30000.0, cust.CurrentArrears)
}

func TestCreateOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 500}},
		DeliveryAddress: "Site A",
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	assert.Empty(t, store.orders)
	assert.Equal(t, int64(150), store.items[1].Quantity)
	assert.Zero(t, store.customers[1].TotalOrders)
	assert.Zero(t, store.customers[1].TotalSpent)
}

func TestCreateOrderPartialFailureRollsBackEarlierLines(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.items[2] = inventory.Item{ID: 2, MarbleType: "Emperador", Size: "12x12", Quantity: 10, SaleRate: 700, Status: inventory.StatusFor(10)}

	_, err := svc.Create(ctx, CreateInput{
		CustomerID: 1,
		Items: []ItemInput{
			{InventoryID: 1, Quantity: 50},
			{InventoryID: 2, Quantity: 20},
		},
		DeliveryAddress: "Site A",
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	// The first line's reservation must not stick.
	assert.Equal(t, int64(150), store.items[1].Quantity)
	assert.Equal(t, int64(10), store.items[2].Quantity)
	assert.Empty(t, store.orders)
}

func TestCreateOrderWithInitialPayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      2,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 10}},
		DeliveryAddress: "Home",
		InitialPayment:  &PaymentInput{Amount: 2000, Method: MethodCash},
	})
	require.NoError(t, err)

	assert.Equal(t, 5000.0, order.TotalAmount)
	assert.Equal(t, 2000.0, order.PaidAmount)
	assert.Equal(t, 3000.0, order.RemainingAmount)
	assert.Equal(t, PaymentPartial, order.PaymentStatus)
	assert.Len(t, order.Payments, 1)
}

func TestCreateOrderRejectsOverpaidInitialPayment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		CustomerID:      2,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 10}},
		DeliveryAddress: "Home",
		InitialPayment:  &PaymentInput{Amount: 99999, Method: MethodCash},
	})
	require.ErrorIs(t, err, ErrExceedsRemaining)
	assert.Empty(t, store.orders)
	assert.Equal(t, int64(150), store.items[1].Quantity)
}

func TestCreateOrderRejectsInactiveCustomer(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := store.customers[2]
	c.Status = customers.StatusInactive
	store.customers[2] = c

	_, err := svc.Create(ctx, CreateInput{
		CustomerID:      2,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 1}},
		DeliveryAddress: "Home",
	})
	assert.ErrorIs(t, err, customers.ErrInactive)
}

func TestAddPaymentDrivesPaymentStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	order, err = svc.AddPayment(ctx, order.ID, PaymentInput{Amount: 10000, Method: MethodCash})
	require.NoError(t, err)
	assert.Equal(t, PaymentPartial, order.PaymentStatus)
	assert.Equal(t, 20000.0, order.RemainingAmount)

	order, err = svc.AddPayment(ctx, order.ID, PaymentInput{Amount: 20000, Method: MethodBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, order.PaymentStatus)
	assert.Zero(t, order.RemainingAmount)
	assert.Len(t, order.Payments, 2)
}

func TestAddPaymentRejectsOverpayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	_, err = svc.AddPayment(ctx, order.ID, PaymentInput{Amount: 30001, Method: MethodCash})
	require.ErrorIs(t, err, ErrExceedsRemaining)

	reloaded, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Zero(t, reloaded.PaidAmount)
	assert.Empty(t, reloaded.Payments)
}

func TestAddPaymentSettlesB2BArrears(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)
	require.Equal(t, 30000.0, store.customers[1].CurrentArrears)

	_, err = svc.AddPayment(ctx, order.ID, PaymentInput{Amount: 12000, Method: MethodCheck, Reference: "CHK-104"})
	require.NoError(t, err)
	assert.Equal(t, 18000.0, store.customers[1].CurrentArrears)
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 10}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	order, err = svc.UpdateStatus(ctx, order.ID, StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, order.Status)

	order, err = svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, order.Status)

	_, err = svc.UpdateStatus(ctx, order.ID, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelRestoresStockAndCustomerTotals(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)
	require.Equal(t, int64(90), store.items[1].Quantity)

	order, err = svc.UpdateStatus(ctx, order.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, order.Status)

	item := store.items[1]
	assert.Equal(t, int64(150), item.Quantity)
	assert.Equal(t, inventory.StatusInStock, item.Status)

	cust := store.customers[1]
	assert.Zero(t, cust.TotalOrders)
	assert.Zero(t, cust.TotalSpent)
	assert.Zero(t, cust.CurrentArrears)

	// Cancelled orders accept neither payments nor further moves,
	// so the reversal can only ever run once.
	_, err = svc.AddPayment(ctx, order.ID, PaymentInput{Amount: 100, Method: MethodCash})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, int64(150), store.items[1].Quantity)
}

func TestDeleteOnlyPendingOrders(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, order.ID, StatusProcessing)
	require.NoError(t, err)

	err = svc.Delete(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, store.orders, 1)
}

func TestDeletePendingOrderRestoresEverything(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, order.ID))

	assert.Empty(t, store.orders)
	assert.Equal(t, int64(150), store.items[1].Quantity)
	assert.Zero(t, store.customers[1].TotalOrders)
	assert.Zero(t, store.customers[1].TotalSpent)
	assert.Zero(t, store.customers[1].CurrentArrears)
}

func TestOrderSnapshotsMarbleTypeAndRate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      2,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 5}},
		DeliveryAddress: "Home",
	})
	require.NoError(t, err)

	// Mutate the catalogue afterwards, the order keeps its snapshot.
	it := store.items[1]
	it.MarbleType = "Renamed"
	it.SaleRate = 999
	store.items[1] = it

	reloaded, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, "Carrara White", reloaded.Items[0].MarbleType)
	assert.Equal(t, "24x24", reloaded.Items[0].Size)
	assert.Equal(t, 500.0, reloaded.Items[0].RatePerFoot)
}
