package orders

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marbledesk/marbledesk/internal/shared"
)

type memReplayGuard struct {
	keys map[string]string
}

func newMemReplayGuard() *memReplayGuard {
	return &memReplayGuard{keys: make(map[string]string)}
}

func (g *memReplayGuard) CheckAndInsert(_ context.Context, key, scope string) error {
	if _, ok := g.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	g.keys[key] = scope
	return nil
}

func (g *memReplayGuard) Delete(_ context.Context, key string) error {
	delete(g.keys, key)
	return nil
}

func newPaymentTestServer(t *testing.T) (*Service, *memReplayGuard, http.Handler) {
	t.Helper()
	svc, _ := newTestService(t)
	guard := newMemReplayGuard()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHandler(svc, guard, logger)
	r := chi.NewRouter()
	r.Route("/orders", h.MountRoutes)
	return svc, guard, r
}

func postPayment(t *testing.T, srv http.Handler, orderID int64, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/orders/%d/payments", orderID), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAddPaymentRejectsReplayedIdempotencyKey(t *testing.T) {
	svc, _, srv := newPaymentTestServer(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	body := `{"amount":1000,"paymentMethod":"Cash"}`
	rec := postPayment(t, srv, order.ID, "pay-abc", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postPayment(t, srv, order.ID, "pay-abc", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	reloaded, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, reloaded.PaidAmount)
	assert.Len(t, reloaded.Payments, 1)
}

func TestAddPaymentReleasesKeyWhenPaymentFails(t *testing.T) {
	svc, guard, srv := newPaymentTestServer(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	rec := postPayment(t, srv, order.ID, "pay-retry", `{"amount":99999,"paymentMethod":"Cash"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, guard.keys)

	// The caller fixes the amount and retries with the same key.
	rec = postPayment(t, srv, order.ID, "pay-retry", `{"amount":5000,"paymentMethod":"Cash"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	reloaded, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, reloaded.PaidAmount)
}

func TestAddPaymentWithoutKeySkipsGuard(t *testing.T) {
	svc, guard, srv := newPaymentTestServer(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CustomerID:      1,
		Items:           []ItemInput{{InventoryID: 1, Quantity: 60}},
		DeliveryAddress: "Site A",
	})
	require.NoError(t, err)

	rec := postPayment(t, srv, order.ID, "", `{"amount":1000,"paymentMethod":"Cash"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, guard.keys)
}
