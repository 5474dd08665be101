package orders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusCancelled},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	forbidden := []struct{ from, to OrderStatus }{
		{StatusProcessing, StatusPending},
		{StatusCompleted, StatusProcessing},
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusCompleted},
		{StatusPending, StatusPending},
	}
	for _, tc := range forbidden {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestPaymentStatusFor(t *testing.T) {
	assert.Equal(t, PaymentUnpaid, PaymentStatusFor(0, 1000))
	assert.Equal(t, PaymentPartial, PaymentStatusFor(500, 1000))
	assert.Equal(t, PaymentPaid, PaymentStatusFor(1000, 1000))
	assert.Equal(t, PaymentPaid, PaymentStatusFor(1500, 1000))
}

func TestNewOrderNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := NewOrderNumber()
		assert.True(t, strings.HasPrefix(n, "ORD-"))
		assert.Len(t, n, 12)
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
}

func TestValidMethod(t *testing.T) {
	assert.True(t, ValidMethod(MethodCash))
	assert.True(t, ValidMethod(MethodBankTransfer))
	assert.True(t, ValidMethod(MethodCheck))
	assert.False(t, ValidMethod("Crypto"))
}
