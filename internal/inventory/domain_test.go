package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		qty  int64
		want StockStatus
	}{
		{"negative", -5, StatusOutOfStock},
		{"zero", 0, StatusOutOfStock},
		{"one", 1, StatusLowStock},
		{"at threshold", 100, StatusLowStock},
		{"just above threshold", 101, StatusInStock},
		{"plenty", 5000, StatusInStock},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(tc.qty))
		})
	}
}
