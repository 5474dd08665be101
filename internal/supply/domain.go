package supply

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marbledesk/marbledesk/internal/orders"
)

// Status tracks a supply order through sourcing and delivery.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusDispatched Status = "Dispatched"
	StatusDelivered  Status = "Delivered"
	StatusCompleted  Status = "Completed"
)

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusDispatched: 2,
	StatusDelivered:  3,
	StatusCompleted:  4,
}

// KnownStatus reports whether s is a valid supply order status.
func KnownStatus(s Status) bool {
	_, ok := statusRank[s]
	return ok
}

// Advances reports whether moving from from to to goes forward.
// Supply orders never move backwards.
func Advances(from, to Status) bool {
	return statusRank[to] > statusRank[from]
}

// PaymentLeg identifies which side of the deal a payment belongs to.
type PaymentLeg string

const (
	// LegFactory is money paid out to the sourcing factory.
	LegFactory PaymentLeg = "FACTORY"
	// LegCustomer is money received from the customer.
	LegCustomer PaymentLeg = "CUSTOMER"
)

// Item is a sourced line with both sides of the deal snapshotted, so
// the recorded profit cannot drift after rates change.
type Item struct {
	ID                  int64
	SupplyOrderID       int64
	MarbleType          string
	Size                string
	Quantity            int64
	PurchaseRate        float64
	SaleRate            float64
	TotalPurchaseAmount float64
	TotalSaleAmount     float64
}

// Payment is one ledger entry on either leg.
type Payment struct {
	ID            int64
	SupplyOrderID int64
	Leg           PaymentLeg
	Amount        float64
	Method        orders.PaymentMethod
	Reference     string
	Notes         string
	PaidAt        time.Time
}

// SupplyOrder is a factory-sourced order with two payment legs: a
// payable towards the factory and a receivable from the customer.
type SupplyOrder struct {
	ID                    int64
	Number                string
	CustomerID            int64
	CustomerName          string
	FactoryName           string
	Items                 []Item
	Payments              []Payment
	TotalPurchaseAmount   float64
	TotalSaleAmount       float64
	Profit                float64
	PaidToFactory         float64
	ReceivedFromCustomer  float64
	Status                Status
	FactoryPaymentStatus  orders.PaymentStatus
	CustomerPaymentStatus orders.PaymentStatus
	DeliveryAddress       string
	DeliveryDate          *time.Time
	Notes                 string
	CreatedBy             int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DerivedStatus computes the automatic lifecycle position from the two
// payment legs. Both legs paid completes the order, any money moving on
// either leg lifts it to Processing. The result never moves an order
// backwards past a manually set Dispatched or Delivered.
func DerivedStatus(current Status, factory, customer orders.PaymentStatus) Status {
	var derived Status
	switch {
	case factory == orders.PaymentPaid && customer == orders.PaymentPaid:
		derived = StatusCompleted
	case factory != orders.PaymentUnpaid || customer != orders.PaymentUnpaid:
		derived = StatusProcessing
	default:
		derived = StatusPending
	}
	if Advances(current, derived) {
		return derived
	}
	return current
}

// NewSupplyOrderNumber generates a short unique supply order reference.
func NewSupplyOrderNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "SUP-" + raw[:8]
}

// ItemInput is one requested supply line.
type ItemInput struct {
	MarbleType   string
	Size         string
	Quantity     int64
	PurchaseRate float64
	SaleRate     float64
}

// CreateInput describes a new supply order.
type CreateInput struct {
	CustomerID      int64
	FactoryName     string
	Items           []ItemInput
	DeliveryAddress string
	DeliveryDate    *time.Time
	Notes           string
	CreatedBy       int64
}

// ListFilter narrows supply order listings.
type ListFilter struct {
	CustomerID int64
	Status     Status
	Search     string
	Limit      int
	Offset     int
}

var (
	// ErrNotFound indicates a missing supply order.
	ErrNotFound = errors.New("supply: supply order not found")
	// ErrValidation indicates invalid supply order data.
	ErrValidation = errors.New("supply: validation failed")
	// ErrInvalidState indicates a forbidden status move or operation.
	ErrInvalidState = errors.New("supply: invalid state for operation")
	// ErrExceedsRemaining indicates a payment larger than the leg's open balance.
	ErrExceedsRemaining = errors.New("supply: payment exceeds remaining amount")
)
