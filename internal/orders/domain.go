package orders

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	// StatusPending is the initial state of every order.
	StatusPending OrderStatus = "Pending"
	// StatusProcessing means the order is being prepared.
	StatusProcessing OrderStatus = "Processing"
	// StatusCompleted is terminal.
	StatusCompleted OrderStatus = "Completed"
	// StatusCancelled is terminal and reverses stock and customer totals.
	StatusCancelled OrderStatus = "Cancelled"
)

// CanTransition reports whether from may move to to.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

// PaymentStatus is derived from the payment ledger, never set directly.
type PaymentStatus string

const (
	// PaymentUnpaid means nothing has been received.
	PaymentUnpaid PaymentStatus = "Unpaid"
	// PaymentPartial means a partial amount has been received.
	PaymentPartial PaymentStatus = "Partially Paid"
	// PaymentPaid means the order total has been covered.
	PaymentPaid PaymentStatus = "Paid"
)

// PaymentStatusFor derives the payment status from amounts.
func PaymentStatusFor(paid, total float64) PaymentStatus {
	switch {
	case paid <= 0:
		return PaymentUnpaid
	case paid < total:
		return PaymentPartial
	default:
		return PaymentPaid
	}
}

// PaymentMethod enumerates accepted settlement channels.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "Cash"
	MethodBankTransfer PaymentMethod = "Bank Transfer"
	MethodCheck        PaymentMethod = "Check"
)

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m PaymentMethod) bool {
	return m == MethodCash || m == MethodBankTransfer || m == MethodCheck
}

// OrderItem is a line snapshot taken at order time. Marble type, size and
// rate are copied from inventory so later catalogue edits cannot rewrite
// history.
type OrderItem struct {
	ID          int64
	OrderID     int64
	InventoryID int64
	MarbleType  string
	Size        string
	Quantity    int64
	RatePerFoot float64
	Amount      float64
}

// Payment is one append-only entry in the order payment ledger.
type Payment struct {
	ID        int64
	OrderID   int64
	Amount    float64
	Method    PaymentMethod
	Reference string
	Notes     string
	PaidAt    time.Time
}

// Order aggregates line items, the payment ledger and derived totals.
type Order struct {
	ID              int64
	Number          string
	CustomerID      int64
	CustomerType    string
	CustomerName    string
	CustomerContact string
	Items           []OrderItem
	Payments        []Payment
	TotalAmount     float64
	PaidAmount      float64
	RemainingAmount float64
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	DeliveryAddress string
	DeliveryDate    *time.Time
	Notes           string
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrderNumber generates a short unique order reference.
// Uniqueness is enforced by the database, callers retry on collision.
func NewOrderNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + raw[:8]
}

// ItemInput is one requested order line.
type ItemInput struct {
	InventoryID int64
	Quantity    int64
	// RatePerFoot overrides the catalogue sale rate when positive.
	RatePerFoot float64
}

// PaymentInput records money received against an order.
type PaymentInput struct {
	Amount    float64
	Method    PaymentMethod
	Reference string
	Notes     string
}

// CreateInput describes a new order.
type CreateInput struct {
	CustomerID      int64
	Items           []ItemInput
	DeliveryAddress string
	DeliveryDate    *time.Time
	Notes           string
	InitialPayment  *PaymentInput
	CreatedBy       int64
}

// ListFilter narrows order listings.
type ListFilter struct {
	CustomerID    int64
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Search        string
	Limit         int
	Offset        int
}

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = errors.New("orders: order not found")
	// ErrValidation indicates invalid order data.
	ErrValidation = errors.New("orders: validation failed")
	// ErrInvalidTransition indicates a status move the state machine forbids.
	ErrInvalidTransition = errors.New("orders: invalid status transition")
	// ErrInvalidState indicates an operation the order's current state forbids.
	ErrInvalidState = errors.New("orders: invalid state for operation")
	// ErrExceedsRemaining indicates a payment larger than the open balance.
	ErrExceedsRemaining = errors.New("orders: payment exceeds remaining amount")
)
