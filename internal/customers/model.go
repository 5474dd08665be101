package customers

import (
	"errors"
	"time"
)

// CustomerType distinguishes business and retail customers.
type CustomerType string

const (
	// TypeB2B is a business customer with arrears tracking.
	TypeB2B CustomerType = "B2B"
	// TypeB2C is a retail walk-in customer.
	TypeB2C CustomerType = "B2C"
)

// AccountStatus marks whether a customer is active.
type AccountStatus string

const (
	// StatusActive allows new orders.
	StatusActive AccountStatus = "Active"
	// StatusInactive keeps the record but blocks new activity.
	StatusInactive AccountStatus = "Inactive"
)

// Customer aggregates identity, contact details and order history totals.
// B2B-only and B2C-only fields are populated according to Type.
type Customer struct {
	ID          int64
	Type        CustomerType
	Phone       string
	Email       string
	Address     string
	City        string
	Status      AccountStatus
	TotalOrders int64
	TotalSpent  float64

	// B2B fields
	BusinessName   string
	ContactPerson  string
	BusinessType   string
	CurrentArrears float64

	// B2C fields
	FirstName   string
	LastName    string
	IDCard      string
	Preferences []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the customer-facing name for either type.
func (c Customer) DisplayName() string {
	if c.Type == TypeB2B {
		return c.BusinessName
	}
	name := c.FirstName
	if c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += c.LastName
	}
	return name
}

// CreateInput describes a new customer of either type.
type CreateInput struct {
	Type    CustomerType
	Phone   string
	Email   string
	Address string
	City    string

	BusinessName  string
	ContactPerson string
	BusinessType  string

	FirstName   string
	LastName    string
	IDCard      string
	Preferences []string
}

// UpdateInput describes a partial customer update.
type UpdateInput struct {
	Phone   *string
	Email   *string
	Address *string
	City    *string
	Status  *AccountStatus

	BusinessName  *string
	ContactPerson *string
	BusinessType  *string

	FirstName   *string
	LastName    *string
	IDCard      *string
	Preferences *[]string
}

// ListFilter narrows customer listings.
type ListFilter struct {
	Type   CustomerType
	Status AccountStatus
	Search string
	Limit  int
	Offset int
}

var (
	// ErrNotFound indicates a missing customer.
	ErrNotFound = errors.New("customers: customer not found")
	// ErrValidation indicates invalid customer data.
	ErrValidation = errors.New("customers: validation failed")
	// ErrInactive indicates the customer cannot take new orders.
	ErrInactive = errors.New("customers: customer is inactive")
)
