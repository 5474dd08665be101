package customers

import "time"

// CustomerResponse is the JSON shape of a customer.
type CustomerResponse struct {
	ID          int64   `json:"id"`
	Type        string  `json:"customerType"`
	Phone       string  `json:"phone"`
	Email       string  `json:"email,omitempty"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	Status      string  `json:"status"`
	TotalOrders int64   `json:"totalOrders"`
	TotalSpent  float64 `json:"totalSpent"`

	BusinessName   string  `json:"businessName,omitempty"`
	ContactPerson  string  `json:"contactPerson,omitempty"`
	BusinessType   string  `json:"businessType,omitempty"`
	CurrentArrears float64 `json:"currentArrears,omitempty"`

	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	IDCard      string   `json:"idCard,omitempty"`
	Preferences []string `json:"preferences,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type createCustomerRequest struct {
	Type    string `json:"customerType" validate:"required,oneof=B2B B2C"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`

	BusinessName  string `json:"businessName" validate:"required_if=Type B2B"`
	ContactPerson string `json:"contactPerson" validate:"required_if=Type B2B"`
	BusinessType  string `json:"businessType" validate:"required_if=Type B2B"`

	FirstName   string   `json:"firstName" validate:"required_if=Type B2C"`
	LastName    string   `json:"lastName" validate:"required_if=Type B2C"`
	IDCard      string   `json:"idCard"`
	Preferences []string `json:"preferences"`
}

type updateCustomerRequest struct {
	Phone   *string `json:"phone" validate:"omitempty,min=1"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Address *string `json:"address" validate:"omitempty,min=1"`
	City    *string `json:"city" validate:"omitempty,min=1"`
	Status  *string `json:"status" validate:"omitempty,oneof=Active Inactive"`

	BusinessName  *string `json:"businessName"`
	ContactPerson *string `json:"contactPerson"`
	BusinessType  *string `json:"businessType"`

	FirstName   *string   `json:"firstName"`
	LastName    *string   `json:"lastName"`
	IDCard      *string   `json:"idCard"`
	Preferences *[]string `json:"preferences"`
}

func toCustomerResponse(c Customer) CustomerResponse {
	return CustomerResponse{
		ID:             c.ID,
		Type:           string(c.Type),
		Phone:          c.Phone,
		Email:          c.Email,
		Address:        c.Address,
		City:           c.City,
		Status:         string(c.Status),
		TotalOrders:    c.TotalOrders,
		TotalSpent:     c.TotalSpent,
		BusinessName:   c.BusinessName,
		ContactPerson:  c.ContactPerson,
		BusinessType:   c.BusinessType,
		CurrentArrears: c.CurrentArrears,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		IDCard:         c.IDCard,
		Preferences:    c.Preferences,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toCustomerResponses(list []Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCustomerResponse(c))
	}
	return out
}
