package orders

import "time"

// OrderItemResponse is one line of an order.
type OrderItemResponse struct {
	ID          int64   `json:"id"`
	InventoryID int64   `json:"inventoryId"`
	MarbleType  string  `json:"marbleType"`
	Size        string  `json:"size"`
	Quantity    int64   `json:"quantity"`
	RatePerFoot float64 `json:"ratePerFoot"`
	Amount      float64 `json:"totalAmount"`
}

// PaymentResponse is one ledger entry.
type PaymentResponse struct {
	ID        int64     `json:"id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"paymentMethod"`
	Reference string    `json:"reference,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	PaidAt    time.Time `json:"paymentDate"`
}

// OrderResponse is the JSON shape of an order.
type OrderResponse struct {
	ID              int64               `json:"id"`
	Number          string              `json:"orderNumber"`
	CustomerID      int64               `json:"customerId"`
	CustomerType    string              `json:"customerType"`
	CustomerName    string              `json:"customerName"`
	CustomerContact string              `json:"customerContact,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	Payments        []PaymentResponse   `json:"payments"`
	TotalAmount     float64             `json:"totalAmount"`
	PaidAmount      float64             `json:"paidAmount"`
	RemainingAmount float64             `json:"remainingAmount"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"paymentStatus"`
	DeliveryAddress string              `json:"deliveryAddress"`
	DeliveryDate    *time.Time          `json:"deliveryDate,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type orderItemRequest struct {
	InventoryID int64   `json:"inventoryId" validate:"required,gt=0"`
	Quantity    int64   `json:"quantity" validate:"required,gt=0"`
	RatePerFoot float64 `json:"ratePerFoot" validate:"gte=0"`
}

type paymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"paymentMethod" validate:"required,oneof=Cash 'Bank Transfer' Check"`
	Reference string  `json:"reference"`
	Notes     string  `json:"notes"`
}

type createOrderRequest struct {
	CustomerID      int64              `json:"customerId" validate:"required,gt=0"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string             `json:"deliveryAddress" validate:"required"`
	DeliveryDate    *time.Time         `json:"deliveryDate"`
	Notes           string             `json:"notes"`
	InitialPayment  *paymentRequest    `json:"initialPayment"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Processing Completed Cancelled"`
}

func toOrderResponse(o Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		Number:          o.Number,
		CustomerID:      o.CustomerID,
		CustomerType:    o.CustomerType,
		CustomerName:    o.CustomerName,
		CustomerContact: o.CustomerContact,
		Items:           make([]OrderItemResponse, 0, len(o.Items)),
		Payments:        make([]PaymentResponse, 0, len(o.Payments)),
		TotalAmount:     o.TotalAmount,
		PaidAmount:      o.PaidAmount,
		RemainingAmount: o.RemainingAmount,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		DeliveryAddress: o.DeliveryAddress,
		DeliveryDate:    o.DeliveryDate,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          it.ID,
			InventoryID: it.InventoryID,
			MarbleType:  it.MarbleType,
			Size:        it.Size,
			Quantity:    it.Quantity,
			RatePerFoot: it.RatePerFoot,
			Amount:      it.Amount,
		})
	}
	for _, p := range o.Payments {
		resp.Payments = append(resp.Payments, PaymentResponse{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    string(p.Method),
			Reference: p.Reference,
			Notes:     p.Notes,
			PaidAt:    p.PaidAt,
		})
	}
	return resp
}

func toOrderResponses(list []Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResponse(o))
	}
	return out
}
