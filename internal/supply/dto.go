package supply

import "time"

// ItemResponse is one supply line.
type ItemResponse struct {
	ID                  int64   `json:"id"`
	MarbleType          string  `json:"marbleType"`
	Size                string  `json:"size,omitempty"`
	Quantity            int64   `json:"quantity"`
	PurchaseRate        float64 `json:"purchaseRate"`
	SaleRate            float64 `json:"saleRate"`
	TotalPurchaseAmount float64 `json:"totalPurchaseAmount"`
	TotalSaleAmount     float64 `json:"totalSaleAmount"`
}

// PaymentResponse is one ledger entry on either leg.
type PaymentResponse struct {
	ID        int64     `json:"id"`
	Leg       string    `json:"leg"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"paymentMethod"`
	Reference string    `json:"reference,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	PaidAt    time.Time `json:"paymentDate"`
}

// SupplyOrderResponse is the JSON shape of a supply order.
type SupplyOrderResponse struct {
	ID                    int64             `json:"id"`
	Number                string            `json:"orderNumber"`
	CustomerID            int64             `json:"customerId"`
	CustomerName          string            `json:"customerName"`
	FactoryName           string            `json:"factoryName"`
	Items                 []ItemResponse    `json:"items"`
	Payments              []PaymentResponse `json:"payments"`
	TotalPurchaseAmount   float64           `json:"totalPurchaseAmount"`
	TotalSaleAmount       float64           `json:"totalSaleAmount"`
	Profit                float64           `json:"profit"`
	PaidToFactory         float64           `json:"paidToFactory"`
	ReceivedFromCustomer  float64           `json:"receivedFromCustomer"`
	Status                string            `json:"status"`
	FactoryPaymentStatus  string            `json:"factoryPaymentStatus"`
	CustomerPaymentStatus string            `json:"customerPaymentStatus"`
	DeliveryAddress       string            `json:"deliveryAddress"`
	DeliveryDate          *time.Time        `json:"deliveryDate,omitempty"`
	Notes                 string            `json:"notes,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

type supplyItemRequest struct {
	MarbleType   string  `json:"marbleType" validate:"required"`
	Size         string  `json:"size"`
	Quantity     int64   `json:"quantity" validate:"required,gt=0"`
	PurchaseRate float64 `json:"purchaseRate" validate:"required,gt=0"`
	SaleRate     float64 `json:"saleRate" validate:"required,gt=0"`
}

type createSupplyOrderRequest struct {
	CustomerID      int64               `json:"customerId" validate:"required,gt=0"`
	FactoryName     string              `json:"factoryName" validate:"required"`
	Items           []supplyItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string              `json:"deliveryAddress" validate:"required"`
	DeliveryDate    *time.Time          `json:"deliveryDate"`
	Notes           string              `json:"notes"`
}

type supplyPaymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"paymentMethod" validate:"required,oneof=Cash 'Bank Transfer' Check"`
	Reference string  `json:"reference"`
	Notes     string  `json:"notes"`
}

type updateSupplyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Processing Dispatched Delivered"`
}

func toSupplyOrderResponse(so SupplyOrder) SupplyOrderResponse {
	resp := SupplyOrderResponse{
		ID:                    so.ID,
		Number:                so.Number,
		CustomerID:            so.CustomerID,
		CustomerName:          so.CustomerName,
		FactoryName:           so.FactoryName,
		Items:                 make([]ItemResponse, 0, len(so.Items)),
		Payments:              make([]PaymentResponse, 0, len(so.Payments)),
		TotalPurchaseAmount:   so.TotalPurchaseAmount,
		TotalSaleAmount:       so.TotalSaleAmount,
		Profit:                so.Profit,
		PaidToFactory:         so.PaidToFactory,
		ReceivedFromCustomer:  so.ReceivedFromCustomer,
		Status:                string(so.Status),
		FactoryPaymentStatus:  string(so.FactoryPaymentStatus),
		CustomerPaymentStatus: string(so.CustomerPaymentStatus),
		DeliveryAddress:       so.DeliveryAddress,
		DeliveryDate:          so.DeliveryDate,
		Notes:                 so.Notes,
		CreatedAt:             so.CreatedAt,
		UpdatedAt:             so.UpdatedAt,
	}
	for _, it := range so.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:                  it.ID,
			MarbleType:          it.MarbleType,
			Size:                it.Size,
			Quantity:            it.Quantity,
			PurchaseRate:        it.PurchaseRate,
			SaleRate:            it.SaleRate,
			TotalPurchaseAmount: it.TotalPurchaseAmount,
			TotalSaleAmount:     it.TotalSaleAmount,
		})
	}
	for _, p := range so.Payments {
		resp.Payments = append(resp.Payments, PaymentResponse{
			ID:        p.ID,
			Leg:       string(p.Leg),
			Amount:    p.Amount,
			Method:    string(p.Method),
			Reference: p.Reference,
			Notes:     p.Notes,
			PaidAt:    p.PaidAt,
		})
	}
	return resp
}

func toSupplyOrderResponses(list []SupplyOrder) []SupplyOrderResponse {
	out := make([]SupplyOrderResponse, 0, len(list))
	for _, so := range list {
		out = append(out, toSupplyOrderResponse(so))
	}
	return out
}
