package inventory

import "time"

// ItemResponse is the JSON shape of an inventory item.
type ItemResponse struct {
	ID           int64     `json:"id"`
	MarbleType   string    `json:"marbleType"`
	Size         string    `json:"size"`
	Quantity     int64     `json:"quantity"`
	PurchaseRate float64   `json:"purchaseRate"`
	SaleRate     float64   `json:"saleRate"`
	Supplier     string    `json:"supplier,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type createItemRequest struct {
	MarbleType   string  `json:"marbleType" validate:"required"`
	Size         string  `json:"size" validate:"required"`
	Quantity     int64   `json:"quantity" validate:"gte=0"`
	PurchaseRate float64 `json:"purchaseRate" validate:"gt=0"`
	SaleRate     float64 `json:"saleRate" validate:"gt=0,gtefield=PurchaseRate"`
	Supplier     string  `json:"supplier"`
}

type updateItemRequest struct {
	MarbleType   *string  `json:"marbleType" validate:"omitempty,min=1"`
	Size         *string  `json:"size" validate:"omitempty,min=1"`
	Quantity     *int64   `json:"quantity" validate:"omitempty,gte=0"`
	PurchaseRate *float64 `json:"purchaseRate" validate:"omitempty,gt=0"`
	SaleRate     *float64 `json:"saleRate" validate:"omitempty,gt=0"`
	Supplier     *string  `json:"supplier"`
}

func toItemResponse(it Item) ItemResponse {
	return ItemResponse{
		ID:           it.ID,
		MarbleType:   it.MarbleType,
		Size:         it.Size,
		Quantity:     it.Quantity,
		PurchaseRate: it.PurchaseRate,
		SaleRate:     it.SaleRate,
		Supplier:     it.Supplier,
		Status:       string(it.Status),
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
}

func toItemResponses(items []Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}
