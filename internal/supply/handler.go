package supply

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/marbledesk/marbledesk/internal/customers"
	"github.com/marbledesk/marbledesk/internal/orders"
	"github.com/marbledesk/marbledesk/internal/platform/httpx"
	"github.com/marbledesk/marbledesk/internal/shared"
)

// Handler serves the supply orders HTTP API.
type Handler struct {
	service  *Service
	idem     orders.ReplayGuard
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(service *Service, idem orders.ReplayGuard, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		idem:     idem,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers supply order routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}/status", h.updateStatus)
	r.Post("/{id}/factory-payments", h.addFactoryPayment)
	r.Post("/{id}/customer-payments", h.addCustomerPayment)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	customerID, _ := strconv.ParseInt(q.Get("customer_id"), 10, 64)

	filter := ListFilter{
		CustomerID: customerID,
		Status:     Status(q.Get("status")),
		Search:     q.Get("search"),
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}
	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list supply orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"supplyOrders": toSupplyOrderResponses(list),
		"pagination":   shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSupplyOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	in := CreateInput{
		CustomerID:      req.CustomerID,
		FactoryName:     req.FactoryName,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryDate:    req.DeliveryDate,
		Notes:           req.Notes,
		CreatedBy:       shared.ActorID(r.Context()),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, ItemInput{
			MarbleType:   it.MarbleType,
			Size:         it.Size,
			Quantity:     it.Quantity,
			PurchaseRate: it.PurchaseRate,
			SaleRate:     it.SaleRate,
		})
	}

	so, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSupplyOrderResponse(so))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	so, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplyOrderResponse(so))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req updateSupplyStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	so, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplyOrderResponse(so))
}

func (h *Handler) addFactoryPayment(w http.ResponseWriter, r *http.Request) {
	h.addPayment(w, r, h.service.AddFactoryPayment)
}

func (h *Handler) addCustomerPayment(w http.ResponseWriter, r *http.Request) {
	h.addPayment(w, r, h.service.AddCustomerPayment)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, orders.PaymentInput) (SupplyOrder, error)) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req supplyPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, "supply.payments"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate request", "a payment with this idempotency key was already submitted")
				return
			}
			h.logger.Error("idempotency check failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal error", "unexpected error")
			return
		}
	}

	so, err := apply(r.Context(), id, orders.PaymentInput{
		Amount:    req.Amount,
		Method:    orders.PaymentMethod(req.Method),
		Reference: req.Reference,
		Notes:     req.Notes,
	})
	if err != nil {
		// Release the key so the caller can fix the request and retry.
		if key != "" && h.idem != nil {
			if delErr := h.idem.Delete(r.Context(), key); delErr != nil {
				h.logger.Error("idempotency key release failed", slog.Any("error", delErr))
			}
		}
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplyOrderResponse(so))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "supply order not found")
	case errors.Is(err, customers.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "customer not found")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid state", err.Error())
	case errors.Is(err, ErrExceedsRemaining):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Payment rejected", err.Error())
	case errors.Is(err, customers.ErrInactive):
		httpx.Problem(w, http.StatusConflict, "Customer inactive", err.Error())
	default:
		h.logger.Error("supply order request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "unexpected error")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
