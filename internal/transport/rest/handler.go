// Package rest provides HTTP handlers for the catalog and order operations.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	ordererrors "github.com/abgdnv/shopper/internal/errors"
	"github.com/abgdnv/shopper/internal/service"
	"github.com/abgdnv/shopper/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const invalidRequestBody = "invalid request body"

// Pinger reports whether the backing store can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	service  service.OrderService
	pinger   Pinger
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler. Validation errors are keyed by JSON field names.
func NewHandler(service service.OrderService, pinger Pinger, logger *slog.Logger) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		service:  service,
		pinger:   pinger,
		validate: validate,
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the order service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.PlaceOrder)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetOrderDetails)
				r.Delete("/", h.DeleteOrder)
				r.Delete("/products/{productName}", h.RemoveLineFromOrder)
			})
		})
	})
	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadinessCheck)
}

// ListProducts returns a page of the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	limit, ok := web.ParseOptionalGte(r, w, mLogger, "limit", 0, 0)
	if !ok {
		return
	}
	offset, ok := web.ParseOptionalGte(r, w, mLogger, "offset", 0, 0)
	if !ok {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to list products", "limit", limit, "offset", offset)
	products, err := h.service.ListProducts(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{"products": products})
}

// PlaceOrder handles the creation of a new order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.PlaceOrderDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, invalidRequestBody)
		return
	}
	if !h.validateBody(w, r, mLogger, dto) {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to place order", "client", dto.ClientName, "lines", len(dto.Lines))
	msg, err := h.service.PlaceOrder(r.Context(), credential(r), dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusCreated, msg)
}

// ListOrders returns every order.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	orders, err := h.service.ListOrders(r.Context(), credential(r))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved order list", "count", len(orders))
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) GetOrderDetails(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	details, err := h.service.GetOrderDetails(r.Context(), credential(r), web.PathParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, details)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	msg, err := h.service.DeleteOrder(r.Context(), credential(r), web.PathParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, msg)
}

// RemoveLineFromOrder removes one product from an order.
func (h *Handler) RemoveLineFromOrder(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	msg, err := h.service.RemoveLineFromOrder(r.Context(), credential(r), web.PathParam(r, "id"), web.PathParam(r, "productName"))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, msg)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ReadinessCheck answers 503 while the store is unreachable.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		mLogger := h.loggerWithReqID(r)
		mLogger.WarnContext(r.Context(), "Store is not ready", "error", err)
		web.RespondError(w, mLogger, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// validateBody runs the struct rules and answers 400 with the failed rule per field.
func (h *Handler) validateBody(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, dto any) bool {
	err := h.validate.Struct(dto)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, invalidRequestBody)
		return false
	}
	errorResponse := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		// drop the struct name: "PlaceOrderDto.products[0].quantity" -> "products[0].quantity"
		field := fieldErr.Namespace()
		if _, rest, found := strings.Cut(field, "."); found {
			field = rest
		}
		errorResponse[field] = "failed on rule: " + fieldErr.Tag()
	}
	mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
	web.RespondValidationError(w, mLogger, invalidRequestBody, errorResponse)
	return false
}

// respondServiceError maps a service error to its status. Client errors are logged
// at warn level, everything else at error level with the internal cause.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error) {
	status, message := ordererrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		mLogger.ErrorContext(r.Context(), "Request failed", "error", err)
	} else {
		mLogger.WarnContext(r.Context(), "Request rejected", "status", status, "error", err)
	}
	web.RespondError(w, mLogger, status, message)
}

// credential returns the raw Authorization header. The service strips the scheme.
func credential(r *http.Request) string {
	return r.Header.Get("Authorization")
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
