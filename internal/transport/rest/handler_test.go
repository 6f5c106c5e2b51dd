package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ordererrors "github.com/abgdnv/shopper/internal/errors"
	"github.com/abgdnv/shopper/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockOrderService returns the configured values and records what it was called with.
type mockOrderService struct {
	products []service.ProductDto
	orders   []service.OrderDto
	details  service.OrderDetailsDto
	message  service.MessageDto
	error    error

	credential    string
	orderID       string
	productName   string
	limit, offset int32
	placed        service.PlaceOrderDto
}

func (m *mockOrderService) ListProducts(_ context.Context, limit, offset int32) ([]service.ProductDto, error) {
	m.limit, m.offset = limit, offset
	return m.products, m.error
}

func (m *mockOrderService) PlaceOrder(_ context.Context, credential string, order service.PlaceOrderDto) (service.MessageDto, error) {
	m.credential, m.placed = credential, order
	return m.message, m.error
}

func (m *mockOrderService) RemoveLineFromOrder(_ context.Context, credential, orderID, productName string) (service.MessageDto, error) {
	m.credential, m.orderID, m.productName = credential, orderID, productName
	return m.message, m.error
}

func (m *mockOrderService) DeleteOrder(_ context.Context, credential, orderID string) (service.MessageDto, error) {
	m.credential, m.orderID = credential, orderID
	return m.message, m.error
}

func (m *mockOrderService) ListOrders(_ context.Context, credential string) ([]service.OrderDto, error) {
	m.credential = credential
	return m.orders, m.error
}

func (m *mockOrderService) GetOrderDetails(_ context.Context, credential, orderID string) (service.OrderDetailsDto, error) {
	m.credential, m.orderID = credential, orderID
	return m.details, m.error
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(svc service.OrderService, pinger Pinger) *chi.Mux {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if pinger == nil {
		pinger = pingerFunc(func(context.Context) error { return nil })
	}
	r := chi.NewRouter()
	NewHandler(svc, pinger, logger).RegisterRoutes(r)
	return r
}

// toJSON is a helper function to convert a struct to JSON string
func toJSON(t *testing.T, v any) string {
	t.Helper()
	bytes, err := json.Marshal(v)
	require.NoError(t, err)
	return string(bytes)
}

func serve(router http.Handler, method, target, body, authorization string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func Test_OrderAPI_ListProducts(t *testing.T) {
	products := []service.ProductDto{{ID: "p-1", Name: "Water", Price: 10, StockQuantity: 300}}

	testCases := []struct {
		name           string
		query          string
		mockService    mockOrderService
		expectedCode   int
		expectedBody   string
		expectedLimit  int32
		expectedOffset int32
	}{
		{
			name:         "Success - defaults",
			mockService:  mockOrderService{products: products},
			expectedCode: http.StatusOK,
			expectedBody: toJSON(t, map[string]any{"products": products}),
		},
		{
			name:           "Success - paging",
			query:          "?limit=5&offset=10",
			mockService:    mockOrderService{products: products},
			expectedCode:   http.StatusOK,
			expectedBody:   toJSON(t, map[string]any{"products": products}),
			expectedLimit:  5,
			expectedOffset: 10,
		},
		{
			name:         "Error - negative offset",
			query:        "?offset=-1",
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"invalid offset: -1"}`,
		},
		{
			name:         "Error - limit not a number",
			query:        "?limit=ten",
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"invalid limit: ten"}`,
		},
		{
			name:         "Error - store failure is not leaked",
			mockService:  mockOrderService{error: errors.New("connection refused")},
			expectedCode: http.StatusInternalServerError,
			expectedBody: toJSON(t, map[string]string{"message": ordererrors.InternalErrorMessage}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			router := newTestRouter(&tc.mockService, nil)

			// when
			rr := serve(router, http.MethodGet, "/api/v1/products"+tc.query, "", "")

			// then
			assert.Equal(t, tc.expectedCode, rr.Code, "status code should match")
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "response body should match")
			assert.Equal(t, tc.expectedLimit, tc.mockService.limit)
			assert.Equal(t, tc.expectedOffset, tc.mockService.offset)
		})
	}
}

func Test_OrderAPI_PlaceOrder(t *testing.T) {
	const validBody = `{"client_name":"Carlos","delivery_date":"2099/12/30","products":[{"name":"Water","quantity":5,"total_price":50}]}`
	confirmed := service.MessageDto{Message: "order confirmed for Carlos, total 50, delivery 2099/12/30"}

	testCases := []struct {
		name         string
		body         string
		mockService  mockOrderService
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Success - order placed",
			body:         validBody,
			mockService:  mockOrderService{message: confirmed},
			expectedCode: http.StatusCreated,
			expectedBody: toJSON(t, confirmed),
		},
		{
			name:         "Error - malformed body",
			body:         `{"client_name":`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"invalid request body"}`,
		},
		{
			name:         "Error - line rules",
			body:         `{"client_name":"Carlos","delivery_date":"2099/12/30","products":[{"name":"","quantity":0,"total_price":-1}]}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"invalid request body","validation_errors":{
				"products[0].name":"failed on rule: required",
				"products[0].quantity":"failed on rule: min",
				"products[0].total_price":"failed on rule: min"}}`,
		},
		{
			name:         "Error - past delivery date",
			body:         validBody,
			mockService:  mockOrderService{error: ordererrors.InvalidRequest("delivery date already passed")},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"delivery date already passed"}`,
		},
		{
			name:         "Error - unknown product",
			body:         validBody,
			mockService:  mockOrderService{error: ordererrors.NotFound("Milk does not exist in catalog")},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"message":"Milk does not exist in catalog"}`,
		},
		{
			name:         "Error - missing credential",
			body:         validBody,
			mockService:  mockOrderService{error: ordererrors.Unauthenticated("credential is required")},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"credential is required"}`,
		},
		{
			name:         "Error - bad credential",
			body:         validBody,
			mockService:  mockOrderService{error: ordererrors.Forbidden("invalid or expired credential")},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"invalid or expired credential"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			router := newTestRouter(&tc.mockService, nil)

			// when
			rr := serve(router, http.MethodPost, "/api/v1/orders", tc.body, "Bearer token-1")

			// then
			assert.Equal(t, tc.expectedCode, rr.Code, "status code should match")
			assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "response body should match")
		})
	}
}

func Test_OrderAPI_PlaceOrder_PassesRequestThrough(t *testing.T) {
	mock := &mockOrderService{}
	router := newTestRouter(mock, nil)

	rr := serve(router, http.MethodPost, "/api/v1/orders",
		`{"client_name":"Carlos","delivery_date":"2099/12/30","products":[{"name":"Water","quantity":5,"total_price":50}]}`,
		"Bearer token-1")

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Bearer token-1", mock.credential)
	assert.Equal(t, service.PlaceOrderDto{
		ClientName:   "Carlos",
		DeliveryDate: "2099/12/30",
		Lines:        []service.OrderLineCreateDto{{Name: "Water", Quantity: 5, TotalPrice: 50}},
	}, mock.placed)
}

func Test_OrderAPI_ListOrders(t *testing.T) {
	orders := []service.OrderDto{{
		ID: "o-1", CreatorID: "u-1", CreatorName: "Ana", ClientName: "Carlos",
		DeliveryDate: "2099/12/30", TotalPrice: 50, CreatedAt: "2026-10-15T10:00:00Z",
	}}

	testCases := []struct {
		name         string
		mockService  mockOrderService
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Success - orders found",
			mockService:  mockOrderService{orders: orders},
			expectedCode: http.StatusOK,
			expectedBody: toJSON(t, map[string]any{"orders": orders}),
		},
		{
			name:         "Error - no orders",
			mockService:  mockOrderService{error: ordererrors.NotFound("no orders found")},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"message":"no orders found"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&tc.mockService, nil)

			rr := serve(router, http.MethodGet, "/api/v1/orders", "", "token-1")

			assert.Equal(t, tc.expectedCode, rr.Code, "status code should match")
			assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "response body should match")
			assert.Equal(t, "token-1", tc.mockService.credential)
		})
	}
}

func Test_OrderAPI_GetOrderDetails(t *testing.T) {
	testCases := []struct {
		name         string
		mockService  mockOrderService
		expectedCode int
		expectedBody string
	}{
		{
			name: "Success - order with lines",
			mockService: mockOrderService{details: service.OrderDetailsDto{
				OrderID: "o-1",
				Items:   []service.OrderLineDto{{ProductName: "Water", Quantity: 5, TotalPrice: 50}},
			}},
			expectedCode: http.StatusOK,
			expectedBody: `{"order_id":"o-1","items":[{"product_name":"Water","quantity":5,"total_price":50}]}`,
		},
		{
			name:         "Success - order without lines",
			mockService:  mockOrderService{details: service.OrderDetailsDto{OrderID: "o-1", Items: []service.OrderLineDto{}}},
			expectedCode: http.StatusOK,
			expectedBody: `{"order_id":"o-1","items":[]}`,
		},
		{
			name:         "Error - unknown order",
			mockService:  mockOrderService{error: ordererrors.NotFound("order does not exist")},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"message":"order does not exist"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&tc.mockService, nil)

			rr := serve(router, http.MethodGet, "/api/v1/orders/o-1", "", "token-1")

			assert.Equal(t, tc.expectedCode, rr.Code, "status code should match")
			assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "response body should match")
			assert.Equal(t, "o-1", tc.mockService.orderID)
		})
	}
}

func Test_OrderAPI_DeleteOrder(t *testing.T) {
	mock := &mockOrderService{message: service.MessageDto{Message: "order deleted"}}
	router := newTestRouter(mock, nil)

	rr := serve(router, http.MethodDelete, "/api/v1/orders/o-1", "", "token-1")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"order deleted"}`, rr.Body.String())
	assert.Equal(t, "o-1", mock.orderID)
}

func Test_OrderAPI_RemoveLineFromOrder(t *testing.T) {
	testCases := []struct {
		name                string
		target              string
		mockService         mockOrderService
		expectedCode        int
		expectedBody        string
		expectedProductName string
	}{
		{
			name:                "Success - product removed",
			target:              "/api/v1/orders/o-1/products/Water",
			mockService:         mockOrderService{message: service.MessageDto{Message: "product removed from order"}},
			expectedCode:        http.StatusOK,
			expectedBody:        `{"message":"product removed from order"}`,
			expectedProductName: "Water",
		},
		{
			name:                "Success - escaped product name",
			target:              "/api/v1/orders/o-1/products/Sparkling%20Water",
			mockService:         mockOrderService{message: service.MessageDto{Message: "product removed from order"}},
			expectedCode:        http.StatusOK,
			expectedBody:        `{"message":"product removed from order"}`,
			expectedProductName: "Sparkling Water",
		},
		{
			name:                "Error - product not in order",
			target:              "/api/v1/orders/o-1/products/Bread",
			mockService:         mockOrderService{error: ordererrors.NotFound("no such product in this order")},
			expectedCode:        http.StatusNotFound,
			expectedBody:        `{"message":"no such product in this order"}`,
			expectedProductName: "Bread",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&tc.mockService, nil)

			rr := serve(router, http.MethodDelete, tc.target, "", "token-1")

			assert.Equal(t, tc.expectedCode, rr.Code, "status code should match")
			assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "response body should match")
			assert.Equal(t, "o-1", tc.mockService.orderID)
			assert.Equal(t, tc.expectedProductName, tc.mockService.productName)
		})
	}
}

func Test_OrderAPI_Probes(t *testing.T) {
	healthy := newTestRouter(&mockOrderService{}, nil)
	assert.Equal(t, http.StatusOK, serve(healthy, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(healthy, http.MethodGet, "/readyz", "", "").Code)

	down := newTestRouter(&mockOrderService{}, pingerFunc(func(context.Context) error { return errors.New("no connection") }))
	assert.Equal(t, http.StatusOK, serve(down, http.MethodGet, "/healthz", "", "").Code)
	rr := serve(down, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"message":"store unavailable"}`, rr.Body.String())
}
