// Package service provides the order lifecycle: placing orders against the
// inventory and taking them apart again.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/abgdnv/shopper/internal/domain"
	ordererrors "github.com/abgdnv/shopper/internal/errors"
	"github.com/abgdnv/shopper/internal/store"
	"github.com/abgdnv/shopper/pkg/auth"
	"github.com/abgdnv/shopper/pkg/logger"
	"github.com/abgdnv/shopper/pkg/messaging"
	"github.com/abgdnv/shopper/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "order-service"

	defaultProductsLimit = 20
	defaultCatalogLimit  = 100
)

// OrderService defines the order and catalog operations exposed to the transport layer.
// Every mutating operation either applies all of its effects or none.
type OrderService interface {
	// ListProducts returns a page of the catalog. limit <= 0 means 20, offset < 0 means 0.
	ListProducts(ctx context.Context, limit, offset int32) ([]ProductDto, error)

	// PlaceOrder reserves stock for every line and records the order.
	PlaceOrder(ctx context.Context, credential string, order PlaceOrderDto) (MessageDto, error)

	// RemoveLineFromOrder drops one product from an order and puts its quantity back
	// in stock. The order is deleted together with its last line.
	RemoveLineFromOrder(ctx context.Context, credential, orderID, productName string) (MessageDto, error)

	// DeleteOrder restocks every line of an order and removes it.
	DeleteOrder(ctx context.Context, credential, orderID string) (MessageDto, error)

	// ListOrders returns every order, newest first. Returns NotFound when there is none.
	ListOrders(ctx context.Context, credential string) ([]OrderDto, error)

	// GetOrderDetails returns the lines of an order. Returns NotFound for an unknown order.
	GetOrderDetails(ctx context.Context, credential, orderID string) (OrderDetailsDto, error)
}

// Service implements OrderService.
type Service struct {
	store        store.Store
	verifier     auth.Verifier
	publisher    messaging.Publisher
	ids          IDGenerator
	now          func() time.Time
	loc          *time.Location
	catalogLimit int32

	tracer            trace.Tracer
	ordersPlaced      metric.Int64Counter
	orderLinesRemoved metric.Int64Counter
	ordersDeleted     metric.Int64Counter
	failedOperations  metric.Int64Counter
}

type Option func(*Service)

// WithPublisher sets where order events go. Events are dropped by default.
func WithPublisher(p messaging.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) { s.ids = ids }
}

// WithClock replaces time.Now, which decides what "today" is for delivery dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone of delivery dates. UTC by default.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithCatalogLimit bounds the catalog read used to check an order. 100 by default.
func WithCatalogLimit(limit int32) Option {
	return func(s *Service) {
		if limit > 0 {
			s.catalogLimit = limit
		}
	}
}

// NewService creates a new instance of OrderService.
func NewService(st store.Store, verifier auth.Verifier, opts ...Option) *Service {
	s := &Service{
		store:        st,
		verifier:     verifier,
		publisher:    messaging.NopPublisher{},
		ids:          UUIDGenerator{},
		now:          time.Now,
		loc:          time.UTC,
		catalogLimit: defaultCatalogLimit,
		tracer:       otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter(instrumentationName)
	s.ordersPlaced = mustCounter(meter, "orders_placed", "Total number of placed orders")
	s.orderLinesRemoved = mustCounter(meter, "order_lines_removed", "Total number of lines removed from orders")
	s.ordersDeleted = mustCounter(meter, "orders_deleted", "Total number of deleted orders")
	s.failedOperations = mustCounter(meter, "order_operations_failed", "Total number of failed order operations by error kind")
	return s
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return c
}

// ListProducts returns a page of products ordered by name.
func (s *Service) ListProducts(ctx context.Context, limit, offset int32) (_ []ProductDto, err error) {
	if limit <= 0 {
		limit = defaultProductsLimit
	}
	if offset < 0 {
		offset = 0
	}
	ctx, end := s.startSpan(ctx, "ListProducts", attribute.Int("limit", int(limit)), attribute.Int("offset", int(offset)))
	defer end(&err)

	products, err := s.store.ListProducts(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]ProductDto, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDto(p))
	}
	return dtos, nil
}

// PlaceOrder validates the request, checks it against one catalog snapshot and
// then, in the same transaction, reserves stock and stores the order with its lines.
func (s *Service) PlaceOrder(ctx context.Context, credential string, dto PlaceOrderDto) (_ MessageDto, err error) {
	ctx, end := s.startSpan(ctx, "PlaceOrder", attribute.Int("order.lines", len(dto.Lines)))
	defer end(&err)

	clientName := strings.TrimSpace(dto.ClientName)
	if clientName == "" {
		return MessageDto{}, ordererrors.InvalidRequest("client name is required")
	}
	if strings.TrimSpace(dto.DeliveryDate) == "" {
		return MessageDto{}, ordererrors.InvalidRequest("delivery date is required")
	}
	if len(dto.Lines) == 0 {
		return MessageDto{}, ordererrors.InvalidRequest("order must contain at least one product")
	}
	identity, err := s.authenticate(ctx, credential)
	if err != nil {
		return MessageDto{}, err
	}
	ctx = logger.AppendCtx(ctx, slog.String("user_id", identity.ID))

	deliveryDate, err := domain.ParseDeliveryDate(strings.TrimSpace(dto.DeliveryDate), s.loc)
	if err != nil {
		return MessageDto{}, ordererrors.InvalidRequest("delivery date must use the YYYY/MM/DD format")
	}
	if domain.IsBeforeDay(deliveryDate, s.now(), s.loc) {
		return MessageDto{}, ordererrors.InvalidRequest("delivery date already passed")
	}
	if err := validateLines(dto.Lines); err != nil {
		return MessageDto{}, err
	}

	order := domain.Order{
		CreatorID:    identity.ID,
		CreatorName:  identity.Name,
		ClientName:   clientName,
		DeliveryDate: deliveryDate,
	}
	lines := make([]domain.OrderLine, 0, len(dto.Lines))
	for _, l := range dto.Lines {
		lines = append(lines, domain.OrderLine{ProductName: l.Name, Quantity: l.Quantity, TotalPrice: l.TotalPrice})
	}
	order.TotalPrice = domain.TotalOf(lines)

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.checkCatalog(ctx, tx, lines); err != nil {
			return err
		}
		for _, l := range byProductName(lines) {
			if err := reserve(ctx, tx, l); err != nil {
				return err
			}
		}

		order.ID = s.ids.Generate()
		created, err := tx.InsertOrder(ctx, order)
		if err != nil {
			if errors.Is(err, ordererrors.ErrDuplicateOrder) {
				return ordererrors.Conflict("order %s already exists", order.ID)
			}
			return err
		}
		order = created
		for i := range lines {
			lines[i].OrderID = order.ID
			if err := tx.InsertLine(ctx, lines[i]); err != nil {
				if errors.Is(err, ordererrors.ErrDuplicateOrderLine) {
					return ordererrors.InvalidRequest("duplicate product %s in order", lines[i].ProductName)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return MessageDto{}, err
	}

	ctx = logger.AppendCtx(ctx, slog.String("order_id", order.ID))
	s.ordersPlaced.Add(ctx, 1)
	s.publish(ctx, events.OrderPlacedEvent{
		Carrier:      carrierOf(ctx),
		OrderID:      order.ID,
		CreatorID:    order.CreatorID,
		ClientName:   order.ClientName,
		DeliveryDate: order.DeliveryDate.Format(domain.DeliveryDateLayout),
		TotalPrice:   order.TotalPrice,
		Lines:        toEventLines(lines),
		PlacedAt:     s.now(),
	})
	slog.InfoContext(ctx, "Order placed", "total_price", order.TotalPrice, "lines", len(lines))

	return MessageDto{Message: fmt.Sprintf("order confirmed for %s, total %d, delivery %s",
		order.ClientName, order.TotalPrice, order.DeliveryDate.Format(domain.DeliveryDateLayout))}, nil
}

// checkCatalog verifies every line against a single catalog snapshot, in request order.
func (s *Service) checkCatalog(ctx context.Context, tx store.Tx, lines []domain.OrderLine) error {
	catalog, err := tx.ListProducts(ctx, 0, s.catalogLimit)
	if err != nil {
		return err
	}
	byName := make(map[string]domain.Product, len(catalog))
	for _, p := range catalog {
		byName[p.Name] = p
	}
	for _, l := range lines {
		p, ok := byName[l.ProductName]
		if !ok {
			return ordererrors.NotFound("%s does not exist in catalog", l.ProductName)
		}
		if l.Quantity > p.Stock {
			return ordererrors.InvalidRequest("insufficient stock for %s: requested %d, have %d", l.ProductName, l.Quantity, p.Stock)
		}
	}
	return nil
}

// reserve takes the line quantity out of stock. It fails when a concurrent
// order got the stock first.
func reserve(ctx context.Context, tx store.Tx, l domain.OrderLine) error {
	err := tx.DecrementStock(ctx, l.ProductName, l.Quantity)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ordererrors.ErrInsufficientStock):
		return ordererrors.InvalidRequest("insufficient stock for %s", l.ProductName)
	case errors.Is(err, ordererrors.ErrProductNotFound):
		return ordererrors.NotFound("%s does not exist in catalog", l.ProductName)
	default:
		return err
	}
}

// byProductName returns the lines sorted by product. Stock rows are always
// locked in this order so concurrent transactions cannot deadlock.
func byProductName(lines []domain.OrderLine) []domain.OrderLine {
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b domain.OrderLine) int {
		return strings.Compare(a.ProductName, b.ProductName)
	})
	return sorted
}

func validateLines(lines []OrderLineCreateDto) error {
	seen := make(map[string]bool, len(lines))
	var total int64
	for _, l := range lines {
		if strings.TrimSpace(l.Name) == "" {
			return ordererrors.InvalidRequest("product name is required")
		}
		if l.Quantity < 1 {
			return ordererrors.InvalidRequest("quantity of %s must be at least 1", l.Name)
		}
		if l.TotalPrice < 0 {
			return ordererrors.InvalidRequest("total price of %s cannot be negative", l.Name)
		}
		if seen[l.Name] {
			return ordererrors.InvalidRequest("duplicate product %s in order", l.Name)
		}
		seen[l.Name] = true
		if total > math.MaxInt64-l.TotalPrice {
			return ordererrors.InvalidRequest("order total is too large")
		}
		total += l.TotalPrice
	}
	return nil
}

// RemoveLineFromOrder deletes the line, lowers the order total, deletes the
// order when no line is left and restocks the removed quantity, all in one transaction.
func (s *Service) RemoveLineFromOrder(ctx context.Context, credential, orderID, productName string) (_ MessageDto, err error) {
	ctx, end := s.startSpan(ctx, "RemoveLineFromOrder", attribute.String("order.id", orderID), attribute.String("product.name", productName))
	defer end(&err)

	if isMissingID(orderID) {
		return MessageDto{}, ordererrors.InvalidRequest("order id is required")
	}
	if strings.TrimSpace(productName) == "" {
		return MessageDto{}, ordererrors.InvalidRequest("product name is required")
	}
	identity, err := s.authenticate(ctx, credential)
	if err != nil {
		return MessageDto{}, err
	}
	ctx = logger.AppendCtx(ctx, slog.String("user_id", identity.ID), slog.String("order_id", orderID))

	var removed domain.OrderLine
	var remaining int64
	var orderDeleted bool
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		order, err := getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		removed, err = tx.FindLine(ctx, orderID, productName)
		if err != nil {
			if errors.Is(err, ordererrors.ErrOrderLineNotFound) {
				return ordererrors.NotFound("no such product in this order")
			}
			return err
		}
		if err := tx.DeleteLine(ctx, orderID, productName); err != nil {
			return err
		}
		remaining = order.TotalPrice - removed.TotalPrice
		if err := tx.UpdateOrderTotal(ctx, orderID, remaining); err != nil {
			return err
		}
		if orderDeleted, err = tx.DeleteOrderIfEmpty(ctx, orderID); err != nil {
			return err
		}
		return tx.IncrementStock(ctx, removed.ProductName, removed.Quantity)
	})
	if err != nil {
		return MessageDto{}, err
	}

	s.orderLinesRemoved.Add(ctx, 1)
	if orderDeleted {
		s.ordersDeleted.Add(ctx, 1)
	}
	s.publish(ctx, events.OrderLineRemovedEvent{
		Carrier:        carrierOf(ctx),
		OrderID:        orderID,
		ProductName:    removed.ProductName,
		RestockedQty:   removed.Quantity,
		RemainingTotal: remaining,
		OrderDeleted:   orderDeleted,
		RemovedBy:      identity.ID,
		RemovedAt:      s.now(),
	})
	slog.InfoContext(ctx, "Product removed from order", "product", removed.ProductName, "order_deleted", orderDeleted)

	return MessageDto{Message: "product removed from order"}, nil
}

// DeleteOrder restocks every line, then removes the lines and the order header.
func (s *Service) DeleteOrder(ctx context.Context, credential, orderID string) (_ MessageDto, err error) {
	ctx, end := s.startSpan(ctx, "DeleteOrder", attribute.String("order.id", orderID))
	defer end(&err)

	if isMissingID(orderID) {
		return MessageDto{}, ordererrors.InvalidRequest("order id is required")
	}
	identity, err := s.authenticate(ctx, credential)
	if err != nil {
		return MessageDto{}, err
	}
	ctx = logger.AppendCtx(ctx, slog.String("user_id", identity.ID), slog.String("order_id", orderID))

	var lines []domain.OrderLine
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := getOrder(ctx, tx, orderID); err != nil {
			return err
		}
		var err error
		lines, err = tx.GetLinesForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, l := range byProductName(lines) {
			if err := tx.IncrementStock(ctx, l.ProductName, l.Quantity); err != nil {
				return err
			}
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return MessageDto{}, err
	}

	s.ordersDeleted.Add(ctx, 1)
	s.publish(ctx, events.OrderDeletedEvent{
		Carrier:   carrierOf(ctx),
		OrderID:   orderID,
		Restocked: toEventLines(lines),
		DeletedBy: identity.ID,
		DeletedAt: s.now(),
	})
	slog.InfoContext(ctx, "Order deleted", "restocked_lines", len(lines))

	return MessageDto{Message: "order deleted"}, nil
}

// ListOrders returns all orders. An empty store is reported as NotFound.
func (s *Service) ListOrders(ctx context.Context, credential string) (_ []OrderDto, err error) {
	ctx, end := s.startSpan(ctx, "ListOrders")
	defer end(&err)

	if _, err := s.authenticate(ctx, credential); err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ordererrors.NotFound("no orders found")
	}
	dtos := make([]OrderDto, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDto(o))
	}
	return dtos, nil
}

// GetOrderDetails returns the lines of a known order, possibly none.
func (s *Service) GetOrderDetails(ctx context.Context, credential, orderID string) (_ OrderDetailsDto, err error) {
	ctx, end := s.startSpan(ctx, "GetOrderDetails", attribute.String("order.id", orderID))
	defer end(&err)

	if isMissingID(orderID) {
		return OrderDetailsDto{}, ordererrors.InvalidRequest("order id is required")
	}
	if _, err := s.authenticate(ctx, credential); err != nil {
		return OrderDetailsDto{}, err
	}
	if _, err := getOrder(ctx, s.store, orderID); err != nil {
		return OrderDetailsDto{}, err
	}
	lines, err := s.store.GetLinesForOrder(ctx, orderID)
	if err != nil {
		return OrderDetailsDto{}, err
	}
	return OrderDetailsDto{OrderID: orderID, Items: toOrderLineDtos(lines)}, nil
}

// authenticate resolves the caller. A missing credential is Unauthenticated,
// one that does not verify is Forbidden.
func (s *Service) authenticate(ctx context.Context, credential string) (auth.Identity, error) {
	credential = auth.StripBearer(credential)
	if credential == "" {
		return auth.Identity{}, ordererrors.Unauthenticated("credential is required")
	}
	identity, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		slog.DebugContext(ctx, "Credential rejected", "error", err)
		return auth.Identity{}, ordererrors.Forbidden("invalid or expired credential")
	}
	return identity, nil
}

func getOrder(ctx context.Context, orders store.OrderStore, orderID string) (domain.Order, error) {
	order, err := orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ordererrors.ErrOrderNotFound) {
			return domain.Order{}, ordererrors.NotFound("order does not exist")
		}
		return domain.Order{}, err
	}
	return order, nil
}

// isMissingID treats unfilled route placeholders like ":id" as absent.
func isMissingID(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || id == ":id" || id == "{id}"
}

// publish sends an event after the transaction committed. A failure is logged
// and does not undo the operation.
func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event", "subject", event.Subject(), "error", err)
	}
}

func (s *Service) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "OrderService."+operation, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if err := *errp; err != nil {
			kind := ordererrors.KindOf(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
			s.failedOperations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", operation),
				attribute.String("kind", kind),
			))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func carrierOf(ctx context.Context) events.Carrier {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return events.Carrier(carrier)
}

func toEventLines(lines []domain.OrderLine) []events.OrderLine {
	out := make([]events.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, events.OrderLine{ProductName: l.ProductName, Quantity: l.Quantity, TotalPrice: l.TotalPrice})
	}
	return out
}
