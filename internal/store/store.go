// Package store provides the inventory and order storage used by the order service.
package store

import (
	"context"

	"github.com/abgdnv/shopper/internal/domain"
)

// InventoryStore reads the catalog and moves stock in and out of it.
type InventoryStore interface {
	// ListProducts returns a page of products ordered by name.
	ListProducts(ctx context.Context, offset, limit int32) ([]domain.Product, error)

	// DecrementStock takes quantity units of the named product.
	// Returns ErrProductNotFound for an unknown product and ErrInsufficientStock
	// when less than quantity is available. Stock is left untouched on error.
	DecrementStock(ctx context.Context, name string, quantity int32) error

	// IncrementStock puts quantity units of the named product back.
	// Returns ErrProductNotFound for an unknown product.
	IncrementStock(ctx context.Context, name string, quantity int32) error
}

// OrderStore persists order headers and their lines.
type OrderStore interface {
	// InsertOrder stores a new order header.
	// Returns ErrDuplicateOrder if the id is already taken.
	InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	// InsertLine stores a line of an existing order.
	// Returns ErrDuplicateOrderLine if the order already has a line for the product.
	InsertLine(ctx context.Context, line domain.OrderLine) error

	// GetOrderByID returns ErrOrderNotFound if no order has the given id.
	// Inside a transaction the order stays locked until the transaction ends.
	GetOrderByID(ctx context.Context, id string) (domain.Order, error)

	// GetLinesForOrder returns the lines of an order, possibly none.
	GetLinesForOrder(ctx context.Context, orderID string) ([]domain.OrderLine, error)

	// FindLine returns ErrOrderLineNotFound if the order has no line for the product.
	FindLine(ctx context.Context, orderID, productName string) (domain.OrderLine, error)

	DeleteLine(ctx context.Context, orderID, productName string) error
	UpdateOrderTotal(ctx context.Context, orderID string, total int64) error

	// DeleteOrderIfEmpty removes the order header when no line refers to it.
	// It reports whether the order was removed.
	DeleteOrderIfEmpty(ctx context.Context, orderID string) (bool, error)

	// DeleteOrder removes the order header together with all of its lines.
	DeleteOrder(ctx context.Context, orderID string) error

	// ListOrders returns every order, newest first.
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	InventoryStore
	OrderStore
}

// Store is implemented by PgStore and MemStore.
// Calls made on the Store itself run outside of any transaction.
type Store interface {
	Tx

	// WithTx runs fn in a single transaction. The transaction is committed when
	// fn returns nil and rolled back otherwise; fn's error is returned as is.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping checks that the underlying storage is reachable.
	Ping(ctx context.Context) error
}
