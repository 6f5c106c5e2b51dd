package db

import (
	"context"
	"time"
)

const listProducts = `-- name: ListProducts :many
SELECT id, name, price, stock_quantity, created_at, updated_at
FROM products
ORDER BY name
LIMIT $1 OFFSET $2
`

type ListProductsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		var i Product
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Price,
			&i.StockQuantity,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const productExists = `-- name: ProductExists :one
SELECT EXISTS(SELECT 1 FROM products WHERE name = $1)
`

func (q *Queries) ProductExists(ctx context.Context, name string) (bool, error) {
	row := q.db.QueryRow(ctx, productExists, name)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const decrementStock = `-- name: DecrementStock :execrows
UPDATE products
SET stock_quantity = stock_quantity - $2,
    updated_at     = now()
WHERE name = $1
  AND stock_quantity >= $2
`

type DecrementStockParams struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

// DecrementStock only touches the row when enough stock is left, so concurrent
// reservations can never drive stock_quantity below zero.
func (q *Queries) DecrementStock(ctx context.Context, arg DecrementStockParams) (int64, error) {
	result, err := q.db.Exec(ctx, decrementStock, arg.Name, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const incrementStock = `-- name: IncrementStock :execrows
UPDATE products
SET stock_quantity = stock_quantity + $2,
    updated_at     = now()
WHERE name = $1
`

type IncrementStockParams struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

func (q *Queries) IncrementStock(ctx context.Context, arg IncrementStockParams) (int64, error) {
	result, err := q.db.Exec(ctx, incrementStock, arg.Name, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (id, creator_id, creator_name, client_name, delivery_date, total_price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, creator_id, creator_name, client_name, delivery_date, total_price, created_at
`

type CreateOrderParams struct {
	ID           string    `json:"id"`
	CreatorID    string    `json:"creator_id"`
	CreatorName  string    `json:"creator_name"`
	ClientName   string    `json:"client_name"`
	DeliveryDate time.Time `json:"delivery_date"`
	TotalPrice   int64     `json:"total_price"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.CreatorID,
		arg.CreatorName,
		arg.ClientName,
		arg.DeliveryDate,
		arg.TotalPrice,
	)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CreatorID,
		&i.CreatorName,
		&i.ClientName,
		&i.DeliveryDate,
		&i.TotalPrice,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderLine = `-- name: CreateOrderLine :one
INSERT INTO order_lines (order_id, product_name, quantity, total_price)
VALUES ($1, $2, $3, $4)
RETURNING order_id, product_name, quantity, total_price, created_at
`

type CreateOrderLineParams struct {
	OrderID     string `json:"order_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	TotalPrice  int64  `json:"total_price"`
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine,
		arg.OrderID,
		arg.ProductName,
		arg.Quantity,
		arg.TotalPrice,
	)
	var i OrderLine
	err := row.Scan(
		&i.OrderID,
		&i.ProductName,
		&i.Quantity,
		&i.TotalPrice,
		&i.CreatedAt,
	)
	return i, err
}

const findOrderByID = `-- name: FindOrderByID :one
SELECT id, creator_id, creator_name, client_name, delivery_date, total_price, created_at
FROM orders
WHERE id = $1
`

func (q *Queries) FindOrderByID(ctx context.Context, id string) (Order, error) {
	return q.scanOrder(ctx, findOrderByID, id)
}

const findOrderByIDForUpdate = `-- name: FindOrderByIDForUpdate :one
SELECT id, creator_id, creator_name, client_name, delivery_date, total_price, created_at
FROM orders
WHERE id = $1
FOR UPDATE
`

// FindOrderByIDForUpdate locks the order row until the surrounding transaction ends.
func (q *Queries) FindOrderByIDForUpdate(ctx context.Context, id string) (Order, error) {
	return q.scanOrder(ctx, findOrderByIDForUpdate, id)
}

func (q *Queries) scanOrder(ctx context.Context, query string, id string) (Order, error) {
	row := q.db.QueryRow(ctx, query, id)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CreatorID,
		&i.CreatorName,
		&i.ClientName,
		&i.DeliveryDate,
		&i.TotalPrice,
		&i.CreatedAt,
	)
	return i, err
}

const listOrders = `-- name: ListOrders :many
SELECT id, creator_id, creator_name, client_name, delivery_date, total_price, created_at
FROM orders
ORDER BY created_at DESC, id
`

func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		var i Order
		if err := rows.Scan(
			&i.ID,
			&i.CreatorID,
			&i.CreatorName,
			&i.ClientName,
			&i.DeliveryDate,
			&i.TotalPrice,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const findOrderLinesByOrderID = `-- name: FindOrderLinesByOrderID :many
SELECT order_id, product_name, quantity, total_price, created_at
FROM order_lines
WHERE order_id = $1
ORDER BY created_at, product_name
`

func (q *Queries) FindOrderLinesByOrderID(ctx context.Context, orderID string) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx, findOrderLinesByOrderID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderLine{}
	for rows.Next() {
		var i OrderLine
		if err := rows.Scan(
			&i.OrderID,
			&i.ProductName,
			&i.Quantity,
			&i.TotalPrice,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const findOrderLine = `-- name: FindOrderLine :one
SELECT order_id, product_name, quantity, total_price, created_at
FROM order_lines
WHERE order_id = $1
  AND product_name = $2
`

type FindOrderLineParams struct {
	OrderID     string `json:"order_id"`
	ProductName string `json:"product_name"`
}

func (q *Queries) FindOrderLine(ctx context.Context, arg FindOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, findOrderLine, arg.OrderID, arg.ProductName)
	var i OrderLine
	err := row.Scan(
		&i.OrderID,
		&i.ProductName,
		&i.Quantity,
		&i.TotalPrice,
		&i.CreatedAt,
	)
	return i, err
}

const deleteOrderLine = `-- name: DeleteOrderLine :execrows
DELETE
FROM order_lines
WHERE order_id = $1
  AND product_name = $2
`

type DeleteOrderLineParams struct {
	OrderID     string `json:"order_id"`
	ProductName string `json:"product_name"`
}

func (q *Queries) DeleteOrderLine(ctx context.Context, arg DeleteOrderLineParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderLine, arg.OrderID, arg.ProductName)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteOrderLines = `-- name: DeleteOrderLines :execrows
DELETE
FROM order_lines
WHERE order_id = $1
`

func (q *Queries) DeleteOrderLines(ctx context.Context, orderID string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderLines, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateOrderTotal = `-- name: UpdateOrderTotal :execrows
UPDATE orders
SET total_price = $2
WHERE id = $1
`

type UpdateOrderTotalParams struct {
	ID         string `json:"id"`
	TotalPrice int64  `json:"total_price"`
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateOrderTotal, arg.ID, arg.TotalPrice)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteOrderIfEmpty = `-- name: DeleteOrderIfEmpty :execrows
DELETE
FROM orders o
WHERE o.id = $1
  AND NOT EXISTS (SELECT 1 FROM order_lines l WHERE l.order_id = o.id)
`

func (q *Queries) DeleteOrderIfEmpty(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderIfEmpty, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteOrder = `-- name: DeleteOrder :execrows
DELETE
FROM orders
WHERE id = $1
`

func (q *Queries) DeleteOrder(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
