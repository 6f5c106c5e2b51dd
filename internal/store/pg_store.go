package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/abgdnv/shopper/internal/domain"
	ordererrors "github.com/abgdnv/shopper/internal/errors"
	"github.com/abgdnv/shopper/internal/store/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE raised for a duplicate key.
const uniqueViolation = "23505"

// PgStore implements Store on top of a PostgreSQL connection pool.
type PgStore struct {
	pgQueries
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of Store using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		pgQueries: pgQueries{q: db.New(dbp)},
		db:        dbp,
	}
}

func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PgStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return p.withTransaction(ctx, func(qtx *db.Queries) error {
		return fn(&pgQueries{q: qtx, forUpdate: true})
	})
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(qtx *db.Queries) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrTransactionBegin, err)
	}
	qtx := p.q.WithTx(tx)

	err = fn(qtx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", ordererrors.ErrTransactionRollback, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrTransactionCommit, err)
	}

	return nil
}

// pgQueries implements Tx over either the pool or an open transaction.
type pgQueries struct {
	q *db.Queries
	// forUpdate makes GetOrderByID lock the row; only meaningful inside a transaction.
	forUpdate bool
}

func (p *pgQueries) ListProducts(ctx context.Context, offset, limit int32) ([]domain.Product, error) {
	rows, err := p.q.ListProducts(ctx, db.ListProductsParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ordererrors.ErrFailedToFindProducts, err)
	}
	products := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, toDomainProduct(r))
	}
	return products, nil
}

func (p *pgQueries) DecrementStock(ctx context.Context, name string, quantity int32) error {
	n, err := p.q.DecrementStock(ctx, db.DecrementStockParams{Name: name, Quantity: quantity})
	if err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrUpdateStock, err)
	}
	if n > 0 {
		return nil
	}
	exists, err := p.q.ProductExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrUpdateStock, err)
	}
	if !exists {
		return ordererrors.ErrProductNotFound
	}
	return ordererrors.ErrInsufficientStock
}

func (p *pgQueries) IncrementStock(ctx context.Context, name string, quantity int32) error {
	n, err := p.q.IncrementStock(ctx, db.IncrementStockParams{Name: name, Quantity: quantity})
	if err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrUpdateStock, err)
	}
	if n == 0 {
		return ordererrors.ErrProductNotFound
	}
	return nil
}

func (p *pgQueries) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	row, err := p.q.CreateOrder(ctx, db.CreateOrderParams{
		ID:           order.ID,
		CreatorID:    order.CreatorID,
		CreatorName:  order.CreatorName,
		ClientName:   order.ClientName,
		DeliveryDate: order.DeliveryDate,
		TotalPrice:   order.TotalPrice,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, ordererrors.ErrDuplicateOrder
		}
		return domain.Order{}, fmt.Errorf("%w: %w", ordererrors.ErrCreateOrder, err)
	}
	return toDomainOrder(row), nil
}

func (p *pgQueries) InsertLine(ctx context.Context, line domain.OrderLine) error {
	_, err := p.q.CreateOrderLine(ctx, db.CreateOrderLineParams{
		OrderID:     line.OrderID,
		ProductName: line.ProductName,
		Quantity:    line.Quantity,
		TotalPrice:  line.TotalPrice,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ordererrors.ErrDuplicateOrderLine
		}
		return fmt.Errorf("%w: %w", ordererrors.ErrCreateOrderLine, err)
	}
	return nil
}

func (p *pgQueries) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	find := p.q.FindOrderByID
	if p.forUpdate {
		find = p.q.FindOrderByIDForUpdate
	}
	row, err := find(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, ordererrors.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("%w: %w", ordererrors.ErrFailedToFindOrder, err)
	}
	return toDomainOrder(row), nil
}

func (p *pgQueries) GetLinesForOrder(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := p.q.FindOrderLinesByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ordererrors.ErrFailedToFindOrderLines, err)
	}
	lines := make([]domain.OrderLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, toDomainOrderLine(r))
	}
	return lines, nil
}

func (p *pgQueries) FindLine(ctx context.Context, orderID, productName string) (domain.OrderLine, error) {
	row, err := p.q.FindOrderLine(ctx, db.FindOrderLineParams{OrderID: orderID, ProductName: productName})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderLine{}, ordererrors.ErrOrderLineNotFound
		}
		return domain.OrderLine{}, fmt.Errorf("%w: %w", ordererrors.ErrFailedToFindOrderLines, err)
	}
	return toDomainOrderLine(row), nil
}

func (p *pgQueries) DeleteLine(ctx context.Context, orderID, productName string) error {
	n, err := p.q.DeleteOrderLine(ctx, db.DeleteOrderLineParams{OrderID: orderID, ProductName: productName})
	if err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrUpdateOrder, err)
	}
	if n == 0 {
		return ordererrors.ErrOrderLineNotFound
	}
	return nil
}

func (p *pgQueries) UpdateOrderTotal(ctx context.Context, orderID string, total int64) error {
	n, err := p.q.UpdateOrderTotal(ctx, db.UpdateOrderTotalParams{ID: orderID, TotalPrice: total})
	if err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrUpdateOrder, err)
	}
	if n == 0 {
		return ordererrors.ErrOrderNotFound
	}
	return nil
}

func (p *pgQueries) DeleteOrderIfEmpty(ctx context.Context, orderID string) (bool, error) {
	n, err := p.q.DeleteOrderIfEmpty(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ordererrors.ErrDeleteOrder, err)
	}
	return n > 0, nil
}

func (p *pgQueries) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := p.q.DeleteOrderLines(ctx, orderID); err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrDeleteOrder, err)
	}
	n, err := p.q.DeleteOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%w: %w", ordererrors.ErrDeleteOrder, err)
	}
	if n == 0 {
		return ordererrors.ErrOrderNotFound
	}
	return nil
}

func (p *pgQueries) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := p.q.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ordererrors.ErrFailedToFindOrders, err)
	}
	orders := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, toDomainOrder(r))
	}
	return orders, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func toDomainProduct(r db.Product) domain.Product {
	return domain.Product{
		ID:    r.ID.String(),
		Name:  r.Name,
		Price: r.Price,
		Stock: r.StockQuantity,
	}
}

func toDomainOrder(r db.Order) domain.Order {
	o := domain.Order{
		ID:           r.ID,
		CreatorID:    r.CreatorID,
		CreatorName:  r.CreatorName,
		ClientName:   r.ClientName,
		DeliveryDate: r.DeliveryDate,
		TotalPrice:   r.TotalPrice,
	}
	if r.CreatedAt != nil {
		o.CreatedAt = *r.CreatedAt
	}
	return o
}

func toDomainOrderLine(r db.OrderLine) domain.OrderLine {
	return domain.OrderLine{
		OrderID:     r.OrderID,
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		TotalPrice:  r.TotalPrice,
	}
}
