package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abgdnv/shopper/internal/domain"
	ordererrors "github.com/abgdnv/shopper/internal/errors"
	"github.com/google/uuid"
)

// MemStore implements Store using in-memory maps.
// A transaction holds the store lock for its whole duration and restores the
// previous state when it fails.
type MemStore struct {
	mu sync.Mutex
	st *memState
}

type memState struct {
	products map[string]domain.Product // by name
	orders   map[string]domain.Order
	lines    map[string][]domain.OrderLine // by order id, insertion order
	now      func() time.Time
}

// NewMemStore creates a new instance of Store holding the given products.
// Products without an id get a random one.
func NewMemStore(products ...domain.Product) *MemStore {
	st := &memState{
		products: make(map[string]domain.Product, len(products)),
		orders:   make(map[string]domain.Order),
		lines:    make(map[string][]domain.OrderLine),
		now:      time.Now,
	}
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		st.products[p.Name] = p
	}
	return &MemStore{st: st}
}

// Product returns the named product as currently stored.
func (s *MemStore) Product(name string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[name]
	return p, ok
}

func (s *MemStore) Ping(context.Context) error {
	return nil
}

func (s *MemStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.st); err != nil {
		s.st = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *MemStore) ListProducts(ctx context.Context, offset, limit int32) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListProducts(ctx, offset, limit)
}

func (s *MemStore) DecrementStock(ctx context.Context, name string, quantity int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DecrementStock(ctx, name, quantity)
}

func (s *MemStore) IncrementStock(ctx context.Context, name string, quantity int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.IncrementStock(ctx, name, quantity)
}

func (s *MemStore) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertOrder(ctx, order)
}

func (s *MemStore) InsertLine(ctx context.Context, line domain.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertLine(ctx, line)
}

func (s *MemStore) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetOrderByID(ctx, id)
}

func (s *MemStore) GetLinesForOrder(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetLinesForOrder(ctx, orderID)
}

func (s *MemStore) FindLine(ctx context.Context, orderID, productName string) (domain.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.FindLine(ctx, orderID, productName)
}

func (s *MemStore) DeleteLine(ctx context.Context, orderID, productName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteLine(ctx, orderID, productName)
}

func (s *MemStore) UpdateOrderTotal(ctx context.Context, orderID string, total int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateOrderTotal(ctx, orderID, total)
}

func (s *MemStore) DeleteOrderIfEmpty(ctx context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteOrderIfEmpty(ctx, orderID)
}

func (s *MemStore) DeleteOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteOrder(ctx, orderID)
}

func (s *MemStore) ListOrders(ctx context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListOrders(ctx)
}

func (m *memState) clone() *memState {
	c := &memState{
		products: make(map[string]domain.Product, len(m.products)),
		orders:   make(map[string]domain.Order, len(m.orders)),
		lines:    make(map[string][]domain.OrderLine, len(m.lines)),
		now:      m.now,
	}
	for k, v := range m.products {
		c.products[k] = v
	}
	for k, v := range m.orders {
		c.orders[k] = v
	}
	for k, v := range m.lines {
		c.lines[k] = append([]domain.OrderLine(nil), v...)
	}
	return c
}

func (m *memState) ListProducts(_ context.Context, offset, limit int32) ([]domain.Product, error) {
	list := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	if offset < 0 {
		offset = 0
	}
	if int(offset) >= len(list) {
		return []domain.Product{}, nil
	}
	list = list[offset:]
	if limit >= 0 && int(limit) < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (m *memState) DecrementStock(_ context.Context, name string, quantity int32) error {
	p, ok := m.products[name]
	if !ok {
		return ordererrors.ErrProductNotFound
	}
	if p.Stock < quantity {
		return ordererrors.ErrInsufficientStock
	}
	p.Stock -= quantity
	m.products[name] = p
	return nil
}

func (m *memState) IncrementStock(_ context.Context, name string, quantity int32) error {
	p, ok := m.products[name]
	if !ok {
		return ordererrors.ErrProductNotFound
	}
	p.Stock += quantity
	m.products[name] = p
	return nil
}

func (m *memState) InsertOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	if _, exists := m.orders[order.ID]; exists {
		return domain.Order{}, ordererrors.ErrDuplicateOrder
	}
	order.CreatedAt = m.now()
	m.orders[order.ID] = order
	return order, nil
}

func (m *memState) InsertLine(_ context.Context, line domain.OrderLine) error {
	if _, exists := m.orders[line.OrderID]; !exists {
		return ordererrors.ErrCreateOrderLine
	}
	for _, l := range m.lines[line.OrderID] {
		if l.ProductName == line.ProductName {
			return ordererrors.ErrDuplicateOrderLine
		}
	}
	m.lines[line.OrderID] = append(m.lines[line.OrderID], line)
	return nil
}

func (m *memState) GetOrderByID(_ context.Context, id string) (domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, ordererrors.ErrOrderNotFound
	}
	return o, nil
}

func (m *memState) GetLinesForOrder(_ context.Context, orderID string) ([]domain.OrderLine, error) {
	return append([]domain.OrderLine{}, m.lines[orderID]...), nil
}

func (m *memState) FindLine(_ context.Context, orderID, productName string) (domain.OrderLine, error) {
	for _, l := range m.lines[orderID] {
		if l.ProductName == productName {
			return l, nil
		}
	}
	return domain.OrderLine{}, ordererrors.ErrOrderLineNotFound
}

func (m *memState) DeleteLine(_ context.Context, orderID, productName string) error {
	lines := m.lines[orderID]
	for i, l := range lines {
		if l.ProductName == productName {
			rest := append(lines[:i:i], lines[i+1:]...)
			if len(rest) == 0 {
				delete(m.lines, orderID)
			} else {
				m.lines[orderID] = rest
			}
			return nil
		}
	}
	return ordererrors.ErrOrderLineNotFound
}

func (m *memState) UpdateOrderTotal(_ context.Context, orderID string, total int64) error {
	o, ok := m.orders[orderID]
	if !ok {
		return ordererrors.ErrOrderNotFound
	}
	o.TotalPrice = total
	m.orders[orderID] = o
	return nil
}

func (m *memState) DeleteOrderIfEmpty(_ context.Context, orderID string) (bool, error) {
	if _, ok := m.orders[orderID]; !ok || len(m.lines[orderID]) > 0 {
		return false, nil
	}
	delete(m.orders, orderID)
	return true, nil
}

func (m *memState) DeleteOrder(_ context.Context, orderID string) error {
	if _, ok := m.orders[orderID]; !ok {
		return ordererrors.ErrOrderNotFound
	}
	delete(m.lines, orderID)
	delete(m.orders, orderID)
	return nil
}

func (m *memState) ListOrders(_ context.Context) ([]domain.Order, error) {
	list := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}
