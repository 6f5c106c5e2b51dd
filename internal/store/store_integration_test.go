package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/shopper/internal/domain"
	ordererrors "github.com/abgdnv/shopper/internal/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "ORDER_SVC_SKIP_INTEGRATION_TESTS"

// PgStoreSuite runs the Store contract against a real PostgreSQL.
type PgStoreSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	store       *PgStore
	logger      *slog.Logger
	ctx         context.Context
}

func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("orders"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	require.NoError(s.T(), Migrate(connStr), "Failed to apply migrations")
	s.logger.Info("Migrations applied")

	s.store = NewPgStore(s.dbPool)
}

func (s *PgStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

// SetupTest empties the tables and stocks the catalog again.
func (s *PgStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE order_lines, orders, products CASCADE")
	require.NoError(s.T(), err, "Failed to truncate tables")
	_, err = s.dbPool.Exec(s.ctx, `INSERT INTO products (name, price, stock_quantity)
VALUES ('Water', 10, 300), ('Bread', 25, 4), ('Apple', 3, 0)`)
	require.NoError(s.T(), err, "Failed to seed products")
}

func TestPgStoreIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PgStoreSuite))
}

func (s *PgStoreSuite) stockOf(name string) int32 {
	s.T().Helper()
	var stock int32
	err := s.dbPool.QueryRow(s.ctx, "SELECT stock_quantity FROM products WHERE name = $1", name).Scan(&stock)
	require.NoError(s.T(), err)
	return stock
}

func (s *PgStoreSuite) createTestOrder(id string, lines ...domain.OrderLine) domain.Order {
	s.T().Helper()
	var created domain.Order
	err := s.store.WithTx(s.ctx, func(tx Tx) error {
		var err error
		created, err = tx.InsertOrder(s.ctx, domain.Order{
			ID:           id,
			CreatorID:    "u-1",
			CreatorName:  "ana",
			ClientName:   "Carlos",
			DeliveryDate: time.Date(2099, time.December, 30, 0, 0, 0, 0, time.UTC),
			TotalPrice:   domain.TotalOf(lines),
		})
		if err != nil {
			return err
		}
		for _, l := range lines {
			l.OrderID = id
			if err := tx.InsertLine(s.ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(s.T(), err, "createTestOrder helper failed to create order")
	return created
}

func (s *PgStoreSuite) TestListProducts() {
	products, err := s.store.ListProducts(s.ctx, 0, 2)

	require.NoError(s.T(), err)
	require.Len(s.T(), products, 2)
	assert.Equal(s.T(), "Apple", products[0].Name)
	assert.Equal(s.T(), "Bread", products[1].Name)
	assert.NotEmpty(s.T(), products[0].ID)

	products, err = s.store.ListProducts(s.ctx, 2, 2)
	require.NoError(s.T(), err)
	require.Len(s.T(), products, 1)
	assert.Equal(s.T(), int32(300), products[0].Stock)
}

func (s *PgStoreSuite) TestDecrementStock() {
	testCases := []struct {
		name          string
		product       string
		quantity      int32
		expectedErr   error
		expectedStock int32
	}{
		{"enough stock", "Bread", 3, nil, 1},
		{"not enough stock", "Bread", 5, ordererrors.ErrInsufficientStock, 4},
		{"unknown product", "Milk", 1, ordererrors.ErrProductNotFound, 0},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.SetupTest()

			err := s.store.DecrementStock(s.ctx, tc.product, tc.quantity)

			if tc.expectedErr != nil {
				require.ErrorIs(s.T(), err, tc.expectedErr)
			} else {
				require.NoError(s.T(), err)
			}
			if tc.product != "Milk" {
				assert.Equal(s.T(), tc.expectedStock, s.stockOf(tc.product))
			}
		})
	}
}

func (s *PgStoreSuite) TestDecrementStock_ConcurrentNeverNegative() {
	// given Bread has 4 units and 10 callers want 1 each
	const callers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	// when
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.WithTx(s.ctx, func(tx Tx) error {
				return tx.DecrementStock(s.ctx, "Bread", 1)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// then
	assert.Equal(s.T(), 4, succeeded)
	assert.Equal(s.T(), int32(0), s.stockOf("Bread"))
}

func (s *PgStoreSuite) TestWithTx_RollsBack() {
	boom := errors.New("boom")

	err := s.store.WithTx(s.ctx, func(tx Tx) error {
		require.NoError(s.T(), tx.DecrementStock(s.ctx, "Water", 5))
		_, err := tx.InsertOrder(s.ctx, domain.Order{ID: "o-1", ClientName: "Carlos", DeliveryDate: time.Now()})
		require.NoError(s.T(), err)
		return boom
	})

	require.ErrorIs(s.T(), err, boom)
	assert.Equal(s.T(), int32(300), s.stockOf("Water"))
	_, err = s.store.GetOrderByID(s.ctx, "o-1")
	assert.ErrorIs(s.T(), err, ordererrors.ErrOrderNotFound)
}

func (s *PgStoreSuite) TestInsertAndFind() {
	created := s.createTestOrder("o-1",
		domain.OrderLine{ProductName: "Water", Quantity: 5, TotalPrice: 50},
		domain.OrderLine{ProductName: "Bread", Quantity: 1, TotalPrice: 25},
	)
	assert.False(s.T(), created.CreatedAt.IsZero())

	order, err := s.store.GetOrderByID(s.ctx, "o-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(75), order.TotalPrice)
	assert.Equal(s.T(), "2099/12/30", order.DeliveryDate.Format(domain.DeliveryDateLayout))

	lines, err := s.store.GetLinesForOrder(s.ctx, "o-1")
	require.NoError(s.T(), err)
	assert.Len(s.T(), lines, 2)

	line, err := s.store.FindLine(s.ctx, "o-1", "Bread")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int32(1), line.Quantity)

	_, err = s.store.FindLine(s.ctx, "o-1", "Apple")
	assert.ErrorIs(s.T(), err, ordererrors.ErrOrderLineNotFound)
	_, err = s.store.GetOrderByID(s.ctx, "missing")
	assert.ErrorIs(s.T(), err, ordererrors.ErrOrderNotFound)
}

func (s *PgStoreSuite) TestInsert_Duplicates() {
	s.createTestOrder("o-1", domain.OrderLine{ProductName: "Water", Quantity: 5, TotalPrice: 50})

	_, err := s.store.InsertOrder(s.ctx, domain.Order{ID: "o-1", ClientName: "Ana", DeliveryDate: time.Now()})
	assert.ErrorIs(s.T(), err, ordererrors.ErrDuplicateOrder)

	err = s.store.InsertLine(s.ctx, domain.OrderLine{OrderID: "o-1", ProductName: "Water", Quantity: 1, TotalPrice: 10})
	assert.ErrorIs(s.T(), err, ordererrors.ErrDuplicateOrderLine)
}

func (s *PgStoreSuite) TestDeleteLineAndEmptyOrder() {
	s.createTestOrder("o-1",
		domain.OrderLine{ProductName: "Water", Quantity: 5, TotalPrice: 50},
		domain.OrderLine{ProductName: "Bread", Quantity: 1, TotalPrice: 25},
	)

	err := s.store.WithTx(s.ctx, func(tx Tx) error {
		if err := tx.DeleteLine(s.ctx, "o-1", "Bread"); err != nil {
			return err
		}
		if err := tx.UpdateOrderTotal(s.ctx, "o-1", 50); err != nil {
			return err
		}
		deleted, err := tx.DeleteOrderIfEmpty(s.ctx, "o-1")
		assert.False(s.T(), deleted)
		return err
	})
	require.NoError(s.T(), err)

	order, err := s.store.GetOrderByID(s.ctx, "o-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(50), order.TotalPrice)

	require.NoError(s.T(), s.store.DeleteLine(s.ctx, "o-1", "Water"))
	deleted, err := s.store.DeleteOrderIfEmpty(s.ctx, "o-1")
	require.NoError(s.T(), err)
	assert.True(s.T(), deleted)

	assert.ErrorIs(s.T(), s.store.DeleteLine(s.ctx, "o-1", "Water"), ordererrors.ErrOrderLineNotFound)
}

func (s *PgStoreSuite) TestDeleteOrderAndList() {
	s.createTestOrder("o-1", domain.OrderLine{ProductName: "Water", Quantity: 5, TotalPrice: 50})
	s.createTestOrder("o-2", domain.OrderLine{ProductName: "Bread", Quantity: 1, TotalPrice: 25})

	orders, err := s.store.ListOrders(s.ctx)
	require.NoError(s.T(), err)
	assert.Len(s.T(), orders, 2)

	require.NoError(s.T(), s.store.DeleteOrder(s.ctx, "o-1"))
	lines, err := s.store.GetLinesForOrder(s.ctx, "o-1")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), lines)
	assert.ErrorIs(s.T(), s.store.DeleteOrder(s.ctx, "o-1"), ordererrors.ErrOrderNotFound)

	orders, err = s.store.ListOrders(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), orders, 1)
	assert.Equal(s.T(), "o-2", orders[0].ID)
}

func (s *PgStoreSuite) TestIncrementStock() {
	require.NoError(s.T(), s.store.IncrementStock(s.ctx, "Apple", 7))
	assert.Equal(s.T(), int32(7), s.stockOf("Apple"))
	assert.ErrorIs(s.T(), s.store.IncrementStock(s.ctx, "Milk", 1), ordererrors.ErrProductNotFound)
}

func (s *PgStoreSuite) TestPing() {
	assert.NoError(s.T(), s.store.Ping(s.ctx))
}
