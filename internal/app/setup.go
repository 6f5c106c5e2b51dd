// Package app contains the application setup for the order service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/shopper/internal/config"
	"github.com/abgdnv/shopper/internal/domain"
	"github.com/abgdnv/shopper/internal/service"
	"github.com/abgdnv/shopper/internal/store"
	"github.com/abgdnv/shopper/internal/transport/rest"
	"github.com/abgdnv/shopper/pkg/auth"
	"github.com/abgdnv/shopper/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/shopper/pkg/config"
	"github.com/abgdnv/shopper/pkg/messaging"
	natsclient "github.com/abgdnv/shopper/pkg/nats"
	"github.com/abgdnv/shopper/pkg/server"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const ServiceName = "order-service"

type Dependencies struct {
	OrderService service.OrderService
	Store        store.Store
	Gatherer     prometheus.Gatherer
	Logger       *slog.Logger
}

// SetupDependencies builds the order service on top of an already opened store.
func SetupDependencies(st store.Store, verifier auth.Verifier, publisher messaging.Publisher, gatherer prometheus.Gatherer, cfg *config.Config, logger *slog.Logger) *Dependencies {
	oService := service.NewService(st, verifier,
		service.WithPublisher(publisher),
		service.WithLocation(cfg.Orders.Location()),
		service.WithCatalogLimit(cfg.Orders.CatalogLimit),
	)
	return &Dependencies{
		OrderService: oService,
		Store:        st,
		Gatherer:     gatherer,
		Logger:       logger,
	}
}

// NewStore opens the store selected by the database driver. The returned
// function releases it.
func NewStore(ctx context.Context, cfg pkgconfig.DatabaseConfig, seed pkgconfig.SeedConfig, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.Driver == pkgconfig.DriverMemory {
		products := make([]domain.Product, 0, len(seed.Products))
		for _, p := range seed.Products {
			products = append(products, domain.Product{Name: p.Name, Price: p.Price, Stock: p.Stock})
		}
		logger.Info("Using in-memory store", slog.Int("products", len(products)))
		return store.NewMemStore(products...), func() {}, nil
	}

	if cfg.Migrate {
		if err := store.Migrate(cfg.URL); err != nil {
			return nil, nil, err
		}
		logger.Info("Database migrations applied")
	}
	dbPool, err := bootstrap.NewDbPool(ctx, cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	logger.Info("Successfully connected to the database!")
	return store.NewPgStore(dbPool), dbPool.Close, nil
}

// NewPublisher connects to NATS and makes sure the order stream exists.
// Events are dropped when NATS is disabled.
func NewPublisher(ctx context.Context, cfg pkgconfig.NATSConfig, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.Enabled {
		logger.Info("NATS is disabled, order events will not be published")
		return messaging.NopPublisher{}, func() {}, nil
	}
	nc, err := natsclient.NewClient(cfg.Url, cfg.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	if err := natsclient.EnsureStream(ctx, js, cfg.Stream, messaging.OrdersSubjects); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Connected to NATS", slog.String("url", cfg.Url), slog.String("stream", cfg.Stream))
	return natsclient.NewNatsPublisher(js), func() { _ = nc.Drain() }, nil
}

// SetupHttpHandler builds the router with every route and the tracing middleware.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, ServiceName)
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	orderHandler := rest.NewHandler(deps.OrderService, deps.Store, deps.Logger)
	orderHandler.RegisterRoutes(mux)
	if deps.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
}

// SetupHttpServer creates and configures an HTTP server for the order service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(server.HTTPConfigFrom(cfg.HTTPServer), SetupHttpHandler(deps))
}
