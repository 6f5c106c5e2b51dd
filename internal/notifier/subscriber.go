// Package notifier consumes order events from JetStream and records them in the audit log.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/abgdnv/shopper/pkg/config"
	"github.com/abgdnv/shopper/pkg/messaging"
	"github.com/abgdnv/shopper/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ackableMsg is the part of jetstream.Msg the handler needs.
type ackableMsg interface {
	Subject() string
	Headers() nats.Header
	Data() []byte
	Ack() error
	Nak() error
	Term() error
}

var errUnknownSubject = errors.New("unknown subject")

// Start creates the durable consumer and runs cfg.Workers fetch loops until ctx is done.
func Start(ctx context.Context, js jetstream.JetStream, cfg config.SubscriberConfig, logger *slog.Logger) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		FilterSubject: cfg.Subject,
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", cfg.Consumer, err)
	}
	g, gCtx := errgroup.WithContext(ctx)
	for range cfg.Workers {
		g.Go(func() error {
			return runWorker(gCtx, consumer, cfg, logger)
		})
	}
	return g.Wait()
}

func runWorker(ctx context.Context, consumer jetstream.Consumer, cfg config.SubscriberConfig, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		batch, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.Timeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			logger.ErrorContext(ctx, "Failed to fetch messages", "error", err)
			sleep(ctx, cfg.Interval)
			continue
		}
		for msg := range batch.Messages() {
			handleMessage(ctx, msg, logger)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			logger.WarnContext(ctx, "Fetch ended with an error", "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// handleMessage records one event. Payloads that cannot be decoded are
// terminated so they are not redelivered forever.
func handleMessage(ctx context.Context, msg ackableMsg, logger *slog.Logger) {
	if msg == nil {
		logger.ErrorContext(ctx, "Received nil message")
		return
	}
	if h := msg.Headers(); h != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(http.Header(h)))
	}
	ctx, span := otel.Tracer("order-notifier").Start(ctx, "notifier.handle "+msg.Subject(),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination.name", msg.Subject())))
	defer span.End()

	attrs, err := decode(msg.Subject(), msg.Data())
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "Failed to decode order event", "subject", msg.Subject(), "error", err)
		if err := msg.Term(); err != nil {
			logger.ErrorContext(ctx, "Failed to terminate message", "error", err)
		}
		return
	}

	logger.InfoContext(ctx, "Order event received", append([]any{slog.String("subject", msg.Subject())}, attrs...)...)
	if err := msg.Ack(); err != nil {
		logger.ErrorContext(ctx, "Failed to ack message", "error", err)
		if err := msg.Nak(); err != nil {
			logger.ErrorContext(ctx, "Failed to nack message", "error", err)
		}
	}
}

// decode parses the payload of a known order subject into log attributes.
func decode(subject string, data []byte) ([]any, error) {
	switch subject {
	case messaging.OrdersPlacedSubject:
		var e events.OrderPlacedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return []any{
			slog.String("order_id", e.OrderID),
			slog.String("user_id", e.CreatorID),
			slog.String("client_name", e.ClientName),
			slog.String("delivery_date", e.DeliveryDate),
			slog.Int64("total_price", e.TotalPrice),
			slog.Int("lines", len(e.Lines)),
		}, nil
	case messaging.OrdersLineRemovedSubject:
		var e events.OrderLineRemovedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return []any{
			slog.String("order_id", e.OrderID),
			slog.String("user_id", e.RemovedBy),
			slog.String("product", e.ProductName),
			slog.Int("restocked", int(e.RestockedQty)),
			slog.Bool("order_deleted", e.OrderDeleted),
		}, nil
	case messaging.OrdersDeletedSubject:
		var e events.OrderDeletedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return []any{
			slog.String("order_id", e.OrderID),
			slog.String("user_id", e.DeletedBy),
			slog.Int("restocked_lines", len(e.Restocked)),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownSubject, subject)
	}
}
