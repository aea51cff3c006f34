package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ihuzaapp/shopperd/internal/dispatch"
	"github.com/ihuzaapp/shopperd/internal/orders"
	"github.com/ihuzaapp/shopperd/internal/realtime"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
	"github.com/ihuzaapp/shopperd/pkg/logger"
	"github.com/ihuzaapp/shopperd/pkg/metrics"
)

type publisher interface {
	Publish(shopperID string, event realtime.Event)
}

type sender interface {
	Send(ctx context.Context, shopperID string, note dispatch.Notification) error
}

// Bridge normalizes provider push messages into order book updates, realtime
// events, and notifications. Pushed orders bypass the poll loop's gates and
// claim ledger entirely; dedup against polled orders happens in the book.
type Bridge struct {
	transport  Transport
	dispatcher sender
	book       *orders.Book
	hub        publisher
	now        func() time.Time
	log        *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewBridge wires the bridge. A nil now falls back to the system clock.
func NewBridge(transport Transport, dispatcher sender, book *orders.Book, hub publisher, now func() time.Time) *Bridge {
	if now == nil {
		now = time.Now
	}
	return &Bridge{
		transport:  transport,
		dispatcher: dispatcher,
		book:       book,
		hub:        hub,
		now:        now,
		log:        logger.WithModule("push"),
	}
}

// Start subscribes the bridge to its transport. Safe to call repeatedly; only
// the first call binds a subscription.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}
	if err := b.transport.Start(ctx, b.Handle); err != nil {
		return apperrors.Wrap(err, "starting push transport")
	}
	b.started = true
	b.log.Info("push bridge active")
	return nil
}

// Stop tears the subscription down. The bridge degrades to inactive; inbound
// messages are refused by the transport until the next Start.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return
	}
	b.transport.Stop()
	b.started = false
	b.log.Info("push bridge stopped")
}

// Handle normalizes one push message. Unknown types are rejected so the
// provider notices a contract drift instead of silently losing messages.
func (b *Bridge) Handle(ctx context.Context, shopperID string, msg Message) error {
	metrics.PushMessages.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case TypeNewOrder:
		return b.handleNewOrder(ctx, shopperID, msg.Data)
	case TypeBatchOrders:
		return b.handleBatch(ctx, shopperID, msg.Data)
	case TypeOrderExpired:
		return b.handleExpired(ctx, shopperID, msg.Data)
	case TypeChatMessage:
		return b.handleChat(ctx, shopperID, msg.Data)
	case TypeTest:
		return b.handleTest(ctx, shopperID)
	default:
		return apperrors.NewBadRequest(fmt.Sprintf("unsupported push type %q", msg.Type))
	}
}

func (b *Bridge) handleNewOrder(ctx context.Context, shopperID string, data []byte) error {
	payload, err := decodeOrder(data)
	if err != nil {
		return err
	}
	order := payload.Order

	b.book.Upsert(order)
	b.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamOrders,
		Type:   "order_added",
		Data:   order,
		Meta:   payload.eventMeta(),
	})

	note := dispatch.FromOrder(order, b.now())
	if err := b.dispatcher.Send(ctx, shopperID, note); err != nil {
		b.log.Debug("pushed order partially delivered",
			zap.String("order_id", order.ID), zap.Error(err))
	}
	return nil
}

func (b *Bridge) handleBatch(ctx context.Context, shopperID string, data []byte) error {
	batch, err := decodeOrderBatch(data)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	var total float64
	for _, order := range batch {
		b.book.Upsert(order)
		total += order.EstimatedEarnings
	}
	b.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamOrders,
		Type:   "batch_added",
		Data:   batch,
	})

	note := dispatch.Notification{
		Type:       dispatch.TypeBatchOrders,
		Title:      fmt.Sprintf("%d new orders available", len(batch)),
		Body:       fmt.Sprintf("Combined earnings $%.2f", total),
		OrderID:    batch[0].ID,
		IsCombined: true,
		Earnings:   total,
		At:         b.now(),
	}
	if err := b.dispatcher.Send(ctx, shopperID, note); err != nil {
		b.log.Debug("batch notification partially delivered", zap.Error(err))
	}
	return nil
}

func (b *Bridge) handleExpired(ctx context.Context, shopperID string, data []byte) error {
	payload, err := decodeExpired(data)
	if err != nil {
		return err
	}

	b.book.Remove(payload.OrderID)
	b.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamOrders,
		Type:   "order_removed",
		Data:   payload,
	})

	note := dispatch.Notification{
		Type:    dispatch.TypeOrderExpired,
		Title:   "Order no longer available",
		Body:    expiryBody(payload.Reason),
		OrderID: payload.OrderID,
		At:      b.now(),
	}
	if err := b.dispatcher.Send(ctx, shopperID, note); err != nil {
		b.log.Debug("expiry notification partially delivered", zap.Error(err))
	}
	return nil
}

func expiryBody(reason string) string {
	if reason == "" {
		return "The order was withdrawn from the marketplace"
	}
	return "Reason: " + reason
}

func (b *Bridge) handleChat(ctx context.Context, shopperID string, data []byte) error {
	payload, err := decodeChat(data)
	if err != nil {
		return err
	}

	b.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamChat,
		Type:   "message",
		Data:   payload,
	})

	note := dispatch.Notification{
		Type:    dispatch.TypeChatMessage,
		Title:   chatTitle(payload.Sender),
		Body:    payload.Text,
		OrderID: payload.OrderID,
		At:      b.now(),
	}
	if err := b.dispatcher.Send(ctx, shopperID, note); err != nil {
		b.log.Debug("chat notification partially delivered", zap.Error(err))
	}
	return nil
}

func chatTitle(sender string) string {
	if sender == "" {
		return "New message"
	}
	return "Message from " + sender
}

func (b *Bridge) handleTest(ctx context.Context, shopperID string) error {
	note := dispatch.Notification{
		Type:  dispatch.TypeTest,
		Title: "Push connection verified",
		Body:  "Test message received",
		At:    b.now(),
	}
	return b.dispatcher.Send(ctx, shopperID, note)
}
