package push

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ihuzaapp/shopperd/internal/dispatch"
	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/internal/orders"
	"github.com/ihuzaapp/shopperd/internal/realtime"
	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
)

type fakeHub struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (f *fakeHub) Publish(_ string, event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeHub) byStream(stream string) []realtime.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []realtime.Event
	for _, event := range f.events {
		if event.Stream == stream {
			out = append(out, event)
		}
	}
	return out
}

type fakeSender struct {
	notes []dispatch.Notification
}

func (f *fakeSender) Send(_ context.Context, _ string, note dispatch.Notification) error {
	f.notes = append(f.notes, note)
	return nil
}

type countingTransport struct {
	starts int
	stops  int
}

func (c *countingTransport) Start(_ context.Context, _ Sink) error {
	c.starts++
	return nil
}

func (c *countingTransport) Stop() { c.stops++ }

func newTestBridge() (*Bridge, *orders.Book, *fakeHub, *fakeSender) {
	book := orders.NewBook()
	hub := &fakeHub{}
	sender := &fakeSender{}
	bridge := NewBridge(NewWebhookTransport(), sender, book, hub, nil)
	return bridge, book, hub, sender
}

func orderJSON(t *testing.T, order models.Order) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(order)
	require.NoError(t, err)
	return raw
}

func TestBridgeStartBindsOnce(t *testing.T) {
	transport := &countingTransport{}
	bridge := NewBridge(transport, &fakeSender{}, orders.NewBook(), &fakeHub{}, nil)

	require.NoError(t, bridge.Start(context.Background()))
	require.NoError(t, bridge.Start(context.Background()))
	require.Equal(t, 1, transport.starts)

	bridge.Stop()
	bridge.Stop()
	require.Equal(t, 1, transport.stops)
}

func TestWebhookRefusesMessagesWhileInactive(t *testing.T) {
	transport := NewWebhookTransport()
	err := transport.Dispatch(context.Background(), "shopper-1", Message{Type: TypeTest})
	require.ErrorIs(t, err, apperrors.ErrBridgeInactive)
	require.False(t, transport.Active())
}

func TestHandleNewOrderUpdatesBookAndNotifies(t *testing.T) {
	bridge, book, hub, sender := newTestBridge()
	order := models.Order{ID: "order-9", ShopName: "Fresh Mart", EstimatedEarnings: 14, CreatedAt: time.Now()}

	err := bridge.Handle(context.Background(), "shopper-1", Message{
		Type: TypeNewOrder,
		Data: orderJSON(t, order),
	})
	require.NoError(t, err)

	stored, ok := book.Get("order-9")
	require.True(t, ok)
	require.Equal(t, "Fresh Mart", stored.ShopName)

	require.Len(t, hub.byStream(realtime.StreamOrders), 1)
	require.Len(t, sender.notes, 1)
	require.Equal(t, dispatch.TypeNewOrder, sender.notes[0].Type)
}

// Delivery metadata travels next to the order fields in the push document
// and must come back out on the orders-stream event.
func TestHandleNewOrderForwardsDeliveryMetadata(t *testing.T) {
	bridge, _, hub, _ := newTestBridge()

	require.NoError(t, bridge.Handle(context.Background(), "shopper-1", Message{
		Type: TypeNewOrder,
		Data: json.RawMessage(`{"id":"order-9","shopName":"Fresh Mart","expiresIn":300,"timestamp":"2026-08-29T10:00:00Z"}`),
	}))

	events := hub.byStream(realtime.StreamOrders)
	require.Len(t, events, 1)
	require.Equal(t, "order_added", events[0].Type)
	require.Equal(t, 300, events[0].Meta["expires_in"])
	require.Equal(t, "2026-08-29T10:00:00Z", events[0].Meta["timestamp"])

	// A document without the optional fields publishes no metadata.
	require.NoError(t, bridge.Handle(context.Background(), "shopper-1", Message{
		Type: TypeNewOrder,
		Data: json.RawMessage(`{"id":"order-10"}`),
	}))
	events = hub.byStream(realtime.StreamOrders)
	require.Len(t, events, 2)
	require.Nil(t, events[1].Meta)
}

func TestHandleBatchAcceptsQuotedArray(t *testing.T) {
	bridge, book, _, sender := newTestBridge()

	batch := []models.Order{
		{ID: "order-a", EstimatedEarnings: 10},
		{ID: "order-b", EstimatedEarnings: 15},
	}
	inner, err := json.Marshal(batch)
	require.NoError(t, err)
	quoted, err := json.Marshal(string(inner))
	require.NoError(t, err)

	require.NoError(t, bridge.Handle(context.Background(), "shopper-1", Message{
		Type: TypeBatchOrders,
		Data: quoted,
	}))

	require.Equal(t, 2, book.Len())
	require.Len(t, sender.notes, 1)
	require.True(t, sender.notes[0].IsCombined)
	require.Equal(t, 25.0, sender.notes[0].Earnings)
}

func TestHandleExpiredRemovesOrder(t *testing.T) {
	bridge, book, hub, sender := newTestBridge()
	book.Upsert(models.Order{ID: "order-gone"})

	require.NoError(t, bridge.Handle(context.Background(), "shopper-1", Message{
		Type: TypeOrderExpired,
		Data: json.RawMessage(`{"orderId":"order-gone","reason":"accepted elsewhere"}`),
	}))

	_, ok := book.Get("order-gone")
	require.False(t, ok)

	events := hub.byStream(realtime.StreamOrders)
	require.Len(t, events, 1)
	require.Equal(t, "order_removed", events[0].Type)

	require.Len(t, sender.notes, 1)
	require.Equal(t, dispatch.TypeOrderExpired, sender.notes[0].Type)
	require.Contains(t, sender.notes[0].Body, "accepted elsewhere")
}

func TestHandleChatRelaysToChatStream(t *testing.T) {
	bridge, _, hub, sender := newTestBridge()

	require.NoError(t, bridge.Handle(context.Background(), "shopper-1", Message{
		Type: TypeChatMessage,
		Data: json.RawMessage(`{"orderId":"order-1","sender":"Dana","text":"Please add bananas"}`),
	}))

	require.Len(t, hub.byStream(realtime.StreamChat), 1)
	require.Len(t, sender.notes, 1)
	require.Equal(t, "Message from Dana", sender.notes[0].Title)
	require.Equal(t, "Please add bananas", sender.notes[0].Body)
}

func TestHandleTestSendsConfirmation(t *testing.T) {
	bridge, _, _, sender := newTestBridge()

	require.NoError(t, bridge.Handle(context.Background(), "shopper-1", Message{Type: TypeTest}))
	require.Len(t, sender.notes, 1)
	require.Equal(t, dispatch.TypeTest, sender.notes[0].Type)
}

func TestHandleRejectsMalformedAndUnknown(t *testing.T) {
	bridge, book, _, sender := newTestBridge()

	require.Error(t, bridge.Handle(context.Background(), "shopper-1", Message{Type: "mystery"}))
	require.Error(t, bridge.Handle(context.Background(), "shopper-1", Message{
		Type: TypeNewOrder,
		Data: json.RawMessage(`{"shopName":"no id"}`),
	}))
	require.Error(t, bridge.Handle(context.Background(), "shopper-1", Message{
		Type: TypeOrderExpired,
		Data: json.RawMessage(`{"reason":"missing id"}`),
	}))

	require.Zero(t, book.Len())
	require.Empty(t, sender.notes)
}
