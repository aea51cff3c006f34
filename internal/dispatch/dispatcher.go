package dispatch

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ihuzaapp/shopperd/internal/history"
	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/internal/realtime"
	"github.com/ihuzaapp/shopperd/pkg/logger"
	"github.com/ihuzaapp/shopperd/pkg/metrics"
)

// Dispatcher fans one notification out across every configured channel and
// records it in history. Channels are independent: any subset may fail
// without suppressing the rest, and the aggregate error is informational
// only, callers treat the dispatch as done either way.
type Dispatcher struct {
	channels []Channel
	store    history.Store
	hub      publisher
	now      func() time.Time
	log      *zap.Logger
}

// NewDispatcher wires the dispatcher. A nil now falls back to the system
// clock.
func NewDispatcher(store history.Store, hub publisher, now func() time.Time, channels ...Channel) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		channels: channels,
		store:    store,
		hub:      hub,
		now:      now,
		log:      logger.WithModule("dispatch"),
	}
}

// Notify renders the order into a notification, records it, and pushes it
// through every channel.
func (d *Dispatcher) Notify(ctx context.Context, shopperID string, order models.Order) error {
	return d.Send(ctx, shopperID, FromOrder(order, d.now()))
}

// Send delivers an already-rendered notification. Used by the push bridge,
// which builds its own payload-specific notifications.
func (d *Dispatcher) Send(ctx context.Context, shopperID string, note Notification) error {
	d.record(ctx, shopperID, note)

	var errs error
	for _, channel := range d.channels {
		if err := channel.Deliver(ctx, shopperID, note); err != nil {
			metrics.Notifications.WithLabelValues(channel.Name(), "error").Inc()
			d.log.Debug("channel delivery failed",
				zap.String("channel", channel.Name()),
				zap.String("shopper_id", shopperID),
				zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		metrics.Notifications.WithLabelValues(channel.Name(), "ok").Inc()
	}
	return errs
}

func (d *Dispatcher) record(ctx context.Context, shopperID string, note Notification) {
	item := models.NotificationItem{
		ShopperID:       shopperID,
		Type:            note.Type,
		Title:           note.Title,
		Body:            note.Body,
		Timestamp:       note.At,
		OrderID:         note.OrderID,
		IsCombinedOrder: note.IsCombined,
		TotalEarnings:   note.Earnings,
	}

	stored, err := d.store.Append(ctx, item)
	if err != nil {
		// History is a convenience view; losing one entry must not stop
		// delivery.
		d.log.Warn("history append failed", zap.Error(err))
		return
	}

	d.hub.Publish(shopperID, realtime.Event{
		Stream: realtime.StreamHistory,
		Type:   "appended",
		Data:   stored,
	})
}
