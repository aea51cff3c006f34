package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/internal/orders"
)

type channelNotifier struct {
	ch chan models.Order
}

func (c *channelNotifier) Notify(_ context.Context, _ string, order models.Order) error {
	c.ch <- order
	return nil
}

func awaitNotification(t *testing.T, ch chan models.Order) models.Order {
	t.Helper()
	select {
	case order := <-ch:
		return order
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return models.Order{}
	}
}

func newTestEngine(t *testing.T, clock *manualClock, fetcher *stubFetcher) (*Engine, chan models.Order) {
	t.Helper()
	notifier := &channelNotifier{ch: make(chan models.Order, 4)}
	tracker := NewAssignmentTracker()
	poller := NewPoller(PollerConfig{
		Fetcher:  fetcher,
		Book:     orders.NewBook(),
		Tracker:  tracker,
		Notifier: notifier,
		Now:      clock.Now,
	})
	eng := New(poller, tracker, clock, 30*time.Second)
	t.Cleanup(eng.Stop)
	return eng, notifier.ch
}

func TestEngineFirstTickFiresImmediately(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{orderAt("order-a", time.Minute, base)}}
	eng, notified := newTestEngine(t, clock, fetcher)

	eng.Start("shopper-1", models.Location{Latitude: 1, Longitude: 2})

	got := awaitNotification(t, notified)
	require.Equal(t, "order-a", got.ID)

	status := eng.Status()
	require.True(t, status.Running)
	require.Equal(t, "shopper-1", status.ShopperID)
}

func TestEngineTicksOnInterval(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{orderAt("order-a", time.Minute, base)}}
	eng, notified := newTestEngine(t, clock, fetcher)

	eng.Start("shopper-1", models.Location{})
	awaitNotification(t, notified)

	// Past the cooldown and the claim TTL, a ticker fire notifies again.
	clock.Advance(61 * time.Second)
	clock.ticker.ch <- clock.Now()
	awaitNotification(t, notified)
}

func TestEngineRestartResetsCooldown(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{orderAt("order-a", time.Minute, base)}}
	eng, notified := newTestEngine(t, clock, fetcher)

	eng.Start("shopper-1", models.Location{})
	awaitNotification(t, notified)

	// Only five seconds pass, far inside the cooldown, but a restart starts
	// a fresh session with a clean ledger and cooldown stamp.
	clock.Advance(5 * time.Second)
	eng.Start("shopper-1", models.Location{Latitude: 9})

	got := awaitNotification(t, notified)
	require.Equal(t, "order-a", got.ID)
	require.Equal(t, 9.0, eng.Status().Location.Latitude)
}

func TestEngineStopIsIdempotent(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{}
	eng, _ := newTestEngine(t, clock, fetcher)

	eng.Stop() // never started

	eng.Start("shopper-1", models.Location{})
	eng.Stop()
	eng.Stop()

	require.False(t, eng.Status().Running)
}
