package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/internal/orders"
)

type stubFetcher struct {
	orders []models.Order
	err    error
	calls  int
}

func (s *stubFetcher) FetchAvailableOrders(_ context.Context, _ models.Location, _ int) ([]models.Order, error) {
	s.calls++
	return s.orders, s.err
}

type recordingNotifier struct {
	got []models.Order
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, _ string, order models.Order) error {
	r.got = append(r.got, order)
	return r.err
}

type stubGate struct {
	name  string
	allow bool
	calls int
}

func (s *stubGate) Name() string { return s.name }

func (s *stubGate) Allow(_ context.Context, _ string) bool {
	s.calls++
	return s.allow
}

// manualClock hands out a controllable time to the poller and engine. The
// mutex keeps Advance safe against reads from the engine goroutine.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *manualTicker
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start, ticker: &manualTicker{ch: make(chan time.Time)}}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *manualClock) NewTicker(_ time.Duration) Ticker { return c.ticker }

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {}

func orderAt(id string, age time.Duration, base time.Time) models.Order {
	return models.Order{ID: id, CreatedAt: base.Add(-age), EstimatedEarnings: 10}
}

func newTestPoller(clock *manualClock, fetcher *stubFetcher, notifier *recordingNotifier, gates ...Gate) (*Poller, *orders.Book, *AssignmentTracker) {
	book := orders.NewBook()
	tracker := NewAssignmentTracker()
	poller := NewPoller(PollerConfig{
		Gates:         gates,
		Fetcher:       fetcher,
		Book:          book,
		Tracker:       tracker,
		Notifier:      notifier,
		Now:           clock.Now,
		Cooldown:      NotifyCooldown,
		MaxTravelTime: 30,
	})
	return poller, book, tracker
}

func TestTickNotifiesOldestUnclaimedOrder(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{
		orderAt("order-fresh", 2*time.Minute, base),
		orderAt("order-stale", 20*time.Minute, base),
	}}
	notifier := &recordingNotifier{}
	poller, book, tracker := newTestPoller(clock, fetcher, notifier)

	poller.Tick(context.Background(), "shopper-1", models.Location{})

	require.Len(t, notifier.got, 1)
	require.Equal(t, "order-stale", notifier.got[0].ID)
	require.True(t, tracker.Claimed("order-stale"))
	require.Equal(t, 2, book.Len())
}

func TestTickRespectsCooldownAndSkipsGates(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	gate := &stubGate{name: "schedule", allow: true}
	fetcher := &stubFetcher{orders: []models.Order{orderAt("order-a", time.Minute, base)}}
	notifier := &recordingNotifier{}
	poller, _, _ := newTestPoller(clock, fetcher, notifier, gate)

	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Len(t, notifier.got, 1)
	require.Equal(t, 1, gate.calls)

	// 30s later the cooldown is still live: not even the gate runs.
	clock.Advance(30 * time.Second)
	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Len(t, notifier.got, 1)
	require.Equal(t, 1, gate.calls)
	require.Equal(t, 1, fetcher.calls)
}

func TestTickNotifiesAgainAfterCooldownElapses(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{
		orderAt("order-a", 10*time.Minute, base),
		orderAt("order-b", 5*time.Minute, base),
	}}
	notifier := &recordingNotifier{}
	poller, _, _ := newTestPoller(clock, fetcher, notifier)

	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Equal(t, []string{"order-a"}, notifiedIDs(notifier))

	// Cooldown and claim TTL both lapse. The ledger has forgotten order-a,
	// and being oldest in the feed it wins the election again.
	clock.Advance(61 * time.Second)
	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Equal(t, []string{"order-a", "order-a"}, notifiedIDs(notifier))
}

func TestTickSkipsOrdersClaimedElsewhere(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{
		orderAt("order-old", 10*time.Minute, base),
		orderAt("order-young", time.Minute, base),
	}}
	notifier := &recordingNotifier{}
	poller, _, tracker := newTestPoller(clock, fetcher, notifier)

	require.True(t, tracker.Claim("shopper-2", "order-old", base))

	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Equal(t, []string{"order-young"}, notifiedIDs(notifier))
}

func TestTickHoldsWhileClaimIsLive(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{
		orderAt("order-a", 10*time.Minute, base),
		orderAt("order-b", 5*time.Minute, base),
	}}
	notifier := &recordingNotifier{}
	poller, book, tracker := newTestPoller(clock, fetcher, notifier)
	// Cooldown shorter than the claim TTL isolates the hold behavior.
	poller.cooldown = 10 * time.Second

	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Len(t, notifier.got, 1)

	// Past the cooldown but inside the claim window: no second
	// notification, yet the book still absorbs the fresh feed.
	clock.Advance(15 * time.Second)
	fetcher.orders = append(fetcher.orders, orderAt("order-c", time.Minute, clock.Now()))
	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Len(t, notifier.got, 1)
	require.Equal(t, 3, book.Len())
	require.True(t, tracker.Holds("shopper-1", clock.Now()))
}

func TestTickStopsWhenGateBlocks(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	open := &stubGate{name: "schedule", allow: true}
	closed := &stubGate{name: "availability", allow: false}
	after := &stubGate{name: "active_status", allow: true}
	fetcher := &stubFetcher{orders: []models.Order{orderAt("order-a", time.Minute, base)}}
	notifier := &recordingNotifier{}
	poller, book, _ := newTestPoller(clock, fetcher, notifier, open, closed, after)

	poller.Tick(context.Background(), "shopper-1", models.Location{})

	require.Empty(t, notifier.got)
	require.Zero(t, fetcher.calls, "fetch must not run behind a closed gate")
	require.Zero(t, after.calls, "later gates must not run behind a closed gate")
	require.Zero(t, book.Len())
}

func TestTickAbortsOnFetchError(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{err: errors.New("backend down")}
	notifier := &recordingNotifier{}
	poller, book, _ := newTestPoller(clock, fetcher, notifier)

	poller.Tick(context.Background(), "shopper-1", models.Location{})

	require.Empty(t, notifier.got)
	require.Zero(t, book.Len())
}

func TestTickDiscardsResultAfterCancel(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{orderAt("order-a", time.Minute, base)}}
	notifier := &recordingNotifier{}
	poller, book, _ := newTestPoller(clock, fetcher, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poller.Tick(ctx, "shopper-1", models.Location{})

	require.Empty(t, notifier.got)
	require.Zero(t, book.Len())
}

func TestTickDeliveryErrorKeepsClaimAndCooldown(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{orderAt("order-a", time.Minute, base)}}
	notifier := &recordingNotifier{err: errors.New("channel down")}
	poller, _, tracker := newTestPoller(clock, fetcher, notifier)

	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.True(t, tracker.Claimed("order-a"))

	clock.Advance(30 * time.Second)
	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Len(t, notifier.got, 1, "cooldown holds even when delivery failed")
}

func TestResetCooldownAllowsImmediateNotify(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	clock := newManualClock(base)
	fetcher := &stubFetcher{orders: []models.Order{
		orderAt("order-a", 10*time.Minute, base),
		orderAt("order-b", 5*time.Minute, base),
	}}
	notifier := &recordingNotifier{}
	poller, _, tracker := newTestPoller(clock, fetcher, notifier)

	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Len(t, notifier.got, 1)

	// A session restart clears both the ledger and the cooldown stamp.
	tracker.Reset()
	poller.ResetCooldown()
	clock.Advance(5 * time.Second)

	poller.Tick(context.Background(), "shopper-1", models.Location{})
	require.Len(t, notifier.got, 2)
}

func notifiedIDs(n *recordingNotifier) []string {
	ids := make([]string, 0, len(n.got))
	for _, order := range n.got {
		ids = append(ids, order.ID)
	}
	return ids
}
