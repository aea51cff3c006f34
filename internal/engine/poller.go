package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/internal/orders"
	"github.com/ihuzaapp/shopperd/pkg/logger"
	"github.com/ihuzaapp/shopperd/pkg/metrics"
)

// NotifyCooldown is the minimum gap between two successful order
// notifications for one session. Measured from the last notification, not
// the last tick.
const NotifyCooldown = 60 * time.Second

type availableOrdersFetcher interface {
	FetchAvailableOrders(ctx context.Context, loc models.Location, maxTravelTime int) ([]models.Order, error)
}

// Notifier receives the single order the poller elected to surface.
type Notifier interface {
	Notify(ctx context.Context, shopperID string, order models.Order) error
}

// Poller runs one tick of the order matching loop. All ticks for a session
// run on the engine goroutine; the mutex only protects the cooldown stamp
// against concurrent resets from session restarts.
type Poller struct {
	gates    []Gate
	fetch    availableOrdersFetcher
	book     *orders.Book
	tracker  *AssignmentTracker
	notifier Notifier
	now      func() time.Time
	cooldown time.Duration
	travel   int
	log      *zap.Logger

	mu           sync.Mutex
	lastNotified time.Time
}

// PollerConfig carries the poller's collaborators and knobs.
type PollerConfig struct {
	Gates         []Gate
	Fetcher       availableOrdersFetcher
	Book          *orders.Book
	Tracker       *AssignmentTracker
	Notifier      Notifier
	Now           func() time.Time
	Cooldown      time.Duration
	MaxTravelTime int
}

// NewPoller constructs a poller. Zero Cooldown gets the default; a nil Now
// falls back to the system clock.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = NotifyCooldown
	}
	return &Poller{
		gates:    cfg.Gates,
		fetch:    cfg.Fetcher,
		book:     cfg.Book,
		tracker:  cfg.Tracker,
		notifier: cfg.Notifier,
		now:      cfg.Now,
		cooldown: cfg.Cooldown,
		travel:   cfg.MaxTravelTime,
		log:      logger.WithModule("engine"),
	}
}

// ResetCooldown zeroes the cooldown stamp so the next tick may notify
// immediately. Called when a session starts.
func (p *Poller) ResetCooldown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastNotified = time.Time{}
}

func (p *Poller) inCooldown(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.lastNotified.IsZero() && now.Sub(p.lastNotified) < p.cooldown
}

func (p *Poller) markNotified(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastNotified = now
}

// Tick runs one matching cycle: cooldown check, gates in declared order,
// fetch, claim, notify. The fetched list lands in the book even when the
// cycle stops before notifying, so the order feed stays current during
// cooldowns held by a live claim.
func (p *Poller) Tick(ctx context.Context, shopperID string, loc models.Location) {
	now := p.now()

	// Inside the cooldown window nothing runs, gates included.
	if p.inCooldown(now) {
		metrics.PollTicks.WithLabelValues("cooldown").Inc()
		return
	}

	for _, gate := range p.gates {
		if !gate.Allow(ctx, shopperID) {
			metrics.PollTicks.WithLabelValues("gated").Inc()
			return
		}
	}

	fetched, err := p.fetch.FetchAvailableOrders(ctx, loc, p.travel)
	if err != nil {
		p.log.Warn("available orders fetch failed, skipping tick", zap.Error(err))
		metrics.PollTicks.WithLabelValues("fetch_error").Inc()
		return
	}

	// A response landing after the session stopped is discarded quietly.
	if ctx.Err() != nil {
		metrics.PollTicks.WithLabelValues("stale").Inc()
		return
	}

	p.book.Replace(fetched)

	p.tracker.Sweep(now)

	if p.tracker.Holds(shopperID, now) {
		metrics.PollTicks.WithLabelValues("holding_claim").Inc()
		return
	}

	var elected *models.Order
	for _, candidate := range orders.OldestFirst(fetched) {
		if p.tracker.Claimed(candidate.ID) {
			continue
		}
		elected = &candidate
		break
	}
	if elected == nil {
		metrics.PollTicks.WithLabelValues("no_candidates").Inc()
		return
	}

	if !p.tracker.Claim(shopperID, elected.ID, now) {
		// Lost a race with another session claiming the same order.
		metrics.PollTicks.WithLabelValues("claim_conflict").Inc()
		return
	}

	p.markNotified(now)
	metrics.PollTicks.WithLabelValues("notified").Inc()

	if err := p.notifier.Notify(ctx, shopperID, *elected); err != nil {
		// Channels are best effort; the claim and cooldown stand either way.
		p.log.Warn("notification delivery incomplete",
			zap.String("order_id", elected.ID),
			zap.Error(err))
	}

	p.log.Info("order surfaced to shopper",
		zap.String("shopper_id", shopperID),
		zap.String("order_id", elected.ID),
		zap.Float64("earnings", elected.EstimatedEarnings))
}
