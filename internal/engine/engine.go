package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/pkg/logger"
)

// DefaultPollInterval is how often a running session re-evaluates the
// available order feed.
const DefaultPollInterval = 30 * time.Second

// Engine owns one shopper session's matching loop. Starting an already
// running engine restarts the session: the old loop is torn down, the claim
// ledger and cooldown are cleared, and ticking resumes immediately at the
// new location.
type Engine struct {
	poller   *Poller
	tracker  *AssignmentTracker
	clock    Clock
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	session Session
}

// Session describes the identity a running loop was started with.
type Session struct {
	ShopperID string          `json:"shopper_id,omitempty"`
	Location  models.Location `json:"location"`
	StartedAt time.Time       `json:"started_at"`
	Running   bool            `json:"running"`
}

// New constructs an engine around a poller. A nil clock gets the system
// clock; a non-positive interval gets the default.
func New(poller *Poller, tracker *AssignmentTracker, clock Clock, interval time.Duration) *Engine {
	if clock == nil {
		clock = NewClock()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Engine{
		poller:   poller,
		tracker:  tracker,
		clock:    clock,
		interval: interval,
		log:      logger.WithModule("engine"),
	}
}

// Start begins (or restarts) the matching loop for a shopper at a location.
// The first tick fires immediately rather than waiting out an interval.
func (e *Engine) Start(shopperID string, loc models.Location) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()

	e.tracker.ReleaseFor(shopperID)
	e.poller.ResetCooldown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.session = Session{
		ShopperID: shopperID,
		Location:  loc,
		StartedAt: e.clock.Now(),
		Running:   true,
	}

	e.log.Info("session started",
		zap.String("shopper_id", shopperID),
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude))

	go e.run(ctx, done, shopperID, loc)
}

func (e *Engine) run(ctx context.Context, done chan struct{}, shopperID string, loc models.Location) {
	defer close(done)

	e.poller.Tick(ctx, shopperID, loc)

	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			e.poller.Tick(ctx, shopperID, loc)
		}
	}
}

// Stop tears the loop down and waits for the loop goroutine to exit. Safe to
// call when nothing is running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil

	e.log.Info("session stopped", zap.String("shopper_id", e.session.ShopperID))
	e.session = Session{}
}

// Status reports the current session, zero-valued when stopped.
func (e *Engine) Status() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}
