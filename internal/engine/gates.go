package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/pkg/logger"
	"github.com/ihuzaapp/shopperd/pkg/metrics"
)

// Gate is a named eligibility check that must pass before the poller
// proceeds. Every gate fails closed: an error answers false, never true.
type Gate interface {
	Name() string
	Allow(ctx context.Context, shopperID string) bool
}

// Gate names, kept stable because logs and metrics key on them.
const (
	GateSchedule     = "schedule"
	GateAvailability = "availability"
	GateActiveStatus = "active_status"
)

type scheduleFetcher interface {
	FetchSchedule(ctx context.Context, shopperID string) ([]models.ShopperSchedule, error)
}

type activeOrdersFetcher interface {
	FetchActiveOrders(ctx context.Context, shopperID string) ([]models.Order, error)
}

// ScheduleGate answers whether "now" falls inside the shopper's configured
// working hours for today. The schedule is fetched fresh on every check so
// edits take effect on the next poll cycle.
type ScheduleGate struct {
	name    string
	backend scheduleFetcher
	now     func() time.Time
	log     *zap.Logger
}

// NewScheduleGate constructs the working-hours gate.
func NewScheduleGate(backend scheduleFetcher, now func() time.Time) *ScheduleGate {
	return newScheduleWindowGate(GateSchedule, backend, now)
}

// NewActiveStatusGate constructs the shopper-active check. It derives its
// answer from the same schedule window as ScheduleGate but stays a separate
// named gate; the two are logged, counted, and tested independently.
func NewActiveStatusGate(backend scheduleFetcher, now func() time.Time) *ScheduleGate {
	return newScheduleWindowGate(GateActiveStatus, backend, now)
}

func newScheduleWindowGate(name string, backend scheduleFetcher, now func() time.Time) *ScheduleGate {
	if now == nil {
		now = time.Now
	}
	return &ScheduleGate{
		name:    name,
		backend: backend,
		now:     now,
		log:     logger.WithGate(name),
	}
}

// Name returns the gate identifier used in logs and metrics.
func (g *ScheduleGate) Name() string { return g.name }

// Allow reports whether the current wall-clock time sits inside today's
// schedule row. Fetch or parse failures answer false.
func (g *ScheduleGate) Allow(ctx context.Context, shopperID string) bool {
	rows, err := g.backend.FetchSchedule(ctx, shopperID)
	if err != nil {
		g.log.Warn("schedule fetch failed, failing closed", zap.Error(err))
		metrics.GateChecks.WithLabelValues(g.name, "error").Inc()
		return false
	}

	ok, err := withinSchedule(rows, g.now())
	if err != nil {
		g.log.Warn("schedule row unusable, failing closed", zap.Error(err))
		metrics.GateChecks.WithLabelValues(g.name, "error").Inc()
		return false
	}

	if ok {
		metrics.GateChecks.WithLabelValues(g.name, "pass").Inc()
	} else {
		g.log.Debug("outside scheduled hours")
		metrics.GateChecks.WithLabelValues(g.name, "block").Inc()
	}
	return ok
}

// withinSchedule finds today's row and compares the current time against its
// window. Times are fixed-width HH:MM:SS strings, so lexicographic comparison
// is correct as long as zero-padding is preserved; formatClock keeps it.
// No timezone conversion happens: schedule and clock share the local zone.
func withinSchedule(rows []models.ShopperSchedule, now time.Time) (bool, error) {
	today := isoDayOfWeek(now)

	for _, row := range rows {
		if row.DayOfWeek != today {
			continue
		}
		if !row.IsAvailable {
			return false, nil
		}
		if !validClock(row.StartTime) || !validClock(row.EndTime) {
			return false, fmt.Errorf("malformed schedule window %q-%q", row.StartTime, row.EndTime)
		}

		current := now.Format("15:04:05")
		return row.StartTime <= current && current <= row.EndTime, nil
	}

	// No row for today means not scheduled.
	return false, nil
}

// isoDayOfWeek maps Go's Sunday=0 convention to ISO numbering, Sunday=7.
func isoDayOfWeek(now time.Time) int {
	day := int(now.Weekday())
	if day == 0 {
		return 7
	}
	return day
}

func validClock(value string) bool {
	if len(value) != 8 || value[2] != ':' || value[5] != ':' {
		return false
	}
	for i, c := range value {
		if i == 2 || i == 5 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// AvailabilityGate answers whether the shopper has no active order. On fetch
// failure it assumes an active order exists, a deliberate asymmetry from
// ScheduleGate's default: both fail closed, but this gate's silence means
// "presumed busy" rather than "presumed off shift".
type AvailabilityGate struct {
	backend activeOrdersFetcher
	log     *zap.Logger
}

// NewAvailabilityGate constructs the no-active-order gate.
func NewAvailabilityGate(backend activeOrdersFetcher) *AvailabilityGate {
	return &AvailabilityGate{
		backend: backend,
		log:     logger.WithGate(GateAvailability),
	}
}

// Name returns the gate identifier used in logs and metrics.
func (g *AvailabilityGate) Name() string { return GateAvailability }

// Allow reports whether the shopper's active-order list is empty.
func (g *AvailabilityGate) Allow(ctx context.Context, shopperID string) bool {
	active, err := g.backend.FetchActiveOrders(ctx, shopperID)
	if err != nil {
		g.log.Warn("active orders fetch failed, assuming shopper is busy", zap.Error(err))
		metrics.GateChecks.WithLabelValues(GateAvailability, "error").Inc()
		return false
	}

	if len(active) > 0 {
		g.log.Debug("shopper has active orders", zap.Int("count", len(active)))
		metrics.GateChecks.WithLabelValues(GateAvailability, "block").Inc()
		return false
	}

	metrics.GateChecks.WithLabelValues(GateAvailability, "pass").Inc()
	return true
}
