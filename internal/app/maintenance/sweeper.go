package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ihuzaapp/shopperd/internal/engine"
	"github.com/ihuzaapp/shopperd/internal/models"
	"github.com/ihuzaapp/shopperd/pkg/logger"
)

const (
	defaultHistoryRetentionDays = 30
	defaultClaimSpec            = "@every 1m"
	defaultPurgeSpec            = "@hourly"
)

// Sweeper runs the background maintenance jobs: a safety-net sweep of the
// claim ledger, purging expired cache rows, and pruning history entries past
// the retention window. The ledger sweep duplicates what the poll loop does
// on every tick so a stalled engine cannot leave claims pinned forever.
type Sweeper struct {
	db      *gorm.DB
	tracker *engine.AssignmentTracker
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger

	retentionDays int
	claimSchedule string
	purgeSchedule string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHistoryRetentionDays adjusts how long history rows are kept.
func WithHistoryRetentionDays(days int) Option {
	return func(s *Sweeper) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithClaimSchedule overrides the cron specification for the ledger sweep.
func WithClaimSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.claimSchedule = spec
		}
	}
}

// WithPurgeSchedule overrides the cron specification for the database purges.
func WithPurgeSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.purgeSchedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper. A nil db skips the database jobs; a nil
// tracker skips the ledger sweep.
func NewSweeper(db *gorm.DB, tracker *engine.AssignmentTracker, opts ...Option) *Sweeper {
	s := &Sweeper{
		db:            db,
		tracker:       tracker,
		now:           time.Now,
		retentionDays: defaultHistoryRetentionDays,
		claimSchedule: defaultClaimSpec,
		purgeSchedule: defaultPurgeSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s
}

// Start registers the jobs and launches the scheduler.
func (s *Sweeper) Start() error {
	if s.tracker != nil {
		if _, err := s.cron.AddFunc(s.claimSchedule, func() {
			s.tracker.Sweep(s.now())
		}); err != nil {
			return err
		}
	}

	if s.db != nil {
		if _, err := s.cron.AddFunc(s.purgeSchedule, func() {
			if err := s.purge(context.Background()); err != nil {
				s.log.Warn("database purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for running jobs to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job sequentially, used in tests and
// during graceful shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.tracker != nil {
		s.tracker.Sweep(s.now())
	}
	if s.db != nil {
		errs = multierr.Append(errs, s.purge(ctx))
	}
	return errs
}

func (s *Sweeper) purge(ctx context.Context) error {
	now := s.now()

	var errs error
	if _, err := PurgeExpiredCacheEntries(ctx, s.db, now); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := PruneHistory(ctx, s.db, now.AddDate(0, 0, -s.retentionDays)); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// PurgeExpiredCacheEntries removes cache rows whose TTL has lapsed.
func PurgeExpiredCacheEntries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("purge cache: db is required")
	}

	// A zero expires_at means the entry never expires.
	result := db.WithContext(ctx).
		Where("expires_at <> ? AND expires_at < ?", time.Time{}, now).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge cache: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PruneHistory removes notification history rows created before the cutoff.
// The per-shopper cap is enforced on insert; this is the long-tail cleanup
// for shoppers who stopped using the service.
func PruneHistory(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("prune history: db is required")
	}

	result := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.NotificationItem{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune history: %w", result.Error)
	}
	return result.RowsAffected, nil
}
