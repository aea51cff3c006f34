package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/ihuzaapp/shopperd/internal/api"
	"github.com/ihuzaapp/shopperd/internal/app"
	"github.com/ihuzaapp/shopperd/internal/app/maintenance"
	"github.com/ihuzaapp/shopperd/internal/backend"
	"github.com/ihuzaapp/shopperd/internal/cache"
	"github.com/ihuzaapp/shopperd/internal/database"
	"github.com/ihuzaapp/shopperd/internal/dispatch"
	"github.com/ihuzaapp/shopperd/internal/engine"
	"github.com/ihuzaapp/shopperd/internal/history"
	"github.com/ihuzaapp/shopperd/internal/orders"
	"github.com/ihuzaapp/shopperd/internal/push"
	"github.com/ihuzaapp/shopperd/internal/realtime"
)

// runtimeStack bundles the long-lived collaborators behind the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   cache.Store
	Manager *engine.Manager
	Bridge  *push.Bridge
	Sweeper *maintenance.Sweeper
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, cache, matching engines, push
// bridge, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	var kvStore cache.Store = dbStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
		} else {
			kvStore = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	marketplace, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise backend client: %w", err)
	}

	hub := realtime.NewHub()

	historyStore, err := history.NewGormStore(stack.DB, history.WithCap(cfg.History.Cap))
	if err != nil {
		return nil, fmt.Errorf("initialise history store: %w", err)
	}

	panel := dispatch.NewPanelChannel(hub)
	sound := dispatch.NewSoundChannel(hub)
	system := dispatch.NewSystemChannel(hub)
	dispatcher := dispatch.NewDispatcher(historyStore, hub, time.Now, panel, sound, system)

	book := orders.NewBook()
	tracker := engine.NewAssignmentTracker(engine.WithClaimTTL(cfg.Engine.ClaimTTL))

	gates := []engine.Gate{
		engine.NewScheduleGate(marketplace, time.Now),
		engine.NewAvailabilityGate(marketplace),
		engine.NewActiveStatusGate(marketplace, time.Now),
	}

	stack.Manager = engine.NewManager(func(string) *engine.Engine {
		poller := engine.NewPoller(engine.PollerConfig{
			Gates:         gates,
			Fetcher:       marketplace,
			Book:          book,
			Tracker:       tracker,
			Notifier:      dispatcher,
			Cooldown:      cfg.Engine.NotifyCooldown,
			MaxTravelTime: cfg.Engine.MaxTravelTime,
		})
		return engine.New(poller, tracker, nil, cfg.Engine.PollInterval)
	})

	transport := push.NewWebhookTransport()
	stack.Bridge = push.NewBridge(transport, dispatcher, book, hub, time.Now)
	if err := stack.Bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("start push bridge: %w", err)
	}

	tokens := push.NewTokenRegistry(kvStore)

	if cfg.Maintenance.Enabled {
		stack.Sweeper = maintenance.NewSweeper(stack.DB, tracker,
			maintenance.WithPurgeSchedule(cfg.Maintenance.Schedule))
		if err := stack.Sweeper.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.Deps{
		DB:        stack.DB,
		Backend:   marketplace,
		Book:      book,
		Tracker:   tracker,
		Manager:   stack.Manager,
		Hub:       hub,
		History:   historyStore,
		Transport: transport,
		Tokens:    tokens,
		Sound:     sound,
		System:    system,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown tears the stack down in reverse dependency order. Safe to call on
// a partially constructed stack.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Manager != nil {
		s.Manager.StopAll()
	}

	if s.Bridge != nil {
		s.Bridge.Stop()
	}

	if s.Sweeper != nil {
		stopCtx := s.Sweeper.Stop()
		if err := s.Sweeper.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if rc, ok := s.Redis.(*cache.RedisClient); ok && rc != nil {
		if err := rc.Close(); err != nil {
			log.Warn("failed to close redis client", zap.Error(err))
		}
	}

	closeDatabase(s.DB, log)
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.DatabaseSettings())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAll(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
