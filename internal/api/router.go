package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/ihuzaapp/shopperd/internal/backend"
	"github.com/ihuzaapp/shopperd/internal/dispatch"
	"github.com/ihuzaapp/shopperd/internal/engine"
	"github.com/ihuzaapp/shopperd/internal/handlers"
	"github.com/ihuzaapp/shopperd/internal/history"
	"github.com/ihuzaapp/shopperd/internal/middleware"
	"github.com/ihuzaapp/shopperd/internal/orders"
	"github.com/ihuzaapp/shopperd/internal/push"
	"github.com/ihuzaapp/shopperd/internal/realtime"
)

// Deps carries everything the router mounts. All fields are required except
// DB, which the health endpoint tolerates as nil.
type Deps struct {
	DB        *gorm.DB
	Backend   *backend.Client
	Book      *orders.Book
	Tracker   *engine.AssignmentTracker
	Manager   *engine.Manager
	Hub       *realtime.Hub
	History   history.Store
	Transport *push.WebhookTransport
	Tokens    *push.TokenRegistry
	Sound     *dispatch.SoundChannel
	System    *dispatch.SystemChannel
}

func (d Deps) validate() error {
	switch {
	case d.Backend == nil:
		return fmt.Errorf("backend client must be provided")
	case d.Book == nil:
		return fmt.Errorf("order book must be provided")
	case d.Tracker == nil:
		return fmt.Errorf("assignment tracker must be provided")
	case d.Manager == nil:
		return fmt.Errorf("engine manager must be provided")
	case d.Hub == nil:
		return fmt.Errorf("realtime hub must be provided")
	case d.History == nil:
		return fmt.Errorf("history store must be provided")
	case d.Transport == nil:
		return fmt.Errorf("push transport must be provided")
	case d.Tokens == nil:
		return fmt.Errorf("token registry must be provided")
	case d.Sound == nil || d.System == nil:
		return fmt.Errorf("alert channels must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RequireShopper())

	registerOrderRoutes(api, handlers.NewOrdersHandler(deps.Book, deps.Backend, deps.Tracker, deps.Hub))
	registerNotificationRoutes(api, handlers.NewNotificationsHandler(deps.History, deps.Hub))
	registerPushRoutes(api, handlers.NewPushHandler(deps.Transport, deps.Tokens))
	registerEngineRoutes(api, handlers.NewEngineHandler(deps.Manager))
	registerAlertRoutes(api, handlers.NewAlertsHandler(deps.Sound, deps.System))
	registerRealtimeRoutes(api, handlers.NewRealtimeHandler(deps.Hub))

	return r, nil
}
