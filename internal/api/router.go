package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/metrics"
	"github.com/saturnino-fabrica-de-software/proctor/internal/service"
	"github.com/saturnino-fabrica-de-software/proctor/internal/ws"
)

type Dependencies struct {
	Sessions *service.SessionService
	Hub      *ws.Hub
	Metrics  *metrics.Metrics
	// DB is nil when running without persistence
	DB database.Pinger
	// Sound answers ticks without a sound field; nil leaves them unsampled
	Sound handler.SoundSource
	// APIKey protects /v1; empty disables auth
	APIKey    string
	RateLimit middleware.RateLimiterConfig
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger),
		AppName:               "Proctor API",
		BodyLimit:             12 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var sessions handler.ActiveSessionCounter
	if r.deps != nil && r.deps.Sessions != nil {
		sessions = r.deps.Sessions
	}
	var db database.Pinger
	if r.deps != nil {
		db = r.deps.DB
	}

	// Health check endpoints (no auth required)
	healthHandler := handler.NewHealthHandler(db, sessions)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil || r.deps.Sessions == nil {
		return
	}

	if r.deps.Metrics != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(r.deps.Metrics.Handler()))
	}

	v1 := r.app.Group("/v1")
	v1.Use(middleware.Auth(r.deps.APIKey))

	r.rateLimiter = middleware.NewRateLimiter(r.deps.RateLimit)
	v1.Use(r.rateLimiter.Handler())

	var handlerOpts []handler.SessionHandlerOption
	if r.deps.Sound != nil {
		handlerOpts = append(handlerOpts, handler.WithSoundSource(r.deps.Sound))
	}
	sessionHandler := handler.NewSessionHandler(r.deps.Sessions, r.logger, handlerOpts...)

	v1.Post("/sessions", sessionHandler.Create)
	v1.Get("/sessions/:id", sessionHandler.Get)
	v1.Delete("/sessions/:id", sessionHandler.Close)
	v1.Post("/sessions/:id/ticks", sessionHandler.Tick)
	v1.Get("/sessions/:id/frame", sessionHandler.Frame)

	if r.deps.Hub != nil {
		v1.Get("/sessions/:id/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

// Shutdown stops accepting requests. The hub and workers belong to the
// caller.
func (r *Router) Shutdown() error {
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
