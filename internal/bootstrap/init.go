package bootstrap

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/controller"
	"CollabChatAPI/internal/middleware"
	"CollabChatAPI/internal/repository"
	"CollabChatAPI/internal/scheduler"
	"CollabChatAPI/internal/service"
	"CollabChatAPI/internal/websocket"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the wired server. DB and Redis are optional: without DB the memory
// store and directory are used, without Redis sessions, HTTP rate limits and
// the backplane are off.
type App struct {
	Router    *chi.Mux
	Hub       *websocket.Hub
	Scheduler *scheduler.Scheduler
	Limiter   *config.RateLimiter
	Directory adapter.IdentityDirectory
}

func Init(cfg *config.AppConfig, db *sqlx.DB, redisAdapter *adapter.RedisAdapter, validator *validator.Validate, chiMux *chi.Mux, reg *prometheus.Registry) *App {
	var store repository.Registry
	var directory adapter.IdentityDirectory
	if db != nil {
		store = repository.NewPostgresRegistry(db)
		directory = adapter.NewPostgresDirectory(db, redisAdapter, time.Duration(cfg.IdentityCacheTTLSeconds)*time.Second)
	} else {
		store = repository.NewMemoryRegistry()
		directory = adapter.NewMemoryDirectory()
	}

	repo := repository.NewRepository(store, redisAdapter)

	var backplane *websocket.Backplane
	if cfg.RedisBackplane && redisAdapter != nil {
		backplane = websocket.NewBackplane(redisAdapter)
	}

	limiter := config.NewRateLimiter(cfg)
	hub := websocket.NewHub(store.Chats(), websocket.HubOptions{
		TypingTimeout: time.Duration(cfg.TypingTimeoutSeconds) * time.Second,
		Limiter:       limiter,
		Backplane:     backplane,
		Registerer:    reg,
	})

	metrics := service.NewMetrics(reg)

	authService := service.NewAuthService(cfg, repo, directory)
	requestService := service.NewRequestService(repo, validator, directory, hub, metrics)
	chatService := service.NewChatService(repo, validator, directory, hub, metrics)
	messageService := service.NewMessageService(cfg, repo, validator, directory, hub, metrics)
	hub.SetMessageSender(messageService)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(repo.RateLimit, cfg)

	route := NewRoute(cfg, chiMux, reg,
		authMiddleware,
		rateLimitMiddleware,
		controller.NewRequestController(requestService),
		controller.NewChatController(chatService),
		controller.NewMessageController(messageService),
		controller.NewWebSocketController(hub, cfg.AppCorsAllowedOrigins),
		controller.NewHealthController(hub),
	)
	route.Register()

	app := &App{
		Router:    chiMux,
		Hub:       hub,
		Limiter:   limiter,
		Directory: directory,
	}

	// The memory store lives in this process, so its expiry job must too.
	if db == nil {
		app.Scheduler = scheduler.New(cfg, requestService)
	}

	return app
}
