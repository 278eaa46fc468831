package bootstrap

import (
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/controller"
	"CollabChatAPI/internal/middleware"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Route struct {
	cfg                 *config.AppConfig
	chi                 *chi.Mux
	gatherer            prometheus.Gatherer
	authMiddleware      *middleware.AuthMiddleware
	rateLimitMiddleware *middleware.RateLimitMiddleware
	requestController   *controller.RequestController
	chatController      *controller.ChatController
	messageController   *controller.MessageController
	wsController        *controller.WebSocketController
	healthController    *controller.HealthController
}

func NewRoute(
	cfg *config.AppConfig,
	chi *chi.Mux,
	gatherer prometheus.Gatherer,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	requestController *controller.RequestController,
	chatController *controller.ChatController,
	messageController *controller.MessageController,
	wsController *controller.WebSocketController,
	healthController *controller.HealthController,
) *Route {
	return &Route{
		cfg:                 cfg,
		chi:                 chi,
		gatherer:            gatherer,
		authMiddleware:      authMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
		requestController:   requestController,
		chatController:      chatController,
		messageController:   messageController,
		wsController:        wsController,
		healthController:    healthController,
	}
}

func (route *Route) Register() {
	route.chi.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Welcome to CollabChatAPI"))
	})
	route.chi.Get("/healthz", route.healthController.Healthz)
	if route.gatherer != nil {
		route.chi.Handle("/metrics", promhttp.HandlerFor(route.gatherer, promhttp.HandlerOpts{}))
	}

	route.chi.With(route.authMiddleware.VerifyWSToken).Get("/ws", route.wsController.ServeWS)

	route.chi.Route("/api", func(r chi.Router) {
		r.Use(route.authMiddleware.VerifyToken)

		r.Get("/relationships/{userID}", route.requestController.GetRelationship)

		r.Route("/requests", func(r chi.Router) {
			r.With(route.rateLimitMiddleware.Limit("send_request", route.cfg.RateLimitRequestsPerMinute, time.Minute)).
				Post("/", route.requestController.SendRequest)
			r.Get("/incoming", route.requestController.ListIncomingRequests)
			r.Get("/outgoing", route.requestController.ListOutgoingRequests)
			r.Post("/{requestID}/accept", route.requestController.AcceptRequest)
			r.Post("/{requestID}/reject", route.requestController.RejectRequest)
			r.Delete("/{requestID}", route.requestController.CancelRequest)
		})

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", route.chatController.ListChats)
			r.Post("/group", route.chatController.CreateGroupChat)
			r.Get("/{chatID}", route.chatController.GetChat)
			r.Post("/{chatID}/members", route.chatController.AddGroupMembers)
			r.Get("/{chatID}/messages", route.messageController.GetMessages)
			r.With(route.rateLimitMiddleware.Limit("send_message", route.cfg.RateLimitMessagesPerMinute, time.Minute)).
				Post("/{chatID}/messages", route.messageController.SendMessage)
		})
	})
}
