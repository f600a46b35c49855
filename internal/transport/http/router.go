package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cwrk-planet/chat-service/internal/auth"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-service/internal/transport/http/httputil"
)

type Deps struct {
	Handler *Handler
	Auth    auth.Authenticator
	// WS serves the websocket upgrade; it authenticates on its own.
	WS          http.Handler
	CORSOrigins []string
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", httpmw.HeaderUserID},
			ExposedHeaders:   []string{httputil.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if d.WS != nil {
		r.Method(http.MethodGet, "/ws", d.WS)
	}

	r.Route("/api/chat", func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(d.Auth))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Post("/send", d.Handler.SendMessage)
		pr.Get("/conversation/{userA}/{userB}", d.Handler.GetConversation)
		pr.Get("/conversations/{userId}", d.Handler.ListConversations)
		pr.Patch("/mark-read", d.Handler.MarkRead)
		pr.Get("/unread-count", d.Handler.UnreadCount)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				httputil.Error(w, http.StatusServiceUnavailable, "not ready", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
