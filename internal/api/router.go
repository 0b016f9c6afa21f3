package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/truthguard/internal/identity"
	"github.com/ashureev/truthguard/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig collects everything the HTTP surface is built from. Nil
// optional handlers leave their routes unmounted.
type RouterConfig struct {
	Gateway Submitter
	History HistoryReader

	TelegramToken  string
	TelegramSender TelegramSender

	WhatsAppVerifyToken string
	WhatsAppSender      WhatsAppSender

	Feed  http.Handler
	Ready http.Handler

	AllowedOrigins []string
	IsDev          bool
	Logger         *slog.Logger
}

// NewRouter builds the gateway's router.
func NewRouter(cfg RouterConfig) chi.Router {
	base := NewHandler(cfg.Gateway, cfg.Logger)

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.Ready != nil {
		r.Method(http.MethodGet, "/readyz", cfg.Ready)
	}

	// Webhooks identify callers from their payloads.
	if cfg.TelegramToken != "" && cfg.TelegramSender != nil {
		NewTelegramHandler(base, cfg.TelegramToken, cfg.TelegramSender).RegisterRoutes(r)
	}
	if cfg.WhatsAppSender != nil {
		NewWhatsAppHandler(base, cfg.WhatsAppVerifyToken, cfg.WhatsAppSender).RegisterRoutes(r)
	}

	// Browser-facing routes fall back to an anonymous device identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDev))
		NewExtensionHandler(base).RegisterRoutes(r)
		if cfg.History != nil {
			NewHistoryHandler(base, cfg.History).RegisterRoutes(r)
		}
	})

	if cfg.Feed != nil {
		r.Method(http.MethodGet, "/ws/feed", cfg.Feed)
	}

	return r
}
