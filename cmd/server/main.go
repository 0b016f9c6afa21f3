// TruthGuard - multi-channel misinformation verification gateway
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/truthguard/internal/agent"
	"github.com/ashureev/truthguard/internal/api"
	"github.com/ashureev/truthguard/internal/channel"
	"github.com/ashureev/truthguard/internal/config"
	"github.com/ashureev/truthguard/internal/feed"
	"github.com/ashureev/truthguard/internal/gateway"
	"github.com/ashureev/truthguard/internal/health"
	"github.com/ashureev/truthguard/internal/middleware"
	"github.com/ashureev/truthguard/internal/store"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "agent", cfg.Agent.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "path", cfg.History.DBPath)

	client, err := agent.NewClient(agent.ClientConfig{
		BaseURL: cfg.Agent.BaseURL,
		AppName: cfg.Agent.AppName,
		Timeout: cfg.Agent.Timeout,
	}, nil, logger)
	if err != nil {
		return err
	}
	sessions := agent.NewMemorySessionStore(cfg.Agent.SessionTTL)
	svc := agent.NewServiceWithClient(sessions, client, logger)

	if cfg.Agent.Warmup {
		go svc.Warmup(ctx)
	}

	hub := feed.NewHub(logger)
	defer hub.Close()

	gw := gateway.New(svc, repo, hub, logger)
	monitor := health.NewMonitor(repo, health.DefaultProbeInterval, logger)

	routes := api.RouterConfig{
		Gateway:             gw,
		History:             repo,
		WhatsAppVerifyToken: cfg.WhatsApp.VerifyToken,
		Feed:                feed.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment(), logger),
		Ready:               monitor,
		AllowedOrigins:      middleware.AllowedOrigins(cfg.FrontendURL, cfg.IsDevelopment()),
		IsDev:               cfg.IsDevelopment(),
		Logger:              logger,
	}

	if cfg.TelegramEnabled() {
		tg := channel.NewTelegramClient(cfg.Telegram.APIBase, cfg.Telegram.BotToken, nil, logger)
		routes.TelegramToken = cfg.Telegram.BotToken
		routes.TelegramSender = tg
		if cfg.Telegram.WebhookURL != "" {
			res, err := tg.SetWebhook(ctx, cfg.Telegram.WebhookURL)
			if err != nil {
				slog.Warn("Failed to set Telegram webhook", "error", err)
			} else {
				slog.Info("Telegram webhook set", "ok", res.OK, "description", res.Description)
			}
		}
	} else {
		slog.Info("Telegram channel disabled (TELEGRAM_BOT_TOKEN not set)")
	}

	if cfg.WhatsApp.PhoneNumberID != "" && cfg.WhatsApp.AccessToken != "" {
		routes.WhatsAppSender = channel.NewWhatsAppClient(cfg.WhatsApp.GraphBase, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.AccessToken, nil, logger)
	} else {
		slog.Info("WhatsApp channel disabled (WHATSAPP_PHONE_NUMBER_ID or WHATSAPP_ACCESS_TOKEN not set)")
	}

	// Note: a cold verification makes two upstream calls, each up to the agent
	// timeout, before anything is written; the feed websocket hijacks its connection.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(routes),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.HTTPWriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	var grpcLis net.Listener
	if cfg.GRPCHealthAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return store.NewRetentionWorker(repo, cfg.History.Retention, store.DefaultRetentionInterval, logger).Run(gctx)
	})

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	if grpcLis != nil {
		grpcHealth := health.NewGRPCServer(monitor, logger)
		g.Go(func() error {
			return grpcHealth.Serve(gctx, grpcLis)
		})
	}

	// Wait for shutdown signal or a failed component.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}
