// Handoff Chat - customer service chat with human escalation flagging.
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

	"github.com/ashureev/handoff-chat/internal/api"
	"github.com/ashureev/handoff-chat/internal/chat"
	"github.com/ashureev/handoff-chat/internal/config"
	"github.com/ashureev/handoff-chat/internal/health"
	"github.com/ashureev/handoff-chat/internal/identity"
	"github.com/ashureev/handoff-chat/internal/middleware"
	"github.com/ashureev/handoff-chat/internal/provider"
	"github.com/ashureev/handoff-chat/internal/session"
	"github.com/ashureev/handoff-chat/internal/store"
	"github.com/ashureev/handoff-chat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

const ttlSweepInterval = 5 * time.Minute

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

	logger = newLogger(cfg.LogLevel, cfg.IsDevelopment())
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"provider", cfg.Chat.Provider,
		"priming", cfg.Chat.PrimingMode,
	)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	completion := newProvider(cfg, logger)
	if checker, ok := completion.(provider.CredentialChecker); ok {
		if missing := checker.MissingCredential(); missing != "" {
			slog.Warn("Completion provider credential not set; chat turns will ask for it", "variable", missing)
		}
	}

	priming, err := session.ParsePrimingMode(cfg.Chat.PrimingMode)
	if err != nil {
		slog.Error("Invalid priming mode", "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(completion, session.Options{Priming: priming, Logger: logger})

	conversationLogger, err := chat.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	registry := chat.NewRegistry(cfg.OpenAI.DefaultModel)

	// Initialize handlers.
	chatHandler := chat.NewHandler(sessions, registry, repo, conversationLogger, cfg)
	wsHandler := chat.NewWebSocketHandler(chatHandler, cfg.FrontendURL, cfg.IsDevelopment())
	escalationHandler := api.NewEscalationHandler(repo, cfg.OperatorToken)
	if cfg.OperatorToken == "" {
		slog.Warn("OPERATOR_TOKEN not set; escalation queue is unauthenticated")
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins(), identity.SessionHeaderName, "Authorization"))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	chatHandler.RegisterRoutes(r)
	escalationHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Websocket connections are long-lived, so there is no WriteTimeout;
	// provider calls are bounded by OPENAI_REQUEST_TIMEOUT instead.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background workers.
	chat.StartTTLWorker(ctx, registry, repo, cfg.SessionTTL, ttlSweepInterval)
	chatHandler.RateLimiter().StartEviction(ctx)

	var healthServer *health.Server
	if cfg.GRPCHealthPort != "" {
		healthServer = health.NewServer(repo, completion, health.DefaultConfig(), logger)
		healthServer.Run(ctx)
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "port", cfg.GRPCHealthPort, "error", err)
			os.Exit(1)
		}
		go func() {
			if err := healthServer.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if healthServer != nil {
		healthServer.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server stopped successfully")
}

func newProvider(cfg *config.Config, logger *slog.Logger) provider.Provider {
	if cfg.Chat.Provider == "scripted" {
		slog.Info("Using scripted completion provider")
		return provider.NewScripted()
	}
	return provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.RequestTimeout,
	}, logger)
}
