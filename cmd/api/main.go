// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lydia-app/chat-engine/internal/config"
	"github.com/lydia-app/chat-engine/internal/handler"
	"github.com/lydia-app/chat-engine/internal/list"
	"github.com/lydia-app/chat-engine/internal/llm"
	"github.com/lydia-app/chat-engine/internal/middleware"
	"github.com/lydia-app/chat-engine/internal/notify"
	"github.com/lydia-app/chat-engine/internal/session"
	"github.com/lydia-app/chat-engine/internal/store"
	"github.com/lydia-app/chat-engine/internal/store/local"
	"github.com/lydia-app/chat-engine/internal/store/memory"
	"github.com/lydia-app/chat-engine/internal/store/remote"
	"github.com/lydia-app/chat-engine/internal/timing"
	"github.com/lydia-app/chat-engine/pkg/logger"
	"github.com/lydia-app/chat-engine/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting chat engine")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "lydia-chat-engine", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Local draft store for anonymous sessions and the unread badge cache
	drafts, err := local.New(cfg.DataDir)
	if err != nil {
		log.Error("failed to open draft store", zap.Error(err))
		os.Exit(1)
	}

	// Conversation store: NATS-backed when configured, in-memory otherwise
	var (
		convStore  store.ConversationStore
		natsClient *remote.Client
		notifier   notify.Notifier
	)
	if cfg.NATSURL != "" {
		natsClient, err = remote.Connect(ctx, remote.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		convStore, err = remote.New(ctx, natsClient, log)
		if err != nil {
			log.Error("failed to initialize remote store", zap.Error(err))
			os.Exit(1)
		}
		notifier = notify.NewNATSNotifier(natsClient, log)
	} else {
		log.Warn("NATS_URL empty, using in-memory conversation store")
		convStore = memory.New()
		notifier = notify.NewRecorder()
	}

	// AI completion collaborator. Missing credentials degrade into the
	// fallback reply rather than failing startup.
	var aiClient llm.Client
	provider := llm.Provider(cfg.DefaultLLM)
	apiKey := cfg.AnthropicAPIKey
	if provider == llm.ProviderOpenAI {
		apiKey = cfg.OpenAIAPIKey
	}
	aiClient, err = llm.NewClient(provider, apiKey)
	if err != nil {
		log.Warn("AI collaborator unavailable, replies will use the fallback message", zap.Error(err))
		aiClient = llm.Unavailable{Err: err}
	}

	// Conversation list managers, one live change feed per user
	lists := list.NewRegistry(convStore, drafts, log)
	defer lists.Close()

	// Session registry
	registry := session.NewRegistry(session.Deps{
		Store:     convStore,
		Drafts:    drafts,
		AI:        aiClient,
		Timing:    timing.NewEngine(timing.NewScheduler()),
		Notifier:  notifier,
		Logger:    log,
		DemoQuota: cfg.DemoMessageQuota,
	})
	defer registry.CloseAll()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	scenarioHandler := handler.NewScenarioHandler()
	conversationHandler := handler.NewConversationHandler(lists, log)
	messageHandler := handler.NewMessageHandler(registry, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Identity(cfg.JWTSecret))
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes. Identity is optional: anonymous callers get the
	// local-only demo experience.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/scenarios", scenarioHandler.List)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Get("/unread-badge", conversationHandler.UnreadBadge)

			r.Route("/{id}", func(r chi.Router) {
				// Sessions
				r.Post("/open", messageHandler.Open)
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Post("/read", messageHandler.Read)
				r.Post("/close", messageHandler.CloseSession)
				r.Put("/preferences", messageHandler.UpdatePreferences)

				// List mutations require a signed-in user
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireIdentity)
					r.Post("/pin", conversationHandler.Pin)
					r.Post("/unpin", conversationHandler.Unpin)
					r.Post("/archive", conversationHandler.Archive)
					r.Post("/unarchive", conversationHandler.Unarchive)
					r.Post("/mute", conversationHandler.Mute)
					r.Delete("/", conversationHandler.Delete)
				})
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
