// Health chat conversation server.
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

	"github.com/ashureev/healthchat/internal/agent"
	"github.com/ashureev/healthchat/internal/api"
	"github.com/ashureev/healthchat/internal/config"
	"github.com/ashureev/healthchat/internal/identity"
	"github.com/ashureev/healthchat/internal/knowledge"
	"github.com/ashureev/healthchat/internal/llm"
	"github.com/ashureev/healthchat/internal/middleware"
	"github.com/ashureev/healthchat/internal/planner"
	"github.com/ashureev/healthchat/internal/probe"
	"github.com/ashureev/healthchat/internal/profile"
	"github.com/ashureev/healthchat/internal/research"
	"github.com/ashureev/healthchat/internal/retention"
	"github.com/ashureev/healthchat/internal/session"
	"github.com/ashureev/healthchat/internal/store"
	"github.com/ashureev/healthchat/internal/synth"
	"github.com/ashureev/healthchat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	seeded, err := store.SeedKnowledge(ctx, repo)
	if err != nil {
		slog.Error("Failed to seed knowledge base", "error", err)
		os.Exit(1)
	}
	slog.Info("Knowledge base ready", "seeded", seeded)

	gemini, err := llm.NewGemini(ctx, cfg.Models.GoogleAPIKey, cfg.Models.AnswerModel, logger)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}

	// External research is optional; without it the pipeline answers from
	// local knowledge only.
	var researcher agent.Researcher
	if cfg.ResearchEnabled() {
		sonar, err := research.NewSonar(research.SonarConfig{
			APIKey:  cfg.Models.SonarAPIKey,
			BaseURL: cfg.Models.SonarBaseURL,
			Model:   cfg.Models.SonarModel,
		})
		if err != nil {
			slog.Error("Failed to initialize research client", "error", err)
			os.Exit(1)
		}
		researcher = research.NewFanOut(sonar, cfg.Timeouts.Search, logger)
		slog.Info("External research enabled", "model", cfg.Models.SonarModel)
	} else {
		slog.Info("External research disabled (SONAR_API_KEY not set)")
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	topics := profile.NewTopicExtractor(cfg.Pipeline.TopicVocabulary)
	chatService, err := agent.NewService(agent.Dependencies{
		Sessions:    session.NewStore(),
		Profiles:    profile.NewManager(repo, topics, cfg.Timeouts.Persistence, logger),
		Planner:     planner.New(gemini, cfg.Models.PlannerModel, cfg.Timeouts.Model, logger),
		Researcher:  researcher,
		Retriever:   knowledge.NewRetriever(repo, cfg.Pipeline.RetrievalLimit, cfg.Timeouts.Retrieval, logger),
		Synthesizer: synth.New(gemini, cfg.Models.AnswerModel, cfg.Timeouts.Model, logger),
	}, agent.Options{
		Fallback:         cfg.DefaultResponse,
		ContextExchanges: cfg.Pipeline.ContextExchanges,
		ConversationLog:  conversationLogger,
		Logger:           logger,
	})
	if err != nil {
		slog.Error("Failed to initialize chat service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := chatService.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	tips := knowledge.NewTipService(repo, store.DefaultHealthTips, cfg.Timeouts.Retrieval, logger)

	// Initialize handlers.
	chatHandler := agent.NewHandler(chatService, repo, agent.HandlerConfig{
		AllowedOrigin:      cfg.FrontendURL,
		IsDev:              cfg.IsDevelopment(),
		PersistenceTimeout: cfg.Timeouts.Persistence,
		Logger:             logger,
	})
	baseHandler := api.NewHandler(tips, repo, cfg.Timeouts.Persistence, logger)
	healthHandler := api.NewHealthHandler(repo, api.Features{
		Chat:     true,
		WhatsApp: cfg.WhatsApp.Enabled,
		Tips:     true,
		Feedback: true,
		Research: cfg.ResearchEnabled(),
	}, cfg.Timeouts.Persistence)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL, cfg.IsDevelopment())))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Twilio calls the webhook server to server; it carries no cookie identity.
	if cfg.WhatsApp.Enabled {
		api.NewWhatsAppHandler(chatService, repo, cfg.Timeouts.Persistence, logger).RegisterRoutes(r)
		slog.Info("WhatsApp webhook enabled", "number", cfg.WhatsApp.PhoneNumber)
	}

	// Browser routes use identity middleware (no auth needed).
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))
		chatHandler.RegisterRoutes(r)
		baseHandler.RegisterRoutes(r)
		r.Handle("/*", web.SPAHandler())
	})

	// Create server.
	// Turns can take as long as the model timeout, so WriteTimeout leaves headroom.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2*cfg.Timeouts.Model + cfg.Timeouts.Search + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start retention worker.
	retentionDone := retention.StartWorker(ctx, repo, cfg.ChatHistory.Retention, cfg.ChatHistory.SweepInterval, logger)

	// Start gRPC health probe.
	var probeServer *probe.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC health probe", "error", err)
			os.Exit(1)
		}
		probeServer = probe.New(repo, 0, logger)
		go func() {
			if err := probeServer.Serve(lis); err != nil {
				slog.Error("gRPC health probe failed", "error", err)
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

	if probeServer != nil {
		probeServer.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-retentionDone

	slog.Info("Server stopped successfully")
}
