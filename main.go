package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"qna-chatbot/backend/ai"
	chatapi "qna-chatbot/backend/chat/api"
	chatgrpc "qna-chatbot/backend/chat/grpc"
	"qna-chatbot/backend/chat/service"
	"qna-chatbot/backend/chat/ws"
	"qna-chatbot/backend/pkg/config"
	"qna-chatbot/backend/pkg/di"
	"qna-chatbot/backend/pkg/errors"
	"qna-chatbot/backend/pkg/health"
	"qna-chatbot/backend/pkg/logger"
	"qna-chatbot/backend/pkg/middleware"
	"qna-chatbot/backend/pkg/secrets"
	"qna-chatbot/backend/pkg/validator"
	"qna-chatbot/backend/shared/observability"
)

const openAPISchemaPath = "api/openapi.yaml"

func main() {
	cfg := config.New()

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		JSON:   cfg.Logging.Format == "json",
		Output: os.Stderr,
	})

	// Secrets manager (Vault with env fallback) supplies the completion API
	// keys and the encryption pepper when they are not set in the environment.
	if err := secrets.Init(log); err != nil {
		log.Warn("Secrets manager unavailable, falling back to environment", "error", err.Error())
	}
	ctx := context.Background()
	cfg.Completion.PrimaryKey = secrets.GetSecretWithDefault(ctx, "completion_api_key_primary", cfg.Completion.PrimaryKey)
	cfg.Completion.SecondaryKey = secrets.GetSecretWithDefault(ctx, "completion_api_key_secondary", cfg.Completion.SecondaryKey)
	cfg.Crypto.KeyPepper = secrets.GetSecretWithDefault(ctx, "key_pepper", cfg.Crypto.KeyPepper)

	db, err := config.NewDB()
	if err != nil {
		log.Error("Failed to connect to database", "error", err.Error())
		os.Exit(1)
	}

	container, err := di.New(db, cfg, log)
	if err != nil {
		log.Error("Failed to build application container", "error", err.Error())
		os.Exit(1)
	}

	// Tracing and the /metrics endpoint
	shutdownTracing := observability.SetupTracing("qna-chatbot")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(log))
	engine.Use(errors.ErrorHandler())

	if apiValidator, err := validator.NewOpenAPIValidator(openAPISchemaPath); err != nil {
		log.Warn("OpenAPI schema not loaded, request validation disabled", "error", err.Error())
	} else {
		engine.Use(apiValidator.Middleware())
	}

	// Send endpoints are limited per user, everything else per IP
	limiter := middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			if userID := c.GetString("userId"); userID != "" {
				return userID
			}
			return c.ClientIP()
		},
	})

	var hub *ws.Hub
	var notifier service.Notifier
	if cfg.Features.EnableWebSockets {
		hub = ws.NewHub(log)
		notifier = hub
	}

	chats := service.NewChatService(container.ChatRepository, container.KeyCache, container.ChatListCache, cfg.Crypto.KeyPepper, log)
	sessions := service.NewSessionController(chats, container.Completer, notifier, ai.DefaultModel().Backend, ai.DefaultModel().ID, log)

	handler := chatapi.NewChatHandler(chats, sessions)
	chatapi.RegisterRoutes(engine, handler, container.JWTService, limiter, cfg.Features.EnableGuestSessions)

	if cfg.Features.EnableWebSockets {
		engine.GET("/ws", chatapi.AuthMiddleware(container.JWTService), func(c *gin.Context) {
			hub.ServeWs(c, c.GetString("userId"))
		})
	}

	// Health surface: liveness plus component checks
	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error { return config.TestConnection(db) })
	if container.RedisCache != nil {
		checker.RegisterCheck("redis", func() (health.Status, string, error) {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := container.RedisCache.Ping(pingCtx); err != nil {
				return health.StatusDegraded, "Chat list cache unreachable, serving from database", err
			}
			return health.StatusUp, "Chat list cache is reachable", nil
		})
	}
	checker.RegisterAPICheck("completion", cfg.Completion.ServiceURL+"/health", nil)
	checker.Start()
	engine.GET("/api/health", gin.WrapF(checker.HTTPHandler()))

	if cfg.Features.EnableGRPCHealth {
		go func() {
			if err := chatgrpc.StartHealthServer(cfg.GRPC.Port, log); err != nil {
				log.Error("gRPC health server stopped", "error", err.Error())
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("Server listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", "error", err.Error())
	}
	log.Info("Server shutdown complete")
}
