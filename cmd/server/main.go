package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/kanban-assistant/internal/config"
	"github.com/benvon/kanban-assistant/internal/database"
	"github.com/benvon/kanban-assistant/internal/handlers"
	"github.com/benvon/kanban-assistant/internal/logger"
	"github.com/benvon/kanban-assistant/internal/middleware"
	"github.com/benvon/kanban-assistant/internal/queue"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/benvon/kanban-assistant/internal/services/auth"
	"github.com/benvon/kanban-assistant/internal/services/chat"
	"github.com/benvon/kanban-assistant/internal/services/chatlog"
	"github.com/benvon/kanban-assistant/internal/session"
	"github.com/benvon/kanban-assistant/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const (
	serviceName = "kanban-api"

	// apiTimeout bounds plain REST requests
	apiTimeout = 30 * time.Second
	// chatTurnTimeout bounds a server-side chat turn, which may call the gateway twice
	chatTurnTimeout = 3 * time.Minute

	sessionSweepInterval = 5 * time.Minute
	dlqGCInterval        = 1 * time.Hour
	dlqRetention         = 24 * time.Hour
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM gateway logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid server configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(cfg.LogEncoding, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(zapLogger); err != nil {
			log.Printf("failed to flush logs: %v", err)
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
		zap.Bool("chat_log_queue", cfg.RabbitMQURL != ""),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider *sdktrace.TracerProvider
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
			ServiceName:    serviceName,
			ServiceVersion: handlers.Version,
			Endpoint:       cfg.OTELEndpoint,
			Insecure:       true,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracerProvider = tp
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Connect to Redis for rate limiting
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Repositories
	taskRepo := database.NewTaskRepository(db)
	userRepo := database.NewUserRepository(db)
	chatLogRepo := database.NewChatLogRepository(db)

	// Chat log persistence goes through RabbitMQ when configured so a slow
	// database never delays a chat turn. Without a broker entries are written inline.
	var jobQueue *queue.RabbitMQQueue
	var recorder session.ChatLogger
	if cfg.RabbitMQURL != "" {
		jobQueue = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		recorder = chatlog.NewQueueRecorder(jobQueue)
	} else {
		recorder = chatlog.NewDirectRecorder(chatLogRepo)
	}

	// Services
	provider := ai.NewOpenAIProvider(ai.ProviderConfig{
		APIKey:    cfg.AIAPIKey,
		BaseURL:   cfg.AIBaseURL,
		Model:     cfg.AIModel,
		Timeout:   cfg.AITimeout,
		Logger:    zapLogger,
		DebugMode: debugMode,
	})
	chatService := chat.NewService(taskRepo, provider, recorder, zapLogger)
	verifier := auth.NewVerifier(auth.Config{
		Secret:  cfg.JWTSecret,
		JWKSURL: cfg.JWTJWKSURL,
		Issuer:  cfg.JWTIssuer,
	}, auth.NewJWKSManager())

	// Handlers
	authHandler := handlers.NewAuthHandler()
	taskHandler := handlers.NewTaskHandler(taskRepo, zapLogger, handlers.WithBoardNotifier(chatService))
	boardHandler := handlers.NewBoardHandler(taskRepo, zapLogger)
	chatHandler := handlers.NewChatHandler(chatService, zapLogger)
	relayHandler := handlers.NewRelayHandler(provider, zapLogger)

	healthChecker := handlers.NewHealthChecker().
		AddCheck("database", db.PingContext).
		AddCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	if jobQueue != nil {
		healthChecker.AddCheck("rabbitmq", jobQueue.HealthCheck)
	} else {
		healthChecker.AddCheck("rabbitmq", nil)
	}

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit, "api")
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	chatRateLimitMW, err := middleware.RateLimit(redisClient, cfg.ChatRateLimit, "chat")
	if err != nil {
		zapLogger.Fatal("failed_to_create_chat_rate_limiter", zap.Error(err))
	}
	authMW := middleware.Auth(verifier, userRepo, zapLogger)

	// Setup router
	r := mux.NewRouter()

	// Middleware registered first wraps outermost and runs first
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName))
		zapLogger.Info("otel_middleware_enabled")
	}
	// 1. Request ID so every later layer can log it
	r.Use(middleware.RequestID)
	// 2. Security headers on all responses
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// 3. CORS (handles preflight before anything else can reject it)
	r.Use(middleware.CORS(cfg.FrontendURL))
	// 4. Request size limits
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	// 5. Content-Type validation for POST/PATCH/PUT requests
	r.Use(middleware.ContentType)
	// 6. Error handler (catches panics)
	r.Use(middleware.ErrorHandler(zapLogger))
	// 7. Audit logging for security events
	r.Use(middleware.Audit(zapLogger))
	// 8. Logging (innermost)
	r.Use(middleware.Logging(zapLogger))
	// Timeouts are applied per subrouter: the relay streams and must not be buffered.

	// Public routes
	healthChecker.RegisterRoutes(r)

	openAPIPath := filepath.Join("api", "openapi", "openapi.yaml")
	if openAPIHandler, err := handlers.LoadOpenAPIHandler(openAPIPath); err != nil {
		zapLogger.Warn("openapi_spec_unavailable", zap.String("path", openAPIPath), zap.Error(err))
	} else {
		openAPIHandler.RegisterRoutes(r)
	}

	// LLM relay (protected, streaming, no request timeout)
	relayRouter := r.PathPrefix("/functions/v1").Subrouter()
	relayRouter.Use(authMW)
	relayRouter.Use(chatRateLimitMW)
	relayHandler.RegisterRoutes(relayRouter)

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// Server-side chat turns fan out to the gateway
	chatRouter := apiRouter.PathPrefix("").Subrouter()
	chatRouter.Use(authMW)
	chatRouter.Use(chatRateLimitMW)
	chatRouter.Use(middleware.Timeout(chatTurnTimeout))
	chatHandler.RegisterRoutes(chatRouter)

	protectedRouter := apiRouter.PathPrefix("").Subrouter()
	protectedRouter.Use(authMW)
	protectedRouter.Use(rateLimitMW)
	protectedRouter.Use(middleware.Timeout(apiTimeout))
	authHandler.RegisterRoutes(protectedRouter)
	boardHandler.RegisterRoutes(protectedRouter)
	taskHandler.RegisterRoutes(protectedRouter.PathPrefix("/tasks").Subrouter())

	// Catch-all OPTIONS handler for preflight requests. CORS has already
	// written the headers by the time this runs.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// WriteTimeout is left unset: relay streams stay open for as long as the
	// gateway keeps sending, and REST routes are bounded by middleware.Timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go chatService.RunJanitor(bgCtx, sessionSweepInterval, chat.DefaultMaxIdle)

	// Dead-lettered chat log entries are kept for a day
	if jobQueue != nil {
		dlqGC := queue.NewGarbageCollector(jobQueue, dlqGCInterval, dlqRetention, zapLogger)
		go func() {
			if err := dlqGC.Start(bgCtx); err != nil && err != context.Canceled {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", dlqGCInterval),
			zap.Duration("retention", dlqRetention),
		)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries with exponential backoff to ride out broker startup
func connectRabbitMQ(url string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}
