// ============================================================================
// Command bot runs the chat link shortener: the Telegram transport, the
// scheduled backups and the operator HTTP API, sharing one record store.
// ============================================================================
// STARTUP FLOW:
// 1. Configuration (.env, CONFIG_FILE, environment) and the JSON logger
// 2. Record store (memory, sqlite or postgres), optionally behind Redis
// 3. NATS publisher, shortening providers, Shortener and Assembler services
// 4. Rate limiters, shared through Redis when it is reachable
// 5. Telegram long polling, when BOT_TOKEN is set
// 6. Backup scheduler with its sinks (local dir, S3, operator chat)
// 7. Operator HTTP API with /metrics and health probes
// 8. SIGINT/SIGTERM: drain HTTP, stop polling and backups, close the store
//
// DEPENDENCY FLOW:
// Store → Shortener/Assembler → Bot (chat) and Handler (HTTP)
// ============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"shortlink-bot/internal/backup"
	"shortlink-bot/internal/bot"
	"shortlink-bot/internal/bot/telegram"
	"shortlink-bot/internal/config"
	"shortlink-bot/internal/events"
	httpHandler "shortlink-bot/internal/handler/http"
	"shortlink-bot/internal/provider"
	"shortlink-bot/internal/ratelimit"
	"shortlink-bot/internal/repository"
	"shortlink-bot/internal/repository/memory"
	"shortlink-bot/internal/repository/postgres"
	redisStore "shortlink-bot/internal/repository/redis"
	"shortlink-bot/internal/repository/sqlite"
	"shortlink-bot/internal/service"
	"shortlink-bot/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// ========================================================================
	// STEP 1: CONFIGURATION AND LOGGING
	// ========================================================================
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	defer appLogger.Close()

	appLogger.Info("Starting shortlink bot",
		"environment", cfg.App.Environment,
		"store", cfg.Store.Driver,
		"providers", cfg.Providers.Names,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// STEP 2: STORAGE (+ optional Redis cache)
	// ========================================================================
	// Redis is optional. When it is down the process keeps running with an
	// uncached store and in-process rate limits.
	//
	// Postgres migrations run inside openStore before the pool is built.
	// ========================================================================
	var redisClient *redis.Client
	if addr := cfg.Redis.RedisAddr(); addr != "" {
		redisClient, err = redisStore.InitRedis(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// the service runs without cache or shared limits
			appLogger.Warn("Redis unavailable, continuing without it", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLogger.Info("Redis connection established", "addr", addr)
		}
	}

	store, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to open record store", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		// Entries left by an earlier process may name records this store
		// does not hold (always so for the memory driver).
		cache := redisStore.NewCache(redisClient, cfg.Redis.CacheTTL)
		if err := cache.Clear(ctx); err != nil {
			appLogger.Warn("Failed to clear link cache", "error", err)
		}
		store = redisStore.NewCachedStore(store, cache, appLogger.Logger)
	}
	defer store.Close()

	// ========================================================================
	// STEP 3: EVENTS, PROVIDERS, SERVICES
	// ========================================================================
	var publisher events.Publisher = events.Nop{}
	if cfg.Events.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			appLogger.Warn("NATS unavailable, events disabled", "error", err)
		} else {
			publisher = natsPublisher
			appLogger.Info("Publishing link events", "url", cfg.Events.NATSURL)
		}
	}
	defer publisher.Close()

	providers, err := provider.Build(cfg.Providers.Names, provider.Options{
		Timeout:    cfg.Providers.Timeout,
		UserAgent:  cfg.Providers.UserAgent,
		HashDomain: cfg.Providers.HashDomain,
		Endpoints:  cfg.Providers.Endpoints,
	})
	if err != nil {
		appLogger.Error("Invalid provider configuration", "error", err)
		os.Exit(1)
	}

	shortener := service.NewShortener(
		providers,
		provider.NewFallback(cfg.Providers.FallbackDomain),
		store,
		publisher,
		appLogger.Logger,
		service.ShortenerOptions{
			Order:             service.Order(cfg.Providers.Order),
			StrictPersistence: cfg.Store.StrictPersistence,
		},
	)
	assembler := service.NewAssembler(store, publisher, appLogger.Logger)

	// ========================================================================
	// STEP 4: RATE LIMITING
	// ========================================================================
	// Chat users are keyed by Telegram id ("user:42"), HTTP callers by client
	// IP ("ip:10.0.0.7"). The two surfaces keep separate budgets.
	// ========================================================================
	var botLimiter, httpLimiter ratelimit.Limiter
	if cfg.App.RateLimitEnabled {
		botLimiter = newLimiter(redisClient, "bot", cfg.App.RateLimitPerMinute)
		httpLimiter = newLimiter(redisClient, "http", cfg.App.RateLimitPerMinute)
	}

	var wg sync.WaitGroup

	// ========================================================================
	// STEP 5: CHAT TRANSPORT
	// ========================================================================
	var transport *telegram.Transport
	if cfg.Bot.Token == "" {
		appLogger.Warn("BOT_TOKEN not set, chat transport disabled")
	} else {
		transport, err = telegram.Connect(cfg.Bot.Token, cfg.Bot.Debug, appLogger.Logger)
		if err != nil {
			appLogger.Error("Failed to start chat transport", "error", err)
			os.Exit(1)
		}

		chatBot := bot.New(transport, shortener, assembler, botLimiter, cfg.Bot.OwnerID, appLogger.Logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := transport.Run(ctx, chatBot); err != nil {
				appLogger.Error("Chat transport stopped", "error", err)
			}
		}()
	}

	// ========================================================================
	// STEP 6: SCHEDULED BACKUPS
	// ========================================================================
	if cfg.Backup.Enabled {
		sinks, err := buildSinks(ctx, cfg, transport)
		if err != nil {
			appLogger.Error("Failed to configure backup sinks", "error", err)
			os.Exit(1)
		}
		scheduler := backup.NewScheduler(assembler, cfg.Backup.Interval, appLogger.Logger, sinks...)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// ========================================================================
	// STEP 7: OPERATOR HTTP API
	// ========================================================================
	// MIDDLEWARE ORDER (outermost first):
	// Recovery → RequestID → Logging → Metrics → Auth → RateLimit → Timeout
	//
	// Auth guards /api/v1/* with OPERATOR_API_TOKEN. Config refuses a
	// non-loopback HTTP_HOST without a token; /health/* and /metrics stay open.
	// ========================================================================
	mux := http.NewServeMux()
	httpHandler.NewHandler(shortener, assembler, store, appLogger).Routes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	middlewares := []func(http.Handler) http.Handler{
		httpHandler.RecoveryMiddleware(appLogger.Logger),
		httpHandler.RequestIDMiddleware,
		httpHandler.LoggingMiddleware(appLogger.Logger),
		httpHandler.MetricsMiddleware,
		httpHandler.AuthMiddleware(cfg.Server.APIToken),
	}
	if httpLimiter != nil {
		middlewares = append(middlewares, httpHandler.RateLimitMiddleware(httpLimiter))
	}
	middlewares = append(middlewares, httpHandler.TimeoutMiddleware(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      httpHandler.Chain(middlewares...)(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + 5*time.Second,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("HTTP server starting", "address", server.Addr, "auth", cfg.Server.APIToken != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	// ========================================================================
	// STEP 8: GRACEFUL SHUTDOWN
	// ========================================================================
	// Cancelling ctx stops polling and the backup scheduler; Shutdown lets
	// in-flight HTTP requests finish within 30s. Deferred closes run last.
	// ========================================================================
	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server forced to shutdown", "error", err)
	}
	wg.Wait()

	appLogger.Info("Shutdown complete")
}

// openStore builds the configured record store, running migrations for postgres
func openStore(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (repository.RecordStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		migrator, err := postgres.NewMigrator(cfg.Store.DatabaseURL, appLogger.Logger)
		if err != nil {
			return nil, err
		}
		if err := migrator.Up(); err != nil {
			migrator.Close()
			return nil, err
		}
		migrator.Close()

		db, err := postgres.InitDB(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns, cfg.Store.ConnMaxLifetime)
		if err != nil {
			return nil, err
		}
		appLogger.Info("Database connection established")
		return postgres.NewStore(db), nil

	case "sqlite":
		store, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		appLogger.Info("SQLite store opened", "path", cfg.Store.SQLitePath)
		return store, nil

	case "memory":
		appLogger.Warn("Using in-memory store, links are lost on restart")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// newLimiter shares counters through Redis when available, otherwise keeps them in process
func newLimiter(client *redis.Client, surface string, perMinute int) ratelimit.Limiter {
	if client != nil {
		return ratelimit.NewRedisLimiter(client, surface, perMinute, time.Minute)
	}
	return ratelimit.NewLocalLimiter(perMinute, time.Minute)
}

func buildSinks(ctx context.Context, cfg *config.Config, transport *telegram.Transport) ([]backup.Sink, error) {
	sinks := []backup.Sink{backup.NewDirSink(cfg.Backup.Dir, cfg.Backup.Keep)}

	if cfg.Backup.S3Bucket != "" {
		s3Sink, err := backup.NewS3Sink(ctx, backup.S3Options{
			Bucket:    cfg.Backup.S3Bucket,
			Prefix:    cfg.Backup.S3Prefix,
			Region:    cfg.Backup.Region,
			Endpoint:  cfg.Backup.S3Endpoint,
			AccessKey: cfg.Backup.S3AccessKey,
			SecretKey: cfg.Backup.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3Sink)
	}

	if transport != nil && cfg.Bot.OwnerID != 0 {
		sinks = append(sinks, backup.NewNotifySink(transport, cfg.Bot.OwnerID))
	}
	return sinks, nil
}
