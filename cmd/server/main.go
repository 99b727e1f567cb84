/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift allowance server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file, .env, SHIFT_* variables), then flags
  2. Initialize zap logger
  3. Initialize SQLite store
  4. Connect Redis for the latest-month cache (optional)
  5. Create service, API handler and router
  6. Start the latest-month refresher
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file (.yaml, .yml, .toml or .json)
  -port    HTTP server port (overrides server.addr)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for in-memory database
  -redis   Redis address (overrides redis.addr)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresher
  2. Stop accepting new connections
  3. Wait for active requests to complete (shutdown_timeout)
  4. Close Redis and database connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/allowance.db"

  # Run with in-memory database and demo scenarios
  SHIFT_ENABLE_SCENARIOS=true ./server -db=":memory:"

  # Share the latest-month cache between replicas
  ./server -config=shift.yaml -redis=localhost:6379

SEE ALSO:
  - config/config.go: Settings and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/api"
	"github.com/warp/shift-allowance/config"
	"github.com/warp/shift-allowance/service"
	"github.com/warp/shift-allowance/store/rediscache"
	"github.com/warp/shift-allowance/store/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Config file (.yaml, .toml or .json)")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	redisAddr := flag.String("redis", "", "Redis address for the latest-month cache")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Addr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Latest-month cache
	cache, closeCache := newLatestMonthCache(cfg.Redis, logger)
	defer closeCache()

	svc := service.New(store, service.Options{
		Cache:            cache,
		Logger:           logger,
		Aliases:          service.ClientAliases(cfg.Allowance.ClientAliases),
		StrictShiftTypes: cfg.Allowance.StrictShiftTypes,
	})

	// Initialize handler and router
	handler := api.NewHandler(store, svc, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		EnableScenarios: cfg.Server.EnableScenarios,
	})

	refresher := api.NewLatestMonthRefresher(svc, logger)
	refresher.Interval = cfg.Refresh.IntervalDuration()
	refresher.Enabled = !cfg.Refresh.Disabled
	refresher.Start()

	read, write, idle, shutdown := cfg.Server.Timeouts()
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}

	// Start server in goroutine
	go func() {
		logger.Info("🚀 Server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("env", cfg.Environment),
			zap.Bool("scenarios", cfg.Server.EnableScenarios),
		)
		logger.Info("📊 API available under /api")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	refresher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newLatestMonthCache returns the Redis cache when configured and reachable,
// otherwise the in-process cache.
func newLatestMonthCache(rc config.RedisConfig, logger *zap.Logger) (allowance.LatestMonthCache, func()) {
	if !rc.Enabled() {
		return allowance.NewMemoryCache(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, using in-process latest-month cache",
			zap.String("addr", rc.Addr), zap.Error(err))
		_ = rdb.Close()
		return allowance.NewMemoryCache(), func() {}
	}

	logger.Info("Connected to Redis", zap.String("addr", rc.Addr))
	cache := rediscache.NewLatestMonthCache(rdb, rc.Key, rc.TTLDuration(), logger)
	return cache, func() { _ = rdb.Close() }
}
