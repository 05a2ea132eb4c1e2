package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	httpadapter "github.com/takato23/venezia-sub004/internal/adapter/http"
	"github.com/takato23/venezia-sub004/internal/adapter/inventory"
	redisAdapter "github.com/takato23/venezia-sub004/internal/adapter/redis"
	"github.com/takato23/venezia-sub004/internal/adapter/repository"
	"github.com/takato23/venezia-sub004/internal/config"
	"github.com/takato23/venezia-sub004/internal/domain"
	"github.com/takato23/venezia-sub004/internal/ledger"
	"github.com/takato23/venezia-sub004/internal/notify"
	"github.com/takato23/venezia-sub004/internal/observability"
	"github.com/takato23/venezia-sub004/internal/usecase"
	"github.com/takato23/venezia-sub004/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("service", cfg.ServiceName),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Duration("reservation_ttl", cfg.ReservationTTL),
	)

	meterProvider := sdkmetric.NewMeterProvider()
	defer meterProvider.Shutdown(context.Background())
	otel.SetMeterProvider(meterProvider)

	metrics, err := observability.NewEngineMetrics(meterProvider.Meter(cfg.ServiceName))
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	var salesHistory *repository.PostgresSalesHistory
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to create database pool: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		logger.Info("database connection established")
		salesHistory = repository.NewPostgresSalesHistory(pool)
	} else {
		logger.Warn("database URL not configured, sales history and forecasts disabled")
	}

	var idempotencyStore usecase.IdempotencyStore
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("failed to parse Redis URL, idempotency disabled", slog.String("error", err.Error()))
		} else {
			redisClient = redis.NewClient(redisOpts)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.Warn("failed to connect to Redis, idempotency disabled", slog.String("error", err.Error()))
				redisClient.Close()
				redisClient = nil
			} else {
				logger.Info("Redis connection established")
				idempotencyStore = redisAdapter.NewIdempotencyStore(redisClient, "")
			}
		}
	} else {
		logger.Warn("Redis URL not configured, idempotency disabled")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	if idempotencyStore == nil {
		idempotencyStore = redisAdapter.NewNoopIdempotencyStore()
		logger.Warn("using no-op idempotency store")
	}

	stockLedger := ledger.New()

	remote := inventory.NewClient(cfg.InventoryServiceURL, inventory.NewH2CHTTPClient(cfg.SyncTimeout))

	managerOpts := usecase.ReservationManagerOpts{
		Mirror:         remote,
		Idempotency:    idempotencyStore,
		Metrics:        metrics,
		IdempotencyTTL: cfg.IdempotencyKeyTTL,
	}
	if salesHistory != nil {
		managerOpts.Sales = salesHistory
	}
	manager := usecase.NewReservationManager(stockLedger, logger.With("component", "reservation-manager"), managerOpts)

	thresholds := domain.AlertThresholds{
		Critical: cfg.CriticalThreshold,
		Low:      cfg.LowStockThreshold,
	}
	alertEngine := usecase.NewAlertEngine(stockLedger, thresholds)

	var salesProvider usecase.SalesHistoryProvider
	if salesHistory != nil {
		salesProvider = salesHistory
	}
	forecaster := usecase.NewForecaster(stockLedger, salesProvider, cfg.ForecastWindowDays)

	notifier := notify.NewLogNotifier(logger.With("component", "notifier"))

	scheduler := worker.NewSyncScheduler(
		stockLedger,
		remote,
		alertEngine,
		notifier,
		metrics,
		logger.With("component", "sync-scheduler"),
		cfg.SyncInterval,
		cfg.SyncTimeout,
	)

	handler := httpadapter.NewHandler(stockLedger, manager, alertEngine, forecaster, scheduler, logger)

	mux := http.NewServeMux()
	mux.Handle("/", httpadapter.LoggingMiddleware(logger)(handler.Router()))
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleReadyz(pool, redisClient, scheduler, logger))

	serverCfg := httpadapter.DefaultServerConfig(cfg.HTTPPort)
	// A manual sync trigger can hold the response for up to two remote
	// round trips.
	serverCfg.WriteTimeout = 3 * cfg.SyncTimeout
	server := httpadapter.NewServer(h2c.NewHandler(mux, &http2.Server{}), serverCfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Start(workerCtx)
	}()

	if cfg.ReservationTTL > 0 {
		sweeper := worker.NewReservationSweeper(
			stockLedger,
			manager,
			logger.With("component", "reservation-sweeper"),
			cfg.ReservationTTL,
			cfg.SweepInterval,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Start(workerCtx)
		}()
	}

	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("initiating graceful shutdown")

	workerCancel()
	wg.Wait()
	logger.Info("background workers stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	} else {
		logger.Info("server stopped")
	}

	return nil
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "serving"})
}

// handleReadyz checks Postgres and Redis (both optional, degraded mode
// allowed) and reports the sync scheduler state.
func handleReadyz(pool *pgxpool.Pool, redisClient *redis.Client, scheduler *worker.SyncScheduler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		dbStatus := "not_configured"
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				dbStatus = "degraded"
				logger.Warn("database health check failed", slog.String("error", err.Error()))
			} else {
				dbStatus = "healthy"
			}
		}

		redisStatus := "not_configured"
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				redisStatus = "degraded"
				logger.Warn("Redis health check failed", slog.String("error", err.Error()))
			} else {
				redisStatus = "healthy"
			}
		}

		syncStatus, _ := scheduler.Status()

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "ready",
			"database": dbStatus,
			"redis":    redisStatus,
			"sync":     string(syncStatus),
		})
	}
}
