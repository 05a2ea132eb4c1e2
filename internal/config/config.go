package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	ServiceName         string        `env:"SERVICE_NAME,default=stock-engine"`
	LogLevel            string        `env:"LOG_LEVEL,default=info"`
	HTTPPort            int           `env:"HTTP_PORT,default=8085"`
	InventoryServiceURL string        `env:"INVENTORY_SERVICE_URL,required"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	RedisURL            string        `env:"REDIS_URL"`
	SyncInterval        time.Duration `env:"SYNC_INTERVAL,default=5m"`
	SyncTimeout         time.Duration `env:"SYNC_TIMEOUT,default=10s"`
	LowStockThreshold   int           `env:"LOW_STOCK_THRESHOLD,default=10"`
	CriticalThreshold   int           `env:"CRITICAL_STOCK_THRESHOLD,default=5"`
	ForecastWindowDays  int           `env:"FORECAST_WINDOW_DAYS,default=7"`
	ReservationTTL      time.Duration `env:"RESERVATION_TTL,default=0"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	IdempotencyKeyTTL   time.Duration `env:"IDEMPOTENCY_KEY_TTL,default=24h"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SyncInterval < 30*time.Second || c.SyncInterval > time.Hour {
		return fmt.Errorf("sync interval must be between 30 seconds and 1 hour, got %v", c.SyncInterval)
	}

	if c.SyncTimeout < time.Second || c.SyncTimeout >= c.SyncInterval {
		return fmt.Errorf("sync timeout must be at least 1 second and below the sync interval, got %v", c.SyncTimeout)
	}

	if c.CriticalThreshold < 1 || c.CriticalThreshold >= c.LowStockThreshold {
		return fmt.Errorf("critical threshold must be at least 1 and below the low threshold, got critical=%d low=%d",
			c.CriticalThreshold, c.LowStockThreshold)
	}

	if c.ForecastWindowDays < 1 || c.ForecastWindowDays > 90 {
		return fmt.Errorf("forecast window must be between 1 and 90 days, got %d", c.ForecastWindowDays)
	}

	// Zero disables reservation expiry entirely.
	if c.ReservationTTL != 0 && c.ReservationTTL < time.Minute {
		return fmt.Errorf("reservation TTL must be zero or at least 1 minute, got %v", c.ReservationTTL)
	}

	if c.ReservationTTL != 0 && (c.SweepInterval < 10*time.Second || c.SweepInterval > 5*time.Minute) {
		return fmt.Errorf("sweep interval must be between 10 seconds and 5 minutes, got %v", c.SweepInterval)
	}

	return nil
}
