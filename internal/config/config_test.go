package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after test
	originalInventoryURL := os.Getenv("INVENTORY_SERVICE_URL")
	defer func() {
		os.Setenv("INVENTORY_SERVICE_URL", originalInventoryURL)
	}()

	tests := []struct {
		name        string
		envVars     map[string]string
		wantErr     bool
		checkConfig func(*testing.T, *Config)
	}{
		{
			name: "loads required fields successfully",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
			},
			wantErr: false,
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.InventoryServiceURL != "http://localhost:8080" {
					t.Errorf("InventoryServiceURL = %q, want %q", cfg.InventoryServiceURL, "http://localhost:8080")
				}
			},
		},
		{
			name: "uses default values",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
			},
			wantErr: false,
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.ServiceName != "stock-engine" {
					t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "stock-engine")
				}
				if cfg.HTTPPort != 8085 {
					t.Errorf("HTTPPort = %d, want %d", cfg.HTTPPort, 8085)
				}
				if cfg.SyncInterval != 5*time.Minute {
					t.Errorf("SyncInterval = %v, want %v", cfg.SyncInterval, 5*time.Minute)
				}
				if cfg.SyncTimeout != 10*time.Second {
					t.Errorf("SyncTimeout = %v, want %v", cfg.SyncTimeout, 10*time.Second)
				}
				if cfg.LowStockThreshold != 10 {
					t.Errorf("LowStockThreshold = %d, want %d", cfg.LowStockThreshold, 10)
				}
				if cfg.CriticalThreshold != 5 {
					t.Errorf("CriticalThreshold = %d, want %d", cfg.CriticalThreshold, 5)
				}
				if cfg.ForecastWindowDays != 7 {
					t.Errorf("ForecastWindowDays = %d, want %d", cfg.ForecastWindowDays, 7)
				}
				if cfg.ReservationTTL != 0 {
					t.Errorf("ReservationTTL = %v, want 0", cfg.ReservationTTL)
				}
				if cfg.IdempotencyKeyTTL != 24*time.Hour {
					t.Errorf("IdempotencyKeyTTL = %v, want %v", cfg.IdempotencyKeyTTL, 24*time.Hour)
				}
			},
		},
		{
			name: "custom values override defaults",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL":    "http://localhost:8080",
				"HTTP_PORT":                "9000",
				"SYNC_INTERVAL":            "1m",
				"SYNC_TIMEOUT":             "5s",
				"LOW_STOCK_THRESHOLD":      "20",
				"CRITICAL_STOCK_THRESHOLD": "8",
				"RESERVATION_TTL":          "15m",
				"SWEEP_INTERVAL":           "30s",
			},
			wantErr: false,
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.HTTPPort != 9000 {
					t.Errorf("HTTPPort = %d, want %d", cfg.HTTPPort, 9000)
				}
				if cfg.SyncInterval != time.Minute {
					t.Errorf("SyncInterval = %v, want %v", cfg.SyncInterval, time.Minute)
				}
				if cfg.LowStockThreshold != 20 {
					t.Errorf("LowStockThreshold = %d, want %d", cfg.LowStockThreshold, 20)
				}
				if cfg.CriticalThreshold != 8 {
					t.Errorf("CriticalThreshold = %d, want %d", cfg.CriticalThreshold, 8)
				}
				if cfg.ReservationTTL != 15*time.Minute {
					t.Errorf("ReservationTTL = %v, want %v", cfg.ReservationTTL, 15*time.Minute)
				}
			},
		},
		{
			name:    "fails when INVENTORY_SERVICE_URL is missing",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "fails when sync interval is too short",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
				"SYNC_INTERVAL":         "5s",
			},
			wantErr: true,
		},
		{
			name: "fails when sync interval is too long",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
				"SYNC_INTERVAL":         "2h",
			},
			wantErr: true,
		},
		{
			name: "fails when sync timeout exceeds the interval",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
				"SYNC_INTERVAL":         "1m",
				"SYNC_TIMEOUT":          "2m",
			},
			wantErr: true,
		},
		{
			name: "fails when critical threshold is not below low",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL":    "http://localhost:8080",
				"LOW_STOCK_THRESHOLD":      "5",
				"CRITICAL_STOCK_THRESHOLD": "5",
			},
			wantErr: true,
		},
		{
			name: "fails when forecast window is out of range",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
				"FORECAST_WINDOW_DAYS":  "120",
			},
			wantErr: true,
		},
		{
			name: "fails when reservation TTL is sub-minute",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
				"RESERVATION_TTL":       "30s",
			},
			wantErr: true,
		},
		{
			name: "fails when sweep interval is invalid with TTL on",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
				"RESERVATION_TTL":       "15m",
				"SWEEP_INTERVAL":        "1s",
			},
			wantErr: true,
		},
		{
			name: "sweep interval is ignored when TTL is off",
			envVars: map[string]string{
				"INVENTORY_SERVICE_URL": "http://localhost:8080",
				"SWEEP_INTERVAL":        "1s",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all relevant env vars
			os.Clearenv()

			// Set test env vars
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := Load(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkConfig != nil {
				tt.checkConfig(t, cfg)
			}
		})
	}
}
