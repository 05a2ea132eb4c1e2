package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/takato23/venezia-sub004/internal/domain"
)

// EngineMetrics exposes the engine's operational signals. A nil
// *EngineMetrics is valid everywhere it is consumed and disables
// recording.
type EngineMetrics struct {
	reserveLatency    metric.Float64Histogram
	reserveRejections metric.Int64Counter
	syncCycles        metric.Int64Counter
	syncDuration      metric.Float64Histogram
	activeAlerts      metric.Int64ObservableGauge
	dependencyUp      metric.Int64ObservableGauge

	mu               sync.RWMutex
	alertCounts      map[domain.AlertLevel]int
	dependencyStatus map[string]bool
}

func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	m := &EngineMetrics{
		alertCounts:      make(map[domain.AlertLevel]int),
		dependencyStatus: make(map[string]bool),
	}

	var err error

	m.reserveLatency, err = meter.Float64Histogram(
		"stock_reserve_latency_seconds",
		metric.WithDescription("Reservation admission time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.reserveRejections, err = meter.Int64Counter(
		"stock_reserve_rejections_total",
		metric.WithDescription("Total reservations rejected for insufficient stock"),
	)
	if err != nil {
		return nil, err
	}

	m.syncCycles, err = meter.Int64Counter(
		"stock_sync_cycles_total",
		metric.WithDescription("Total inventory reconciliation cycles"),
	)
	if err != nil {
		return nil, err
	}

	m.syncDuration, err = meter.Float64Histogram(
		"stock_sync_duration_seconds",
		metric.WithDescription("Reconciliation cycle duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.activeAlerts, err = meter.Int64ObservableGauge(
		"stock_alerts_active",
		metric.WithDescription("Active stock alerts by level"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for level, count := range m.alertCounts {
				o.Observe(int64(count), metric.WithAttributes(attribute.String("level", string(level))))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	m.dependencyUp, err = meter.Int64ObservableGauge(
		"dependency_up",
		metric.WithDescription("Dependency health status (1=up, 0=down)"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for name, up := range m.dependencyStatus {
				val := int64(0)
				if up {
					val = 1
				}
				o.Observe(val, metric.WithAttributes(attribute.String("dependency", name)))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *EngineMetrics) ObserveReserve(ctx context.Context, duration time.Duration, admitted bool) {
	m.reserveLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("admitted", admitted)),
	)
}

func (m *EngineMetrics) RecordRejection(ctx context.Context, productID string) {
	m.reserveRejections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("product_id", productID)),
	)
}

func (m *EngineMetrics) RecordSyncCycle(ctx context.Context, duration time.Duration, success bool) {
	m.syncCycles.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("success", success)),
	)
	m.syncDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)),
	)
}

// SetActiveAlerts replaces the alert gauge state with the latest
// evaluation snapshot.
func (m *EngineMetrics) SetActiveAlerts(alerts []domain.StockAlert) {
	counts := make(map[domain.AlertLevel]int)
	for _, alert := range alerts {
		counts[alert.Level]++
	}
	// Levels that vanished must report zero, not disappear.
	for _, level := range []domain.AlertLevel{domain.AlertLevelLow, domain.AlertLevelCritical, domain.AlertLevelOutOfStock} {
		if _, ok := counts[level]; !ok {
			counts[level] = 0
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertCounts = counts
}

func (m *EngineMetrics) SetDependencyStatus(name string, up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencyStatus[name] = up
}
