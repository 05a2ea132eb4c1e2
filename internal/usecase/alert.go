package usecase

import (
	"fmt"
	"time"

	"github.com/takato23/venezia-sub004/internal/domain"
	"github.com/takato23/venezia-sub004/internal/ledger"
)

// AlertEngine derives operator alerts from current availability. Each
// Evaluate recomputes the full set from scratch; there is no incremental
// state, so the result is a pure function of the ledger snapshot and the
// configured thresholds.
type AlertEngine struct {
	ledger     *ledger.Ledger
	thresholds domain.AlertThresholds

	now func() time.Time
}

func NewAlertEngine(l *ledger.Ledger, thresholds domain.AlertThresholds) *AlertEngine {
	if thresholds.Critical <= 0 && thresholds.Low <= 0 {
		thresholds = domain.DefaultAlertThresholds()
	}
	return &AlertEngine{
		ledger:     l,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate returns the alert snapshot for every tracked product. Callers
// decide how to surface it; levels with Immediate() true are meant for
// the Notifier right away.
func (e *AlertEngine) Evaluate() []domain.StockAlert {
	ts := e.now()
	var alerts []domain.StockAlert
	for _, snap := range e.ledger.Snapshot() {
		level, ok := e.thresholds.Classify(snap.Available)
		if !ok {
			continue
		}
		alerts = append(alerts, domain.StockAlert{
			ProductID:      snap.ID,
			ProductName:    snap.Name,
			Level:          level,
			Message:        alertMessage(level, displayName(snap), snap.Available),
			AvailableStock: snap.Available,
			Timestamp:      ts,
		})
	}
	return alerts
}

func displayName(snap domain.ProductSnapshot) string {
	if snap.Name != "" {
		return snap.Name
	}
	return snap.ID
}

func alertMessage(level domain.AlertLevel, name string, available int) string {
	switch level {
	case domain.AlertLevelOutOfStock:
		return fmt.Sprintf("%s is out of stock", name)
	case domain.AlertLevelCritical:
		return fmt.Sprintf("%s has critical stock (%d units)", name, available)
	default:
		return fmt.Sprintf("%s has low stock (%d units)", name, available)
	}
}
