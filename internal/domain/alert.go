package domain

import "time"

type AlertLevel string

const (
	AlertLevelLow        AlertLevel = "low"
	AlertLevelCritical   AlertLevel = "critical"
	AlertLevelOutOfStock AlertLevel = "outOfStock"
)

// Immediate reports whether an alert should be pushed to operators right
// away instead of waiting for the next batched surface.
func (l AlertLevel) Immediate() bool {
	return l == AlertLevelCritical || l == AlertLevelOutOfStock
}

// StockAlert is one entry of the alert snapshot recomputed on every
// evaluation cycle. The set is a snapshot, not an append-only log.
type StockAlert struct {
	ProductID      string
	ProductName    string
	Level          AlertLevel
	Message        string
	AvailableStock int
	Timestamp      time.Time
}

// AlertThresholds configures the level boundaries. Zero available stock is
// always outOfStock regardless of thresholds.
type AlertThresholds struct {
	Critical int
	Low      int
}

func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{Critical: 5, Low: 10}
}

// Classify maps an available-stock count onto an alert level. The second
// return is false when stock is above the low threshold and no alert
// applies.
func (t AlertThresholds) Classify(available int) (AlertLevel, bool) {
	switch {
	case available <= 0:
		return AlertLevelOutOfStock, true
	case available <= t.Critical:
		return AlertLevelCritical, true
	case available <= t.Low:
		return AlertLevelLow, true
	default:
		return "", false
	}
}
