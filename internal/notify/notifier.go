// Package notify defines the outbound event port toward the operator UI.
// The engine emits structured events only; rendering is someone else's
// job.
package notify

import (
	"context"
	"log/slog"

	"github.com/takato23/venezia-sub004/internal/domain"
)

type Notifier interface {
	StockAlert(ctx context.Context, alert domain.StockAlert)
	SyncSucceeded(ctx context.Context, result domain.SyncResult)
	SyncFailed(ctx context.Context, err error)
}

// LogNotifier renders notifications into the structured log. It is the
// default sink when no UI bridge is attached.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) StockAlert(ctx context.Context, alert domain.StockAlert) {
	attrs := []any{
		slog.String("product_id", alert.ProductID),
		slog.String("level", string(alert.Level)),
		slog.Int("available_stock", alert.AvailableStock),
	}
	switch alert.Level {
	case domain.AlertLevelOutOfStock:
		n.logger.ErrorContext(ctx, alert.Message, attrs...)
	case domain.AlertLevelCritical:
		n.logger.WarnContext(ctx, alert.Message, attrs...)
	default:
		n.logger.InfoContext(ctx, alert.Message, attrs...)
	}
}

func (n *LogNotifier) SyncSucceeded(ctx context.Context, result domain.SyncResult) {
	n.logger.InfoContext(ctx, "inventory synchronized",
		slog.Int("pushed", result.Pushed),
		slog.Int("pulled", result.Pulled),
		slog.Int("alerts", len(result.Alerts)),
		slog.Duration("took", result.FinishedAt.Sub(result.StartedAt)),
	)
}

func (n *LogNotifier) SyncFailed(ctx context.Context, err error) {
	n.logger.ErrorContext(ctx, "inventory sync failed", slog.String("error", err.Error()))
}
