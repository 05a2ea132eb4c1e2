package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/takato23/venezia-sub004/internal/ledger"
	"github.com/takato23/venezia-sub004/internal/usecase"
)

// ReservationSweeper releases holds older than the configured TTL so an
// abandoned cart cannot pin stock forever. The sweeper is an optional
// extension point: a zero TTL means holds live until explicit release,
// and no sweeper is started.
type ReservationSweeper struct {
	ledger   *ledger.Ledger
	manager  *usecase.ReservationManager
	logger   *slog.Logger
	ttl      time.Duration
	interval time.Duration

	now func() time.Time
}

func NewReservationSweeper(
	l *ledger.Ledger,
	manager *usecase.ReservationManager,
	logger *slog.Logger,
	ttl time.Duration,
	interval time.Duration,
) *ReservationSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationSweeper{
		ledger:   l,
		manager:  manager,
		logger:   logger,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *ReservationSweeper) Start(ctx context.Context) {
	w.logger.Info("reservation sweeper starting", "ttl", w.ttl, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reservation sweeper shutting down")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep releases every hold that outlived the TTL and returns how many
// were swept.
func (w *ReservationSweeper) Sweep(ctx context.Context) int {
	cutoff := w.now().Add(-w.ttl)
	expired := w.ledger.ExpiredReservations(cutoff)
	if len(expired) == 0 {
		return 0
	}

	swept := 0
	for _, res := range expired {
		if ctx.Err() != nil {
			return swept
		}
		w.manager.Release(ctx, res.ProductID, res.OrderID)
		swept++
		w.logger.Info("released expired reservation",
			slog.String("product_id", res.ProductID),
			slog.String("order_id", res.OrderID),
			slog.Int("quantity", res.Quantity),
			slog.Duration("age", w.now().Sub(res.CreatedAt)),
		)
	}
	return swept
}
