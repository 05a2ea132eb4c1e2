// Package usecase orchestrates the ledger primitives into the operations
// the order flow and the back office call: atomic reservations, alert
// evaluation and stockout forecasting.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/takato23/venezia-sub004/internal/domain"
	"github.com/takato23/venezia-sub004/internal/ledger"
	"github.com/takato23/venezia-sub004/internal/observability"
)

// IdempotencyStore guards retried order operations. Implemented by the
// redis adapter, with a no-op fallback.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RemoteMirror forwards reservation events to the remote inventory
// service for cross-client visibility. Calls are fire-and-forget: local
// state is authoritative for admission, so mirror failures are logged and
// swallowed.
type RemoteMirror interface {
	MirrorReserve(ctx context.Context, orderID string, items []domain.ReservationItem) error
	MirrorRelease(ctx context.Context, orderID string) error
}

// SalesRecorder appends fulfilled quantities to sales history so the
// forecaster learns from them.
type SalesRecorder interface {
	RecordSale(ctx context.Context, productID string, soldOn time.Time, quantity int) error
}

// ReservationManager is the only writer of reservation state. Admission
// is serialized per product by the ledger's locks; the manager adds order
// semantics, idempotency and remote mirroring on top.
type ReservationManager struct {
	ledger         *ledger.Ledger
	mirror         RemoteMirror
	sales          SalesRecorder
	idempotency    IdempotencyStore
	metrics        *observability.EngineMetrics
	logger         *slog.Logger
	idempotencyTTL time.Duration

	now func() time.Time
}

// ReservationManagerOpts carries the optional collaborators. Any nil
// field disables the corresponding behavior.
type ReservationManagerOpts struct {
	Mirror         RemoteMirror
	Sales          SalesRecorder
	Idempotency    IdempotencyStore
	Metrics        *observability.EngineMetrics
	IdempotencyTTL time.Duration
}

func NewReservationManager(l *ledger.Ledger, logger *slog.Logger, opts ReservationManagerOpts) *ReservationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationManager{
		ledger:         l,
		mirror:         opts.Mirror,
		sales:          opts.Sales,
		idempotency:    opts.Idempotency,
		metrics:        opts.Metrics,
		logger:         logger,
		idempotencyTTL: opts.IdempotencyTTL,
		now:            time.Now,
	}
}

// Reserve places a single-product hold. A shortfall returns
// InsufficientStockError with no partial effect.
func (m *ReservationManager) Reserve(ctx context.Context, productID, orderID string, qty int) error {
	start := m.now()
	err := m.ledger.Reserve(productID, orderID, qty)
	m.observeReserve(ctx, start, err)
	if err != nil {
		return err
	}

	m.mirrorReserve(ctx, orderID, []domain.ReservationItem{{ProductID: productID, Quantity: qty}})
	return nil
}

// ReserveItems admits an order all-or-nothing: items are reserved in
// product-ID order and the order's holds are rolled back on the first
// shortfall. An idempotency key makes retries of the same order safe.
func (m *ReservationManager) ReserveItems(ctx context.Context, orderID string, items []domain.ReservationItem) error {
	if len(items) == 0 {
		return domain.ErrInvalidQuantity
	}

	key := "reserve:" + orderID
	done, err := m.beginIdempotent(ctx, key)
	if err != nil || done {
		return err
	}

	sorted := make([]domain.ReservationItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	start := m.now()
	for i, item := range sorted {
		if err := m.ledger.Reserve(item.ProductID, orderID, item.Quantity); err != nil {
			for _, taken := range sorted[:i] {
				m.ledger.Release(taken.ProductID, orderID)
			}
			m.observeReserve(ctx, start, err)
			m.failIdempotent(key)
			return err
		}
	}
	m.observeReserve(ctx, start, nil)
	m.finishIdempotent(ctx, key)

	m.mirrorReserve(ctx, orderID, sorted)
	return nil
}

// Release drops a single-product hold. Absent holds are a no-op so late
// or duplicate cancellation messages are harmless.
func (m *ReservationManager) Release(ctx context.Context, productID, orderID string) {
	m.ledger.Release(productID, orderID)
	m.mirrorRelease(ctx, orderID)
}

// ReleaseAll drops every hold tied to an order, across all products.
// Used on order cancellation. Returns how many holds were released.
func (m *ReservationManager) ReleaseAll(ctx context.Context, orderID string) int {
	released := m.ledger.ReleaseAll(orderID)
	if released > 0 {
		m.mirrorRelease(ctx, orderID)
	}
	return released
}

// Confirm settles an order after the remote service acknowledged
// fulfillment: the holds die, the local physical mirror is decremented
// and the fulfilled quantities are recorded as sales.
func (m *ReservationManager) Confirm(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	key := "confirm:" + orderID
	done, err := m.beginIdempotent(ctx, key)
	if err != nil || done {
		return nil, err
	}

	fulfilled := m.ledger.Confirm(orderID)
	soldOn := m.now()
	for _, res := range fulfilled {
		if m.sales == nil {
			break
		}
		if err := m.sales.RecordSale(ctx, res.ProductID, soldOn, res.Quantity); err != nil {
			m.logger.Warn("failed to record sale",
				slog.String("product_id", res.ProductID),
				slog.String("order_id", orderID),
				slog.String("error", err.Error()))
		}
	}
	m.finishIdempotent(ctx, key)
	return fulfilled, nil
}

// beginIdempotent takes the processing lock for key. done is true when a
// previous call already completed and the caller should return success.
func (m *ReservationManager) beginIdempotent(ctx context.Context, key string) (done bool, err error) {
	if m.idempotency == nil {
		return false, nil
	}
	locked, err := m.idempotency.SetNX(ctx, key, "processing", m.idempotencyTTL)
	if err != nil {
		return false, err
	}
	if locked {
		return false, nil
	}
	val, err := m.idempotency.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if val == "processing" {
		return false, domain.ErrIdempotencyKeyInFlight
	}
	return true, nil
}

func (m *ReservationManager) finishIdempotent(ctx context.Context, key string) {
	if m.idempotency == nil {
		return
	}
	if err := m.idempotency.Set(ctx, key, "done", m.idempotencyTTL); err != nil {
		m.logger.Warn("failed to record idempotency result", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (m *ReservationManager) failIdempotent(key string) {
	if m.idempotency == nil {
		return
	}
	// Background context: the lock must be dropped even when the caller's
	// context is already cancelled.
	if err := m.idempotency.Del(context.Background(), key); err != nil {
		m.logger.Warn("failed to drop idempotency lock", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (m *ReservationManager) mirrorReserve(ctx context.Context, orderID string, items []domain.ReservationItem) {
	if m.mirror == nil {
		return
	}
	if err := m.mirror.MirrorReserve(ctx, orderID, items); err != nil {
		m.logger.Warn("remote reserve mirror failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
}

func (m *ReservationManager) mirrorRelease(ctx context.Context, orderID string) {
	if m.mirror == nil {
		return
	}
	if err := m.mirror.MirrorRelease(ctx, orderID); err != nil {
		m.logger.Warn("remote release mirror failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
}

func (m *ReservationManager) observeReserve(ctx context.Context, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.ObserveReserve(ctx, m.now().Sub(start), err == nil)
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		m.metrics.RecordRejection(ctx, insufficient.ProductID)
	}
}
