// Package worker holds the engine's background tasks: periodic ledger
// reconciliation against the remote inventory service and the optional
// reservation TTL sweep.
package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/takato23/venezia-sub004/internal/domain"
	"github.com/takato23/venezia-sub004/internal/ledger"
	"github.com/takato23/venezia-sub004/internal/notify"
	"github.com/takato23/venezia-sub004/internal/observability"
	"github.com/takato23/venezia-sub004/internal/usecase"
)

// RemoteStock is the slice of the inventory-service client the scheduler
// needs.
type RemoteStock interface {
	PushStockUpdates(ctx context.Context, updates []domain.StockUpdate) error
	FetchPhysicalStock(ctx context.Context, ids []string) ([]domain.PhysicalStock, error)
}

// SyncScheduler reconciles the local ledger with the remote inventory
// service: it pushes derived availability when it changed, pulls the
// canonical physical counts, and re-evaluates alerts. Cycles run on a
// fixed interval plus once at start-up; SyncOnce can also be invoked
// manually. Remote failures never mutate local state and never stop the
// loop.
type SyncScheduler struct {
	ledger   *ledger.Ledger
	remote   RemoteStock
	alerts   *usecase.AlertEngine
	notifier notify.Notifier
	metrics  *observability.EngineMetrics
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration

	syncMu sync.Mutex // serializes cycles; manual and scheduled never overlap

	mu       sync.RWMutex
	status   domain.SyncStatus
	lastSync time.Time
	listings map[string]*domain.ShopListing
	cycleSeq int64

	now func() time.Time
}

func NewSyncScheduler(
	l *ledger.Ledger,
	remote RemoteStock,
	alerts *usecase.AlertEngine,
	notifier notify.Notifier,
	metrics *observability.EngineMetrics,
	logger *slog.Logger,
	interval time.Duration,
	timeout time.Duration,
) *SyncScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncScheduler{
		ledger:   l,
		remote:   remote,
		alerts:   alerts,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		status:   domain.SyncStatusIdle,
		listings: make(map[string]*domain.ShopListing),
		now:      time.Now,
	}
}

// Start runs the reconciliation loop until ctx is cancelled. The first
// cycle runs immediately.
func (s *SyncScheduler) Start(ctx context.Context) {
	s.logger.Info("sync scheduler starting", "interval", s.interval)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler shutting down")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *SyncScheduler) runCycle(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil {
		// Already surfaced through status and the notifier; the loop
		// only records that the tick happened.
		s.logger.Warn("sync cycle failed", slog.String("error", err.Error()))
	}
}

// SyncOnce performs one reconciliation cycle. Concurrent invocations are
// rejected with ErrSyncInProgress rather than queued.
func (s *SyncScheduler) SyncOnce(ctx context.Context) (domain.SyncResult, error) {
	if !s.syncMu.TryLock() {
		return domain.SyncResult{}, domain.ErrSyncInProgress
	}
	defer s.syncMu.Unlock()

	start := s.now()
	s.setStatus(domain.SyncStatusSyncing)

	result, err := s.reconcile(ctx, start)
	result.StartedAt = start
	result.FinishedAt = s.now()

	if s.metrics != nil {
		s.metrics.RecordSyncCycle(ctx, result.FinishedAt.Sub(start), err == nil)
		s.metrics.SetDependencyStatus("inventory-service", err == nil)
	}

	if err != nil {
		s.setStatus(domain.SyncStatusError)
		if s.notifier != nil {
			s.notifier.SyncFailed(ctx, err)
		}
		return result, err
	}

	s.mu.Lock()
	s.status = domain.SyncStatusSuccess
	s.lastSync = result.FinishedAt
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.SyncSucceeded(ctx, result)
	}
	return result, nil
}

func (s *SyncScheduler) reconcile(ctx context.Context, start time.Time) (domain.SyncResult, error) {
	var result domain.SyncResult

	// Availability is read as a consistent per-product snapshot first; no
	// product lock is held across the network calls below.
	snaps := s.ledger.Snapshot()

	updates := s.diff(snaps)
	if len(updates) > 0 {
		pushCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.remote.PushStockUpdates(pushCtx, updates)
		cancel()
		if err != nil {
			return result, err
		}
		s.markSynced(snaps, updates, start)
		result.Pushed = len(updates)
	}

	seq := s.nextCycleSeq()
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		ids = append(ids, snap.ID)
	}

	pullCtx, cancel := context.WithTimeout(ctx, s.timeout)
	pulled, err := s.remote.FetchPhysicalStock(pullCtx, ids)
	cancel()
	if err != nil {
		return result, err
	}

	for _, p := range pulled {
		pullSeq := p.Sequence
		if pullSeq == 0 {
			pullSeq = seq
		}
		applied, err := s.ledger.ApplyPull(p.ProductID, p.Name, p.Quantity, pullSeq)
		if err != nil {
			s.logger.Warn("rejected canonical stock value",
				slog.String("product_id", p.ProductID),
				slog.Int("quantity", p.Quantity),
				slog.String("error", err.Error()))
			continue
		}
		if applied {
			result.Pulled++
		}
	}

	result.Alerts = s.alerts.Evaluate()
	if s.metrics != nil {
		s.metrics.SetActiveAlerts(result.Alerts)
	}
	if s.notifier != nil {
		for _, alert := range result.Alerts {
			if alert.Level.Immediate() {
				s.notifier.StockAlert(ctx, alert)
			}
		}
	}
	return result, nil
}

// diff selects the listings whose derived availability moved since the
// last successful push. Products never pushed before are always included.
func (s *SyncScheduler) diff(snaps []domain.ProductSnapshot) []domain.StockUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var updates []domain.StockUpdate
	for _, snap := range snaps {
		listing, seen := s.listings[snap.ID]
		if seen && listing.AvailableStock == snap.Available {
			continue
		}
		updates = append(updates, domain.StockUpdate{
			ProductID:      snap.ID,
			AvailableStock: snap.Available,
			AutoDisable:    snap.Available <= 0,
		})
	}
	return updates
}

func (s *SyncScheduler) markSynced(snaps []domain.ProductSnapshot, updates []domain.StockUpdate, at time.Time) {
	names := make(map[string]string, len(snaps))
	for _, snap := range snaps {
		names[snap.ID] = snap.Name
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		s.listings[u.ProductID] = &domain.ShopListing{
			ProductID:      u.ProductID,
			Name:           names[u.ProductID],
			AvailableStock: u.AvailableStock,
			AutoDisable:    u.AutoDisable,
			LastSynced:     at,
		}
	}
}

func (s *SyncScheduler) nextCycleSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycleSeq++
	return s.cycleSeq
}

func (s *SyncScheduler) setStatus(status domain.SyncStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Status reports the scheduler state and the time of the last successful
// cycle (zero when none succeeded yet).
func (s *SyncScheduler) Status() (domain.SyncStatus, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.lastSync
}

// Listings returns the storefront view as of the last push, sorted by
// product ID.
func (s *SyncScheduler) Listings() []domain.ShopListing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ShopListing, 0, len(s.listings))
	for _, listing := range s.listings {
		out = append(out, *listing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
