// Package ledger is the in-process source of truth for physical stock and
// live reservations. All admission decisions happen here, under a
// per-product exclusive lock, so two concurrent reserves for the same
// product are serialized while different products never block each other.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/takato23/venezia-sub004/internal/domain"
)

type hold struct {
	qty       int
	createdAt time.Time
}

type productState struct {
	mu       sync.Mutex
	name     string
	physical int
	holds    map[string]hold // orderID -> hold
	pullSeq  int64
}

// availableLocked computes physical minus all live holds, floored at zero.
// Callers must hold p.mu.
func (p *productState) availableLocked() int {
	reserved := 0
	for _, h := range p.holds {
		reserved += h.qty
	}
	if avail := p.physical - reserved; avail > 0 {
		return avail
	}
	return 0
}

// Ledger tracks products and their reservations. The zero value is not
// usable; construct with New.
type Ledger struct {
	mu       sync.RWMutex
	products map[string]*productState

	now func() time.Time
}

func New() *Ledger {
	return &Ledger{
		products: make(map[string]*productState),
		now:      time.Now,
	}
}

func (l *Ledger) get(productID string) (*productState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.products[productID]
	return p, ok
}

func (l *Ledger) getOrCreate(productID, name string) *productState {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[productID]
	if !ok {
		p = &productState{holds: make(map[string]hold)}
		l.products[productID] = p
	}
	if name != "" {
		p.name = name
	}
	return p
}

// Track registers a product so it participates in sync cycles and alert
// evaluation even before the first pull lands.
func (l *Ledger) Track(productID, name string) {
	l.getOrCreate(productID, name)
}

// SetPhysicalStock overwrites the local mirror of the authoritative count.
// Reservations are never touched. Unknown products are created.
func (l *Ledger) SetPhysicalStock(productID string, qty int) error {
	if qty < 0 {
		return domain.ErrInvalidStockValue
	}
	p := l.getOrCreate(productID, "")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.physical = qty
	return nil
}

// ApplyPull applies a canonical count from the remote service, guarded by
// a monotonically increasing sequence so a stale response can never
// overwrite a more recent pull. It reports whether the count was applied.
func (l *Ledger) ApplyPull(productID, name string, qty int, seq int64) (bool, error) {
	if qty < 0 {
		return false, domain.ErrInvalidStockValue
	}
	p := l.getOrCreate(productID, name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq < p.pullSeq {
		return false, nil
	}
	p.pullSeq = seq
	p.physical = qty
	return true, nil
}

// AvailableStock is a total read: it returns 0 for unknown products and
// never goes negative.
func (l *Ledger) AvailableStock(productID string) int {
	p, ok := l.get(productID)
	if !ok {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availableLocked()
}

// PhysicalStock returns the locally mirrored authoritative count, 0 for
// unknown products.
func (l *Ledger) PhysicalStock(productID string) int {
	p, ok := l.get(productID)
	if !ok {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.physical
}

// Reserve atomically checks availability and inserts (or replaces) the
// hold for orderID. A shortfall returns InsufficientStockError and leaves
// no partial effect.
func (l *Ledger) Reserve(productID, orderID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	p := l.getOrCreate(productID, "")
	p.mu.Lock()
	defer p.mu.Unlock()

	// Replace semantics: the order's existing hold does not count against
	// its own re-reservation.
	reservedByOthers := 0
	for id, h := range p.holds {
		if id != orderID {
			reservedByOthers += h.qty
		}
	}
	available := p.physical - reservedByOthers
	if available < 0 {
		available = 0
	}
	if qty > available {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
	}

	created := l.now()
	if prev, ok := p.holds[orderID]; ok {
		created = prev.createdAt
	}
	p.holds[orderID] = hold{qty: qty, createdAt: created}
	return nil
}

// Release removes the hold for orderID if present. Releasing an absent
// hold is a no-op, which covers late or duplicate release messages.
func (l *Ledger) Release(productID, orderID string) {
	p, ok := l.get(productID)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.holds, orderID)
}

// ReleaseAll drops every hold tied to an order across all products and
// returns how many were released.
func (l *Ledger) ReleaseAll(orderID string) int {
	released := 0
	for _, p := range l.states() {
		p.mu.Lock()
		if _, ok := p.holds[orderID]; ok {
			delete(p.holds, orderID)
			released++
		}
		p.mu.Unlock()
	}
	return released
}

// Confirm settles an order's holds: each reservation is removed and the
// local physical mirror is decremented by the held quantity, floored at
// zero. The next pull re-asserts the canonical count. The fulfilled
// reservations are returned so callers can record them as sales.
func (l *Ledger) Confirm(orderID string) []domain.Reservation {
	var fulfilled []domain.Reservation
	for id, p := range l.statesByID() {
		p.mu.Lock()
		h, ok := p.holds[orderID]
		if ok {
			delete(p.holds, orderID)
			p.physical -= h.qty
			if p.physical < 0 {
				p.physical = 0
			}
			fulfilled = append(fulfilled, domain.Reservation{
				ProductID: id,
				OrderID:   orderID,
				Quantity:  h.qty,
				CreatedAt: h.createdAt,
			})
		}
		p.mu.Unlock()
	}
	sort.Slice(fulfilled, func(i, j int) bool { return fulfilled[i].ProductID < fulfilled[j].ProductID })
	return fulfilled
}

// Reservations returns a snapshot of live holds for diagnostics and sync
// payloads: orderID -> quantity. Empty for unknown products.
func (l *Ledger) Reservations(productID string) map[string]int {
	out := make(map[string]int)
	p, ok := l.get(productID)
	if !ok {
		return out
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, h := range p.holds {
		out[id] = h.qty
	}
	return out
}

// ExpiredReservations returns holds created at or before cutoff, oldest
// first. Used by the optional TTL sweeper.
func (l *Ledger) ExpiredReservations(cutoff time.Time) []domain.Reservation {
	var expired []domain.Reservation
	for id, p := range l.statesByID() {
		p.mu.Lock()
		for orderID, h := range p.holds {
			if !h.createdAt.After(cutoff) {
				expired = append(expired, domain.Reservation{
					ProductID: id,
					OrderID:   orderID,
					Quantity:  h.qty,
					CreatedAt: h.createdAt,
				})
			}
		}
		p.mu.Unlock()
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].CreatedAt.Before(expired[j].CreatedAt)
	})
	return expired
}

// Snapshot reads every tracked product without holding any lock across
// the whole pass. Results are sorted by product ID so sync batches are
// deterministic.
func (l *Ledger) Snapshot() []domain.ProductSnapshot {
	byID := l.statesByID()
	out := make([]domain.ProductSnapshot, 0, len(byID))
	for id, p := range byID {
		p.mu.Lock()
		reserved := 0
		for _, h := range p.holds {
			reserved += h.qty
		}
		snap := domain.ProductSnapshot{
			ID:        id,
			Name:      p.name,
			Physical:  p.physical,
			Reserved:  reserved,
			Available: p.availableLocked(),
		}
		p.mu.Unlock()
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SnapshotOf reads one product; ok is false when it is not tracked.
func (l *Ledger) SnapshotOf(productID string) (domain.ProductSnapshot, bool) {
	p, ok := l.get(productID)
	if !ok {
		return domain.ProductSnapshot{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	reserved := 0
	for _, h := range p.holds {
		reserved += h.qty
	}
	return domain.ProductSnapshot{
		ID:        productID,
		Name:      p.name,
		Physical:  p.physical,
		Reserved:  reserved,
		Available: p.availableLocked(),
	}, true
}

func (l *Ledger) states() []*productState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*productState, 0, len(l.products))
	for _, p := range l.products {
		out = append(out, p)
	}
	return out
}

func (l *Ledger) statesByID() map[string]*productState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*productState, len(l.products))
	for id, p := range l.products {
		out[id] = p
	}
	return out
}
