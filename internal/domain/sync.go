package domain

import "time"

// SyncStatus is the scheduler's externally visible state.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// StockUpdate is one entry of the batch pushed to the remote inventory
// service when a listing's derived availability changed.
type StockUpdate struct {
	ProductID      string `json:"productId"`
	AvailableStock int    `json:"availableStock"`
	AutoDisable    bool   `json:"autoDisable"`
}

// PhysicalStock is one entry of the canonical counts pulled from the
// remote service. Sequence increases monotonically per product so stale
// responses can be dropped.
type PhysicalStock struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"physicalStock"`
	Sequence  int64  `json:"sequence,omitempty"`
}

// SyncResult summarizes one reconciliation cycle.
type SyncResult struct {
	Pushed     int
	Pulled     int
	Alerts     []StockAlert
	StartedAt  time.Time
	FinishedAt time.Time
}
