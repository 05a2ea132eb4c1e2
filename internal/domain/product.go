// Package domain holds the engine's core types: products, reservations,
// stock alerts and forecasts. The remote inventory service owns physical
// counts; everything else is derived locally.
package domain

import "time"

// Product mirrors the authoritative record held by the remote inventory
// service. PhysicalStock is mutated only by sync pulls.
type Product struct {
	ID            string
	Name          string
	PhysicalStock int
}

// ShopListing is the storefront-facing view of a tracked product.
// AvailableStock and AutoDisable are recomputed by the sync scheduler
// after each reconciliation.
type ShopListing struct {
	ProductID      string
	Name           string
	AvailableStock int
	AutoDisable    bool
	LastSynced     time.Time
}

// ProductSnapshot is a point-in-time read of a tracked product used by
// alert evaluation and sync payloads.
type ProductSnapshot struct {
	ID        string
	Name      string
	Physical  int
	Reserved  int
	Available int
}
