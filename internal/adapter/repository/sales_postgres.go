// Package repository holds the postgres-backed sales history store used
// by the stockout forecaster.
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/takato23/venezia-sub004/internal/domain"
)

// PostgresSalesHistory persists per-day sold quantities. Fulfillments
// append to it; the forecaster reads a rolling window from it.
type PostgresSalesHistory struct {
	pool *pgxpool.Pool
}

func NewPostgresSalesHistory(pool *pgxpool.Pool) *PostgresSalesHistory {
	return &PostgresSalesHistory{pool: pool}
}

// RecordSale upserts the sold quantity for (product, day). Multiple
// fulfillments on the same day accumulate.
func (r *PostgresSalesHistory) RecordSale(ctx context.Context, productID string, soldOn time.Time, quantity int) error {
	query := `
		INSERT INTO shop.sales_history (product_id, sold_on, quantity_sold)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, sold_on)
		DO UPDATE SET quantity_sold = shop.sales_history.quantity_sold + EXCLUDED.quantity_sold
	`
	_, err := r.pool.Exec(ctx, query, productID, soldOn.UTC().Truncate(24*time.Hour), quantity)
	return err
}

// RecentSales returns up to the last `days` daily entries for a product,
// oldest first. Days without sales simply have no entry; the forecaster
// treats the returned window as the velocity sample.
func (r *PostgresSalesHistory) RecentSales(ctx context.Context, productID string, days int) ([]domain.SalesHistoryEntry, error) {
	query := `
		SELECT sold_on, quantity_sold
		FROM shop.sales_history
		WHERE product_id = $1
		ORDER BY sold_on DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, productID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.SalesHistoryEntry
	for rows.Next() {
		var entry domain.SalesHistoryEntry
		if err := rows.Scan(&entry.Date, &entry.QuantitySold); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first; the forecaster expects chronological
	// order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
