package domain

import "time"

// SalesHistoryEntry records units sold on one calendar day. Entries are
// append-only and supplied externally; the forecaster windows them to a
// rolling period.
type SalesHistoryEntry struct {
	Date         time.Time
	QuantitySold int
}

// StockoutForecast projects when a product's available stock depletes.
// When Unbounded is true there is no depletion signal (zero sales
// velocity) and Days/Date are meaningless.
type StockoutForecast struct {
	ProductID string
	Days      int
	Date      *time.Time
	Unbounded bool
}

