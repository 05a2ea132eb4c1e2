package usecase

import (
	"context"
	"time"

	"github.com/takato23/venezia-sub004/internal/domain"
	"github.com/takato23/venezia-sub004/internal/ledger"
)

// SalesHistoryProvider supplies per-product sales history for
// forecasting. Implemented by the postgres adapter; nil disables
// provider-backed forecasts.
type SalesHistoryProvider interface {
	RecentSales(ctx context.Context, productID string, days int) ([]domain.SalesHistoryEntry, error)
}

// Forecaster estimates days until a product depletes from recent sales
// velocity. It is an estimator, not a guarantee: no retries, no error
// states, and degenerate inputs collapse to the zero-velocity case.
type Forecaster struct {
	ledger   *ledger.Ledger
	provider SalesHistoryProvider
	window   int

	now func() time.Time
}

const defaultForecastWindow = 7

func NewForecaster(l *ledger.Ledger, provider SalesHistoryProvider, window int) *Forecaster {
	if window <= 0 {
		window = defaultForecastWindow
	}
	return &Forecaster{
		ledger:   l,
		provider: provider,
		window:   window,
	}
}

// Predict projects depletion from the supplied history. Zero available
// stock is an immediate stockout regardless of velocity; zero velocity
// (including empty history) yields an unbounded forecast.
func (f *Forecaster) Predict(productID string, history []domain.SalesHistoryEntry) domain.StockoutForecast {
	available := f.ledger.AvailableStock(productID)
	today := f.today()

	if available == 0 {
		return domain.StockoutForecast{ProductID: productID, Days: 0, Date: &today}
	}

	recent := history
	if len(recent) > f.window {
		recent = recent[len(recent)-f.window:]
	}

	total := 0
	for _, entry := range recent {
		total += entry.QuantitySold
	}
	if len(recent) == 0 || total == 0 {
		return domain.StockoutForecast{ProductID: productID, Unbounded: true}
	}

	avgDailySales := float64(total) / float64(len(recent))
	days := int(float64(available) / avgDailySales)
	date := today.AddDate(0, 0, days)
	return domain.StockoutForecast{ProductID: productID, Days: days, Date: &date}
}

// PredictFor fetches the rolling window from the sales history provider
// and projects from it. Without a provider it behaves as zero velocity.
// Untracked products are an error here, unlike the total stock reads.
func (f *Forecaster) PredictFor(ctx context.Context, productID string) (domain.StockoutForecast, error) {
	if _, ok := f.ledger.SnapshotOf(productID); !ok {
		return domain.StockoutForecast{}, domain.ErrUnknownProduct
	}

	var history []domain.SalesHistoryEntry
	if f.provider != nil {
		var err error
		history, err = f.provider.RecentSales(ctx, productID, f.window)
		if err != nil {
			return domain.StockoutForecast{}, err
		}
	}
	return f.Predict(productID, history), nil
}

func (f *Forecaster) today() time.Time {
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return now().UTC().Truncate(24 * time.Hour)
}
