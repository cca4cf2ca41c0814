package fetcher

import (
	"context"
	"time"

	"elspot2mqtt/internal/pricing"
)

// PriceSource retrieves the hourly day-ahead prices for one delivery day.
// Returned values are per kWh in the market currency, keyed by UTC hour.
type PriceSource interface {
	FetchDay(ctx context.Context, day time.Time) (pricing.Series, error)
}
