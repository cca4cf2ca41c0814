package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"elspot2mqtt/internal/fetcher"
	"elspot2mqtt/internal/pricing"
	"elspot2mqtt/internal/storage"
)

// fullDayPoints is the minimum number of hourly points a cached day must
// hold to count as complete. One missing hour is tolerated for the
// daylight-saving transition; a partial fetch is not.
const fullDayPoints = 23

const secondsPerDay = 86400

// Options tune the cache policy.
type Options struct {
	// RetentionDays bounds how far back cached points are kept.
	RetentionDays int
	// WindowDays is how many past days the combined series covers.
	WindowDays int
	// PublishAfterHour gates fetching tomorrow's prices: the market does
	// not publish next-day data before this local hour.
	PublishAfterHour int
	Location         *time.Location
}

// Cache is the durable price store for one market area. It fetches only
// missing days and serves unions of per-day series.
type Cache struct {
	repo   storage.PriceRepository
	source fetcher.PriceSource
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a price cache.
func New(repo storage.PriceRepository, source fetcher.PriceSource, opts Options, logger zerolog.Logger) *Cache {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Cache{
		repo:   repo,
		source: source,
		opts:   opts,
		logger: logger.With().Str("component", "price_cache").Logger(),
		now:    time.Now,
	}
}

// Day returns the cached series for the day containing t, or nil when the
// cached data does not amount to an essentially full day.
func (c *Cache) Day(ctx context.Context, t time.Time) (pricing.Series, error) {
	t1 := pricing.DayStart(t, c.opts.Location)
	series, err := c.repo.Range(ctx, t1, t1+secondsPerDay)
	if err != nil {
		return nil, err
	}
	if len(series) < fullDayPoints {
		return nil, nil
	}
	return series, nil
}

// Prune deletes all points older than retention days before local midnight.
func (c *Cache) Prune(ctx context.Context) error {
	cutoff := pricing.DayStart(c.now(), c.opts.Location) - int64(c.opts.RetentionDays)*secondsPerDay
	if err := c.repo.DeleteBefore(ctx, cutoff); err != nil {
		return err
	}
	c.logger.Debug().Int64("cutoff", cutoff).Msg("pruned stale price points")
	return nil
}

// Update fetches every missing day from window days back through tomorrow.
// Tomorrow is skipped entirely before the publication hour. A fetch
// failure for a single day is logged and leaves that day absent; the
// update continues with the remaining days.
func (c *Cache) Update(ctx context.Context) error {
	now := c.now().In(c.opts.Location)
	for offset := -c.opts.WindowDays; offset <= 1; offset++ {
		day := now.AddDate(0, 0, offset)
		if offset == 1 && now.Hour() < c.opts.PublishAfterHour {
			c.logger.Debug().Str("date", day.Format("2006-01-02")).
				Msgf("data skipped until %02d.00", c.opts.PublishAfterHour)
			continue
		}

		cached, err := c.Day(ctx, day)
		if err != nil {
			return err
		}
		if cached != nil {
			c.logger.Debug().Str("date", day.Format("2006-01-02")).Msg("using cached data")
			continue
		}

		fetched, err := c.source.FetchDay(ctx, day)
		if err != nil {
			c.logger.Warn().Err(err).Str("date", day.Format("2006-01-02")).
				Msg("fetch failed; day left absent")
			continue
		}
		if err := c.repo.Upsert(ctx, fetched); err != nil {
			return err
		}
		c.logger.Info().Int("points", len(fetched)).Str("date", day.Format("2006-01-02")).
			Msg("stored fetched prices")
	}
	return nil
}

// Prices prunes, updates, and returns the union of all complete cached
// days in the window. This is the sole entry point for consumers.
func (c *Cache) Prices(ctx context.Context) (pricing.Series, error) {
	if err := c.Prune(ctx); err != nil {
		return nil, err
	}
	if err := c.Update(ctx); err != nil {
		return nil, err
	}

	now := c.now().In(c.opts.Location)
	combined := make(map[int64]float64)
	for offset := -c.opts.WindowDays; offset <= 1; offset++ {
		day := now.AddDate(0, 0, offset)
		series, err := c.Day(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, p := range series {
			combined[p.Timestamp] = p.Value
		}
	}
	return pricing.FromMap(combined), nil
}
