package horizon

import (
	"time"

	"elspot2mqtt/internal/pricing"
)

// Record is the per-hour cost breakdown, all prices rounded for output.
type Record struct {
	Timestamp   string  `json:"timestamp"`
	MarketPrice float64 `json:"market_price"`
	SpotPrice   float64 `json:"spot_price"`
	GridPrice   float64 `json:"grid_price"`
	TotalPrice  float64 `json:"total_price"`
	ExportPrice float64 `json:"export_price"`

	// At carries the point's time for internal consumers; it is not part
	// of the wire payload.
	At time.Time `json:"-"`
}

// AheadRecord annotates a Record with rolling-average context. Level and
// LevelIndex are null until enough history has been seen to average over.
type AheadRecord struct {
	Record
	Average     float64 `json:"avg"`
	RelativePct float64 `json:"relpt"`
	Level       *string `json:"level"`
	LevelIndex  *int    `json:"level_index"`
	Minima      bool    `json:"minima"`
}

// Options tune horizon aggregation.
type Options struct {
	// Now is the wall-clock instant of the run.
	Now time.Time
	// Offset shifts "present" slightly into the past so the hour that
	// just started is still part of the look-ahead.
	Offset time.Duration
	// AvgWindowSize is the number of trailing spot costs averaged over.
	AvgWindowSize int
	// MinimaLookahead is the forward horizon for minima detection.
	MinimaLookahead int
	Rules           []pricing.Rule
	Location        *time.Location
	Decimals        int32
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

// LookAhead walks the series in timestamp order and emits one annotated
// record per point at or after the present instant. Points before present
// still feed the rolling average so the first emitted hours have history.
func LookAhead(prices pricing.Series, tariff pricing.Tariff, opts Options) []AheadRecord {
	loc := opts.location()
	present := opts.Now.Add(-opts.Offset).Unix()

	spotPrices := make(pricing.Series, len(prices))
	for i, p := range prices {
		spotPrices[i] = pricing.Point{Timestamp: p.Timestamp, Value: tariff.Spot(p.Value)}
	}
	minimas := pricing.FindMinima(spotPrices, opts.MinimaLookahead)

	res := make([]AheadRecord, 0, len(prices))
	spotCosts := make([]float64, 0, len(prices))

	for i, p := range prices {
		cost := spotPrices[i].Value
		spotCosts = append(spotCosts, cost)

		if p.Timestamp < present {
			continue
		}

		rec := AheadRecord{
			Record: newRecord(p, tariff, loc, opts.Decimals),
			Minima: minimas[p.Timestamp],
		}

		if opts.AvgWindowSize > 0 && len(spotCosts) >= opts.AvgWindowSize {
			avg := pricing.Mean(spotCosts[len(spotCosts)-opts.AvgWindowSize:])
			relPct := pricing.Round((cost/avg-1)*100, 1)
			level := pricing.ToLevel(relPct, cost, opts.Rules)

			rec.Average = pricing.Round(avg, opts.Decimals)
			rec.RelativePct = relPct
			name, index := level.Name, level.Index
			rec.Level = &name
			rec.LevelIndex = &index
		}

		res = append(res, rec)
	}

	return res
}

// LookBehind emits the plain cost breakdown for today's hours before the
// present instant, reconstructing "today so far".
func LookBehind(prices pricing.Series, tariff pricing.Tariff, opts Options) []Record {
	loc := opts.location()
	now := opts.Now.In(loc).Add(-opts.Offset)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	res := make([]Record, 0, 24)
	for _, p := range prices {
		at := time.Unix(p.Timestamp, 0).In(loc)
		if at.Before(start) || !at.Before(now) {
			continue
		}
		res = append(res, newRecord(p, tariff, loc, opts.Decimals))
	}
	return res
}

func newRecord(p pricing.Point, tariff pricing.Tariff, loc *time.Location, decimals int32) Record {
	at := time.Unix(p.Timestamp, 0).In(loc)
	return Record{
		Timestamp:   at.Format(time.RFC3339),
		MarketPrice: pricing.Round(p.Value, decimals),
		SpotPrice:   pricing.Round(tariff.Spot(p.Value), decimals),
		GridPrice:   pricing.Round(tariff.Grid(p.Value), decimals),
		TotalPrice:  pricing.Round(tariff.Total(p.Value), decimals),
		ExportPrice: pricing.Round(tariff.Export(p.Value), decimals),
		At:          at,
	}
}
