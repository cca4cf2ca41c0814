package charge

import (
	"errors"
	"fmt"
	"time"

	"elspot2mqtt/internal/pricing"
)

// ErrNoWindow signals that no chargeable run brackets the preferred
// window start. Callers treat it as "charging not advisable today", not
// as a fatal condition.
var ErrNoWindow = errors.New("charge: no window found")

// Window is the recommended contiguous charging interval with the total
// cost statistics over it, prices rounded for output.
type Window struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	MaxPrice float64 `json:"max_price"`
	MinPrice float64 `json:"min_price"`
	AvgPrice float64 `json:"avg_price"`
}

// Options tune the charge window search.
type Options struct {
	// Start and End bound the preferred clock-time window, "HH:MM".
	Start string
	End   string
	// Threshold widens the window to hours within this much of the
	// cheapest total cost in the slice.
	Threshold float64
	Now       time.Time
	Location  *time.Location
	Decimals  int32
}

const minutesPerDay = 24 * 60

// Find computes the actual charging interval from a slice of at most 24h
// of future prices: every hour inside the preferred clock window or with
// a total cost within Threshold of the slice minimum is chargeable. The
// window start is the earliest hour of the contiguous chargeable run
// ending at the preferred start (searched back toward now); the end is
// the last hour of the contiguous run beginning at the preferred start
// (searched forward, stopping one hour short of now).
func Find(prices pricing.Series, tariff pricing.Tariff, opts Options) (*Window, error) {
	if len(prices) == 0 {
		return nil, ErrNoWindow
	}

	t1, err := parseClock(opts.Start)
	if err != nil {
		return nil, fmt.Errorf("parse window start: %w", err)
	}
	t2, err := parseClock(opts.End)
	if err != nil {
		return nil, fmt.Errorf("parse window end: %w", err)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	costs := make([]float64, len(prices))
	clocks := make([]int, len(prices))
	absMin := tariff.Total(prices[0].Value)
	for i, p := range prices {
		costs[i] = tariff.Total(p.Value)
		at := time.Unix(p.Timestamp, 0).In(loc)
		clocks[i] = at.Hour()*60 + at.Minute()
		if costs[i] < absMin {
			absMin = costs[i]
		}
	}

	chargeable := make([]bool, len(prices))
	for i := range prices {
		chargeable[i] = clockBetween(clocks[i], t1, t2, true) || costs[i] <= absMin+opts.Threshold
	}

	nowAt := opts.Now.In(loc)
	nowClock := nowAt.Hour()*60 + nowAt.Minute()

	startIdx, err := findStart(chargeable, clocks, nowClock, t1)
	if err != nil {
		return nil, err
	}
	endIdx, err := findEnd(chargeable, clocks, t1, nowClock)
	if err != nil {
		return nil, err
	}

	startClock := clocks[startIdx]
	endClock := clocks[endIdx]

	selected := make([]float64, 0, len(prices))
	for i := range prices {
		if clockBetween(clocks[i], startClock, endClock, true) {
			selected = append(selected, costs[i])
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoWindow
	}

	minCost, maxCost := selected[0], selected[0]
	for _, c := range selected {
		if c < minCost {
			minCost = c
		}
		if c > maxCost {
			maxCost = c
		}
	}

	return &Window{
		Start:    fmt.Sprintf("%02d:00", startClock/60),
		End:      fmt.Sprintf("%02d:00", endClock/60),
		MaxPrice: pricing.Round(maxCost, opts.Decimals),
		MinPrice: pricing.Round(minCost, opts.Decimals),
		AvgPrice: pricing.Round(pricing.Mean(selected), opts.Decimals),
	}, nil
}

// findStart scans the hours whose clock time falls between now and the
// preferred start, and returns the first index of the trailing contiguous
// chargeable run.
func findStart(chargeable []bool, clocks []int, nowClock, t1 int) (int, error) {
	candidates := make([]int, 0, len(clocks))
	for i, m := range clocks {
		if clockBetween(m, nowClock, t1, true) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, ErrNoWindow
	}

	last := candidates[len(candidates)-1]
	if !chargeable[last] {
		return 0, ErrNoWindow
	}

	start := last
	for k := len(candidates) - 2; k >= 0; k-- {
		if !chargeable[candidates[k]] {
			break
		}
		start = candidates[k]
	}
	return start, nil
}

// findEnd scans the hours whose clock time falls between the preferred
// start and one hour before now (exclusive of the right edge), and
// returns the last index of the leading contiguous chargeable run.
func findEnd(chargeable []bool, clocks []int, t1, nowClock int) (int, error) {
	bound := nowClock - 60
	if bound < 0 {
		bound += minutesPerDay
	}

	candidates := make([]int, 0, len(clocks))
	for i, m := range clocks {
		if clockBetween(m, t1, bound, false) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, ErrNoWindow
	}

	first := candidates[0]
	if !chargeable[first] {
		return 0, ErrNoWindow
	}

	end := first
	for k := 1; k < len(candidates); k++ {
		if !chargeable[candidates[k]] {
			break
		}
		end = candidates[k]
	}
	return end, nil
}

// clockBetween reports whether clock minute m lies in the clock interval
// from..to, wrapping across midnight when from > to. The left edge is
// always inclusive; inclusiveEnd controls the right edge.
func clockBetween(m, from, to int, inclusiveEnd bool) bool {
	if from <= to {
		if inclusiveEnd {
			return m >= from && m <= to
		}
		return m >= from && m < to
	}
	if inclusiveEnd {
		return m >= from || m <= to
	}
	return m >= from || m < to
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
