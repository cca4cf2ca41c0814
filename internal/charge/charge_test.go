package charge

import (
	"errors"
	"math"
	"testing"
	"time"

	"elspot2mqtt/internal/pricing"
)

// sliceFrom builds hourly points for the 24 hours following start, with
// costs taken from the clock-hour keyed map (default cost otherwise).
func sliceFrom(start time.Time, costs map[int]float64, fallback float64) pricing.Series {
	s := make(pricing.Series, 0, 24)
	for h := 1; h <= 24; h++ {
		at := start.Truncate(time.Hour).Add(time.Duration(h) * time.Hour)
		cost, ok := costs[at.Hour()]
		if !ok {
			cost = fallback
		}
		s = append(s, pricing.Point{Timestamp: at.Unix(), Value: cost})
	}
	return s
}

func testOptions(now time.Time, threshold float64) Options {
	return Options{
		Start:     "00:00",
		End:       "05:59",
		Threshold: threshold,
		Now:       now,
		Location:  time.UTC,
		Decimals:  3,
	}
}

// The import tariff is left zero so total cost equals the raw price.
var flatTariff = pricing.Tariff{}

func cheapNight() map[int]float64 {
	costs := make(map[int]float64)
	for h := 0; h <= 5; h++ {
		costs[h] = 1.0
	}
	return costs
}

func TestFindContainsPreferredWindow(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)
	prices := sliceFrom(now, cheapNight(), 5.0)

	w, err := Find(prices, flatTariff, testOptions(now, 0))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if w.Start != "00:00" {
		t.Fatalf("start = %q, want 00:00", w.Start)
	}
	if w.End != "05:00" {
		t.Fatalf("end = %q, want 05:00", w.End)
	}
	if w.MinPrice != 1.0 || w.MaxPrice != 1.0 || w.AvgPrice != 1.0 {
		t.Fatalf("stats = %+v, want all 1.0", w)
	}
}

func TestFindGrowsBackwardWithinThreshold(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)
	costs := cheapNight()
	costs[23] = 1.2
	prices := sliceFrom(now, costs, 5.0)

	opts := testOptions(now, 0.5)
	w, err := Find(prices, flatTariff, opts)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if w.Start != "23:00" {
		t.Fatalf("start = %q, want 23:00", w.Start)
	}
	if w.End != "05:00" {
		t.Fatalf("end = %q, want 05:00", w.End)
	}
	wantAvg := pricing.Round((1.2+6*1.0)/7, 3)
	if math.Abs(w.AvgPrice-wantAvg) > 1e-9 {
		t.Fatalf("avg = %v, want %v", w.AvgPrice, wantAvg)
	}
	if w.MaxPrice != 1.2 || w.MinPrice != 1.0 {
		t.Fatalf("min/max = %v/%v, want 1.0/1.2", w.MinPrice, w.MaxPrice)
	}
}

func TestFindGrowsForwardWithinThreshold(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)
	costs := cheapNight()
	costs[6] = 1.0
	costs[7] = 1.3
	prices := sliceFrom(now, costs, 5.0)

	w, err := Find(prices, flatTariff, testOptions(now, 0.4))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if w.End != "07:00" {
		t.Fatalf("end = %q, want 07:00", w.End)
	}
}

func TestFindStopsAtStateChange(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)
	costs := cheapNight()
	// 07:00 is cheap again but 06:00 breaks the run.
	costs[7] = 1.0
	prices := sliceFrom(now, costs, 5.0)

	w, err := Find(prices, flatTariff, testOptions(now, 0))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if w.End != "05:00" {
		t.Fatalf("end = %q, want 05:00 (run broken at 06:00)", w.End)
	}
}

func TestFindNoWindowOnEmptySlice(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)
	if _, err := Find(nil, flatTariff, testOptions(now, 0)); !errors.Is(err, ErrNoWindow) {
		t.Fatalf("err = %v, want ErrNoWindow", err)
	}
}

func TestFindNoWindowWithoutBracketingRun(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)

	// Only the evening hours are available and the run toward the
	// preferred start ends in non-chargeable hours.
	s := make(pricing.Series, 0, 9)
	for h := 15; h <= 23; h++ {
		at := time.Date(2025, 1, 15, h, 0, 0, 0, time.UTC)
		cost := 2.0 + float64(h)
		if h == 15 {
			cost = 1.0
		}
		s = append(s, pricing.Point{Timestamp: at.Unix(), Value: cost})
	}

	if _, err := Find(s, flatTariff, testOptions(now, 0)); !errors.Is(err, ErrNoWindow) {
		t.Fatalf("err = %v, want ErrNoWindow", err)
	}
}
