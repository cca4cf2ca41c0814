package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"elspot2mqtt/internal/pricing"
)

type fakeRepo struct {
	points map[int64]float64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{points: make(map[int64]float64)}
}

func (f *fakeRepo) Range(_ context.Context, from, to int64) (pricing.Series, error) {
	res := make(map[int64]float64)
	for t, v := range f.points {
		if t >= from && t < to {
			res[t] = v
		}
	}
	return pricing.FromMap(res), nil
}

func (f *fakeRepo) Upsert(_ context.Context, series pricing.Series) error {
	for _, p := range series {
		f.points[p.Timestamp] = p.Value
	}
	return nil
}

func (f *fakeRepo) DeleteBefore(_ context.Context, cutoff int64) error {
	for t := range f.points {
		if t < cutoff {
			delete(f.points, t)
		}
	}
	return nil
}

type fakeSource struct {
	days    map[string]pricing.Series
	fail    map[string]bool
	fetched []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{days: make(map[string]pricing.Series), fail: make(map[string]bool)}
}

func (f *fakeSource) FetchDay(_ context.Context, day time.Time) (pricing.Series, error) {
	key := day.Format("2006-01-02")
	f.fetched = append(f.fetched, key)
	if f.fail[key] {
		return nil, errors.New("upstream unavailable")
	}
	return f.days[key], nil
}

func fullDay(day time.Time, base float64) pricing.Series {
	start := pricing.DayStart(day, time.UTC)
	s := make(pricing.Series, 24)
	for h := 0; h < 24; h++ {
		s[h] = pricing.Point{Timestamp: start + int64(h)*3600, Value: base + float64(h)/100}
	}
	return s
}

func testCache(repo *fakeRepo, source *fakeSource, now time.Time) *Cache {
	c := New(repo, source, Options{
		RetentionDays:    31,
		WindowDays:       2,
		PublishAfterHour: 13,
		Location:         time.UTC,
	}, zerolog.Nop())
	c.now = func() time.Time { return now }
	return c
}

func TestDayFullDayGate(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	c := testCache(repo, newFakeSource(), now)

	day := fullDay(now, 1.0)
	if err := repo.Upsert(context.Background(), day[:22]); err != nil {
		t.Fatal(err)
	}

	got, err := c.Day(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("22 points should read as absent, got %d points", len(got))
	}

	if err := repo.Upsert(context.Background(), day[:23]); err != nil {
		t.Fatal(err)
	}
	got, err = c.Day(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 23 {
		t.Fatalf("23 points should count as a full day, got %d", len(got))
	}
}

func TestUpdateGatesTomorrowUntilPublicationHour(t *testing.T) {
	repo := newFakeRepo()
	source := newFakeSource()
	now := time.Date(2025, 1, 15, 12, 59, 0, 0, time.UTC)

	for offset := -2; offset <= 1; offset++ {
		day := now.AddDate(0, 0, offset)
		source.days[day.Format("2006-01-02")] = fullDay(day, 1.0)
	}

	c := testCache(repo, source, now)
	if err := c.Update(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, key := range source.fetched {
		if key == "2025-01-16" {
			t.Fatal("tomorrow must not be fetched before 13:00")
		}
	}

	source.fetched = nil
	c.now = func() time.Time { return time.Date(2025, 1, 15, 13, 0, 0, 0, time.UTC) }
	if err := c.Update(context.Background()); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, key := range source.fetched {
		if key == "2025-01-16" {
			found = true
		}
	}
	if !found {
		t.Fatal("tomorrow should be fetched after 13:00")
	}
}

func TestUpdateSwallowsSingleDayFailure(t *testing.T) {
	repo := newFakeRepo()
	source := newFakeSource()
	now := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)

	for offset := -2; offset <= 1; offset++ {
		day := now.AddDate(0, 0, offset)
		source.days[day.Format("2006-01-02")] = fullDay(day, 1.0)
	}
	source.fail["2025-01-14"] = true

	c := testCache(repo, source, now)
	if err := c.Update(context.Background()); err != nil {
		t.Fatalf("per-day failure must not abort the update: %v", err)
	}

	absent, err := c.Day(context.Background(), now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatal(err)
	}
	if absent != nil {
		t.Fatal("failed day should remain absent")
	}

	present, err := c.Day(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if present == nil {
		t.Fatal("other days should still be cached")
	}
}

func TestUpdateFetchesOnlyMissingDays(t *testing.T) {
	repo := newFakeRepo()
	source := newFakeSource()
	now := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)

	for offset := -2; offset <= 1; offset++ {
		day := now.AddDate(0, 0, offset)
		source.days[day.Format("2006-01-02")] = fullDay(day, 1.0)
	}
	if err := repo.Upsert(context.Background(), fullDay(now, 2.0)); err != nil {
		t.Fatal(err)
	}

	c := testCache(repo, source, now)
	if err := c.Update(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, key := range source.fetched {
		if key == "2025-01-15" {
			t.Fatal("already cached day must not be refetched")
		}
	}
}

func TestPricesIdempotentStoreAndUnion(t *testing.T) {
	repo := newFakeRepo()
	source := newFakeSource()
	now := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)

	for offset := -2; offset <= 1; offset++ {
		day := now.AddDate(0, 0, offset)
		source.days[day.Format("2006-01-02")] = fullDay(day, 1.0)
	}

	c := testCache(repo, source, now)
	first, err := c.Prices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Prices(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("repeated runs must be idempotent: %d vs %d points", len(first), len(second))
	}
	if len(first) != 4*24 {
		t.Fatalf("expected 4 full days, got %d points", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("point %d differs after re-run", i)
		}
	}
}

func TestPruneDropsStalePoints(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	c := testCache(repo, newFakeSource(), now)

	old := fullDay(now.AddDate(0, 0, -40), 1.0)
	fresh := fullDay(now, 1.0)
	if err := repo.Upsert(context.Background(), old); err != nil {
		t.Fatal(err)
	}
	if err := repo.Upsert(context.Background(), fresh); err != nil {
		t.Fatal(err)
	}

	if err := c.Prune(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(repo.points) != 24 {
		t.Fatalf("expected only the fresh day to remain, got %d points", len(repo.points))
	}
}
