package pricing

import (
	"sort"
	"time"
)

// Point is one hourly market price. Timestamp is seconds since epoch,
// aligned to an UTC hour boundary.
type Point struct {
	Timestamp int64
	Value     float64
}

// Series is a price series ordered by ascending timestamp with unique keys.
type Series []Point

// FromMap builds an ordered Series from a timestamp->value mapping.
func FromMap(m map[int64]float64) Series {
	s := make(Series, 0, len(m))
	for t, v := range m {
		s = append(s, Point{Timestamp: t, Value: v})
	}
	sort.Slice(s, func(i, j int) bool { return s[i].Timestamp < s[j].Timestamp })
	return s
}

// ToMap returns the series as a timestamp->value mapping.
func (s Series) ToMap() map[int64]float64 {
	m := make(map[int64]float64, len(s))
	for _, p := range s {
		m[p.Timestamp] = p.Value
	}
	return m
}

// Between returns the sub-series with from <= timestamp < to.
func (s Series) Between(from, to int64) Series {
	res := make(Series, 0, len(s))
	for _, p := range s {
		if p.Timestamp >= from && p.Timestamp < to {
			res = append(res, p)
		}
	}
	return res
}

// DayStart returns the unix timestamp of local midnight for the day
// containing t.
func DayStart(t time.Time, loc *time.Location) int64 {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc).Unix()
}
