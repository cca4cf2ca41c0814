package pricing

// FindMinima flags the points of a series that are strict local minima and
// also at or below the lowest value among the next lookahead points. The
// first and last points never qualify, and neither does a point with fewer
// than lookahead points after it.
func FindMinima(s Series, lookahead int) map[int64]bool {
	res := make(map[int64]bool, len(s))
	for i, p := range s {
		res[p.Timestamp] = false
		if i == 0 || i == len(s)-1 {
			continue
		}
		if !(s[i-1].Value > p.Value && p.Value < s[i+1].Value) {
			continue
		}
		if i+lookahead > len(s)-1 {
			continue
		}
		flag := true
		for j := i + 1; j <= i+lookahead; j++ {
			if s[j].Value < p.Value {
				flag = false
				break
			}
		}
		res[p.Timestamp] = flag
	}
	return res
}
