package pricing

// RuleKind discriminates the level rule variants.
type RuleKind int

const (
	// RuleFloor matches when the absolute price is below the threshold.
	RuleFloor RuleKind = iota
	// RuleCeiling matches when the absolute price is at or above the threshold.
	RuleCeiling
	// RuleRelativeGte matches when the relative deviation percentage is at
	// or above the threshold.
	RuleRelativeGte
	// RuleRelativeLte matches when the relative deviation percentage is at
	// or below the threshold.
	RuleRelativeLte
)

// Rule maps one price condition to a named level.
type Rule struct {
	Kind      RuleKind
	Threshold float64
	Level     string
	Index     int
}

// Level is a named severity bucket with a numeric index.
type Level struct {
	Name  string
	Index int
}

// DefaultLevel is returned when no rule matches.
var DefaultLevel = Level{Name: "NORMAL", Index: 0}

// DefaultRules mirror the stock level table: expensive thresholds on the
// upside, cheap thresholds on the downside.
func DefaultRules() []Rule {
	return []Rule{
		{Kind: RuleRelativeGte, Threshold: 10, Level: "VERY_EXPENSIVE", Index: 2},
		{Kind: RuleRelativeGte, Threshold: 5, Level: "EXPENSIVE", Index: 1},
		{Kind: RuleRelativeLte, Threshold: -5, Level: "CHEAP", Index: -1},
		{Kind: RuleRelativeLte, Threshold: -10, Level: "VERY_CHEAP", Index: -2},
	}
}

// ToLevel classifies a price by relative deviation percentage and absolute
// price. Rules are evaluated in order: floor, ceiling and gte matches win
// immediately, while an lte match is remembered and scanning continues so
// that a later, more specific rule can still override it.
func ToLevel(relPct, absPrice float64, rules []Rule) Level {
	res := DefaultLevel
	for _, r := range rules {
		switch r.Kind {
		case RuleFloor:
			if absPrice < r.Threshold {
				return Level{Name: r.Level, Index: r.Index}
			}
		case RuleCeiling:
			if absPrice >= r.Threshold {
				return Level{Name: r.Level, Index: r.Index}
			}
		case RuleRelativeGte:
			if relPct >= r.Threshold {
				return Level{Name: r.Level, Index: r.Index}
			}
		case RuleRelativeLte:
			if relPct <= r.Threshold {
				res = Level{Name: r.Level, Index: r.Index}
			}
		}
	}
	return res
}
