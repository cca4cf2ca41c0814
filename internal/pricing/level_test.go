package pricing

import "testing"

func TestToLevelImmediateGte(t *testing.T) {
	rules := []Rule{
		{Kind: RuleRelativeGte, Threshold: 10, Level: "EXPENSIVE", Index: 1},
		{Kind: RuleRelativeLte, Threshold: -5, Level: "CHEAP", Index: -1},
	}
	got := ToLevel(12, 1.0, rules)
	if got.Name != "EXPENSIVE" || got.Index != 1 {
		t.Fatalf("relpt=12 classified as %+v, want EXPENSIVE/1", got)
	}
}

func TestToLevelDeferredLte(t *testing.T) {
	rules := []Rule{
		{Kind: RuleRelativeGte, Threshold: 10, Level: "EXPENSIVE", Index: 1},
		{Kind: RuleRelativeLte, Threshold: -5, Level: "CHEAP", Index: -1},
	}
	got := ToLevel(-6, 1.0, rules)
	if got.Name != "CHEAP" || got.Index != -1 {
		t.Fatalf("relpt=-6 classified as %+v, want CHEAP/-1", got)
	}
}

func TestToLevelDefault(t *testing.T) {
	got := ToLevel(0, 1.0, DefaultRules())
	if got.Name != "NORMAL" || got.Index != 0 {
		t.Fatalf("relpt=0 classified as %+v, want NORMAL/0", got)
	}
}

func TestToLevelLteOverriddenByLaterRule(t *testing.T) {
	// A later lte rule refines an earlier one; the last match wins.
	rules := []Rule{
		{Kind: RuleRelativeLte, Threshold: -5, Level: "CHEAP", Index: -1},
		{Kind: RuleRelativeLte, Threshold: -10, Level: "VERY_CHEAP", Index: -2},
	}
	got := ToLevel(-12, 1.0, rules)
	if got.Name != "VERY_CHEAP" || got.Index != -2 {
		t.Fatalf("relpt=-12 classified as %+v, want VERY_CHEAP/-2", got)
	}
}

func TestToLevelCeilingOverridesEarlierLte(t *testing.T) {
	// A ceiling rule after a matching lte still short-circuits.
	rules := []Rule{
		{Kind: RuleRelativeLte, Threshold: -5, Level: "CHEAP", Index: -1},
		{Kind: RuleCeiling, Threshold: 3.0, Level: "PRICE_CAP", Index: 9},
	}
	got := ToLevel(-6, 3.5, rules)
	if got.Name != "PRICE_CAP" || got.Index != 9 {
		t.Fatalf("classified as %+v, want PRICE_CAP/9", got)
	}
}

func TestToLevelFloor(t *testing.T) {
	rules := []Rule{
		{Kind: RuleFloor, Threshold: 0, Level: "FREE", Index: -3},
		{Kind: RuleRelativeGte, Threshold: 10, Level: "EXPENSIVE", Index: 1},
	}
	got := ToLevel(50, -0.1, rules)
	if got.Name != "FREE" || got.Index != -3 {
		t.Fatalf("negative price classified as %+v, want FREE/-3", got)
	}
}
