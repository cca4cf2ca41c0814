package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	f := func(v float64) *float64 { return &v }
	return &Config{
		Market: MarketConfig{Area: "SE3"},
		Costs: CostsConfig{
			ImportMarkup:  f(0.1),
			ImportGrid:    f(0.25),
			ImportTax:     f(0.35),
			VATPercentage: f(25),
		},
		Levels: defaultLevels(),
		Horizon: HorizonConfig{
			AvgWindowSize:   120,
			MinimaLookahead: 4,
			Offset:          15 * time.Minute,
			Decimals:        3,
		},
		Cache: CacheConfig{
			RetentionDays:    31,
			WindowDays:       5,
			PublishAfterHour: 13,
		},
		ChargeWindow: ChargeWindowConfig{Enabled: true, Start: "00:00", End: "05:59"},
		MQTT:         MQTTConfig{Publish: true, Topic: "elspot2mqtt"},
		Scheduler:    SchedulerConfig{Interval: time.Hour},
		Export:       ExportConfig{MaxDataPoints: 1000},
		Timezone:     "Europe/Stockholm",
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRequiresTariffFields(t *testing.T) {
	cfg := validConfig()
	cfg.Costs.ImportGrid = nil

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "costs.import_grid") {
		t.Fatalf("expected missing import_grid error, got %v", err)
	}
}

func TestValidateRejectsBadChargeWindowClock(t *testing.T) {
	cfg := validConfig()
	cfg.ChargeWindow.Start = "25:00"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid clock to be rejected")
	}
}

func TestRulesRequireExactlyOneBound(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	cfg := validConfig()
	cfg.Levels = []LevelRule{{Gte: f(10), Lte: f(-10), Level: "BOTH", Index: 1}}
	if _, err := cfg.Rules(); err == nil {
		t.Fatal("expected two bounds to be rejected")
	}

	cfg.Levels = []LevelRule{{Level: "NONE", Index: 1}}
	if _, err := cfg.Rules(); err == nil {
		t.Fatal("expected zero bounds to be rejected")
	}
}

func TestRulesPreserveOrderAndKinds(t *testing.T) {
	cfg := validConfig()
	rules, err := cfg.Rules()
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 4 {
		t.Fatalf("expected 4 default rules, got %d", len(rules))
	}
	if rules[0].Level != "VERY_EXPENSIVE" || rules[3].Level != "VERY_CHEAP" {
		t.Fatalf("rule order not preserved: %+v", rules)
	}
}

func TestTariffDereferencesRequiredFields(t *testing.T) {
	cfg := validConfig()
	tariff := cfg.Tariff()
	if tariff.ImportGrid != 0.25 || tariff.VATPercent != 25 {
		t.Fatalf("unexpected tariff: %+v", tariff)
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := validConfig()
	if got := cfg.ResolveMaxPoints(0); got != 1000 {
		t.Fatalf("expected config default 1000, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(50); got != 50 {
		t.Fatalf("expected override 50, got %d", got)
	}
}
