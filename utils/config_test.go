package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEconomyConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadEconomyConfig("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if len(cfg.GachaTiers) != 8 {
		t.Fatalf("default tiers = %d, want 8", len(cfg.GachaTiers))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}

	cfg, err = LoadEconomyConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if len(cfg.TaxBrackets) != len(DefaultTaxBrackets) {
		t.Fatalf("missing file did not fall back to default brackets")
	}
}

func TestLoadEconomyConfigOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economy.yaml")
	const override = `
gacha_tiers:
  - rarity: GOLD
    weight: 1
    prizes: ["golden prize"]
  - rarity: DIRT
    weight: 99
    prizes: ["dirt", "more dirt"]
tax_brackets:
  - upper_bound: 1000
    rate: 0.1
    subtractor: 0
  - upper_bound: 0
    rate: 0.5
    subtractor: 400
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadEconomyConfig(path)
	if err != nil {
		t.Fatalf("LoadEconomyConfig: %v", err)
	}
	if len(cfg.GachaTiers) != 2 || cfg.GachaTiers[0].Rarity != "GOLD" {
		t.Fatalf("override tiers not applied: %+v", cfg.GachaTiers)
	}
	if len(cfg.TaxBrackets) != 2 || cfg.TaxBrackets[1].Rate != 0.5 {
		t.Fatalf("override brackets not applied: %+v", cfg.TaxBrackets)
	}
}

func TestValidateRejectsBrokenTables(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*EconomyConfig)
	}{
		{"no tiers", func(c *EconomyConfig) { c.GachaTiers = nil }},
		{"zero weight", func(c *EconomyConfig) { c.GachaTiers[0].Weight = 0 }},
		{"empty pool", func(c *EconomyConfig) { c.GachaTiers[2].Prizes = nil }},
		{"empty rarity", func(c *EconomyConfig) { c.GachaTiers[1].Rarity = "" }},
		{"no brackets", func(c *EconomyConfig) { c.TaxBrackets = nil }},
		{"bounded last bracket", func(c *EconomyConfig) { c.TaxBrackets[len(c.TaxBrackets)-1].UpperBound = 999999 }},
		{"non-increasing bounds", func(c *EconomyConfig) { c.TaxBrackets[1].UpperBound = c.TaxBrackets[0].UpperBound }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultEconomyConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}
