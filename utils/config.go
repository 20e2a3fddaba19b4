package utils

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GachaTier is one rarity tier of the reward table. Weights are
// relative; they do not need to sum to 100.
type GachaTier struct {
	Rarity string   `yaml:"rarity"`
	Weight float64  `yaml:"weight"`
	Prizes []string `yaml:"prizes"`
}

// EconomyConfig holds the immutable economy tables. It is loaded once at
// startup and never mutated at runtime.
type EconomyConfig struct {
	GachaTiers  []GachaTier  `yaml:"gacha_tiers"`
	TaxBrackets []TaxBracket `yaml:"tax_brackets"`
}

// DefaultEconomyConfig returns the built-in tables, ordered rarest
// first. The order doubles as the display rank for gacha results.
func DefaultEconomyConfig() *EconomyConfig {
	return &EconomyConfig{
		GachaTiers: []GachaTier{
			{Rarity: "MAS", Weight: 0.5, Prizes: []string{
				"A master-rare secret only the founders know.",
				"The legendary voice-chat incident, retold in full.",
			}},
			{Rarity: "LEG", Weight: 0.5, Prizes: []string{
				"A legend-rare story from the first tournament night.",
			}},
			{Rarity: "VIC", Weight: 0.5, Prizes: []string{
				"The victory-rare tale nobody dares to bring up.",
			}},
			{Rarity: "SR", Weight: 3.5, Prizes: []string{
				"If bots could complain, I would file a grievance about my shift length.",
				"Super Grill Time is now open!!",
				"Apparently every top rarity is an inside joke. Figures.",
			}},
			{Rarity: "VR", Weight: 10, Prizes: []string{
				":tokotoko:", ":ikudearimasu:", ":hunndemokati:",
				"Spend your credits wisely!",
			}},
			{Rarity: "R", Weight: 20, Prizes: []string{
				":faaa_amaiamai:", "Rental duelist reporting for duty.",
				"SR and above never drop plain emoji, you know.",
			}},
			{Rarity: "UC", Weight: 25, Prizes: []string{
				":zetubou:", ":daisippai:", "Snack-bagging part-time shift today!",
				":kouiukotomodekirunnda:",
			}},
			{Rarity: "C", Weight: 40, Prizes: []string{
				":gomi:", ":ZEROhando:", "Feel like a part-time job!?",
				"Heaven and earth!!", ":denkanohoutou:",
			}},
		},
		TaxBrackets: append([]TaxBracket(nil), DefaultTaxBrackets...),
	}
}

// LoadEconomyConfig reads the YAML override at path, falling back to the
// defaults when path is empty or the file does not exist.
func LoadEconomyConfig(path string) (*EconomyConfig, error) {
	cfg := DefaultEconomyConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read economy config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse economy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects tables the economy cannot run on.
func (c *EconomyConfig) Validate() error {
	if len(c.GachaTiers) == 0 {
		return fmt.Errorf("%w: no gacha tiers configured", ErrValidation)
	}
	for _, tier := range c.GachaTiers {
		if tier.Rarity == "" {
			return fmt.Errorf("%w: gacha tier with empty rarity", ErrValidation)
		}
		if tier.Weight <= 0 {
			return fmt.Errorf("%w: gacha tier %s has non-positive weight", ErrValidation, tier.Rarity)
		}
		if len(tier.Prizes) == 0 {
			return fmt.Errorf("%w: gacha tier %s has an empty prize pool", ErrValidation, tier.Rarity)
		}
	}
	if len(c.TaxBrackets) == 0 {
		return fmt.Errorf("%w: no tax brackets configured", ErrValidation)
	}
	last := c.TaxBrackets[len(c.TaxBrackets)-1]
	if last.UpperBound != 0 {
		return fmt.Errorf("%w: last tax bracket must be unbounded", ErrValidation)
	}
	prev := int64(0)
	for i, b := range c.TaxBrackets[:len(c.TaxBrackets)-1] {
		if b.UpperBound <= prev {
			return fmt.Errorf("%w: tax bracket %d upper bound not increasing", ErrValidation, i)
		}
		prev = b.UpperBound
	}
	return nil
}
