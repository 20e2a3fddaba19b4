package utils

import "time"

// General configuration
const (
	BotColor       = 0xF1C40F
	CreditName     = "GTV"
	LeaderboardTop = 10
)

// JST is the community's home timezone; the daily bonus and the tax job
// roll over on JST calendar dates.
var JST = time.FixedZone("JST", 9*60*60)

// Economy
const (
	DailyReward      = 500
	GachaCostPerPull = 1000
	GachaMaxPulls    = 10
)

// TaxBracket applies Rate to the whole growth amount when growth is at
// most UpperBound, minus a flat Subtractor. Brackets must be ordered by
// strictly increasing UpperBound with the last entry unbounded.
type TaxBracket struct {
	UpperBound int64   `yaml:"upper_bound"` // 0 means unbounded
	Rate       float64 `yaml:"rate"`
	Subtractor int64   `yaml:"subtractor"`
}

// DefaultTaxBrackets mirrors the Japanese income-tax table scaled for
// GTV credits. Applied weekly to balance growth, not to the balance.
var DefaultTaxBrackets = []TaxBracket{
	{UpperBound: 19500, Rate: 0.05, Subtractor: 0},
	{UpperBound: 33000, Rate: 0.10, Subtractor: 970},
	{UpperBound: 69500, Rate: 0.20, Subtractor: 4270},
	{UpperBound: 90000, Rate: 0.23, Subtractor: 6360},
	{UpperBound: 180000, Rate: 0.33, Subtractor: 15360},
	{UpperBound: 400000, Rate: 0.40, Subtractor: 27960},
	{UpperBound: 0, Rate: 0.45, Subtractor: 47960},
}

// Slot machine
var SlotReelSymbols = []string{"🍒", "🍊", "🍇", "🔔", "７", "🍉"}

const (
	SlotPlaceholder   = "🎰"
	SlotJackpotSymbol = "７"
	SlotJackpotPayout = 20 // three ７
	SlotTriplePayout  = 10 // three of any other symbol
	SlotDoublePayout  = 3  // exactly two identical
	SlotTickInterval  = 750 * time.Millisecond
	SlotIdleTimeout   = 120 * time.Second
	SlotReelCount     = 3
)
