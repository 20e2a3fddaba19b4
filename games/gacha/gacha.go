// Package gacha implements the weighted-prize drawing machine.
package gacha

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/L1ch7-DMC/dmps-schedule-bot/utils"
)

// Prize is one drawn reward, tagged with its rarity tier.
type Prize struct {
	Rarity  string
	Message string
}

// DrawResult carries a sorted batch of prizes and the balance left
// after paying for it.
type DrawResult struct {
	Prizes     []Prize
	NewBalance int64
}

// Table is an immutable reward table bound to the ledger that pays for
// draws. Tier order in the config doubles as the display rank, rarest
// first.
type Table struct {
	tiers       []utils.GachaTier
	rank        map[string]int
	totalWeight float64
	ledger      *utils.Ledger

	// injectable randomness for tests
	randFloat func() float64
	randIntn  func(int) int
}

// NewTable builds a Table from validated config tiers.
func NewTable(tiers []utils.GachaTier, ledger *utils.Ledger) *Table {
	t := &Table{
		tiers:     tiers,
		rank:      make(map[string]int, len(tiers)),
		ledger:    ledger,
		randFloat: rand.Float64,
		randIntn:  rand.Intn,
	}
	for i, tier := range tiers {
		t.rank[tier.Rarity] = i
		t.totalWeight += tier.Weight
	}
	return t
}

// DrawBatch debits count*costPerPull in one atomic adjustment, then
// rolls count independent draws. A failed debit produces zero prizes;
// any failure after the debit refunds it in full.
func (t *Table) DrawBatch(ctx context.Context, accountID int64, count int, costPerPull int64) (*DrawResult, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: pull count must be at least 1", utils.ErrValidation)
	}
	if count > utils.GachaMaxPulls {
		return nil, fmt.Errorf("%w: at most %d pulls per draw", utils.ErrValidation, utils.GachaMaxPulls)
	}
	if costPerPull < 1 {
		return nil, fmt.Errorf("%w: cost per pull must be at least 1", utils.ErrValidation)
	}
	if costPerPull > math.MaxInt64/int64(count) {
		return nil, fmt.Errorf("%w: total cost overflows", utils.ErrValidation)
	}

	res := &DrawResult{}
	total := int64(count) * costPerPull
	err := t.ledger.WithDebit(ctx, accountID, total, func(balanceAfterDebit int64) error {
		prizes := make([]Prize, 0, count)
		for i := 0; i < count; i++ {
			prize, err := t.drawOne()
			if err != nil {
				return err
			}
			prizes = append(prizes, prize)
		}
		res.Prizes = prizes
		res.NewBalance = balanceAfterDebit
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Display order only: rarest first.
	sort.SliceStable(res.Prizes, func(i, j int) bool {
		return t.rank[res.Prizes[i].Rarity] < t.rank[res.Prizes[j].Rarity]
	})
	return res, nil
}

// drawOne picks a tier by relative weight, then a prize uniformly from
// its pool. An empty pool is a configuration error, not a substitution.
func (t *Table) drawOne() (Prize, error) {
	x := t.randFloat() * t.totalWeight
	tier := t.tiers[len(t.tiers)-1]
	cumulative := 0.0
	for _, candidate := range t.tiers {
		cumulative += candidate.Weight
		if x <= cumulative {
			tier = candidate
			break
		}
	}
	if len(tier.Prizes) == 0 {
		return Prize{}, fmt.Errorf("%w: gacha tier %s has no prizes configured", utils.ErrValidation, tier.Rarity)
	}
	return Prize{
		Rarity:  tier.Rarity,
		Message: tier.Prizes[t.randIntn(len(tier.Prizes))],
	}, nil
}
