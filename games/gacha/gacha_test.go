package gacha

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/L1ch7-DMC/dmps-schedule-bot/utils"
)

func testTiers() []utils.GachaTier {
	return []utils.GachaTier{
		{Rarity: "LEGEND", Weight: 1, Prizes: []string{"legend prize"}},
		{Rarity: "RARE", Weight: 9, Prizes: []string{"rare prize A", "rare prize B"}},
		{Rarity: "COMMON", Weight: 90, Prizes: []string{"common prize"}},
	}
}

func newTestTable(t *testing.T) (*Table, *utils.Ledger) {
	t.Helper()
	ledger := utils.NewLedger(utils.NewMemoryStore())
	return NewTable(testTiers(), ledger), ledger
}

func TestDrawBatchDebitsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	table, ledger := newTestTable(t)
	if _, err := ledger.Adjust(ctx, 1, 10000); err != nil {
		t.Fatal(err)
	}

	res, err := table.DrawBatch(ctx, 1, 10, utils.GachaCostPerPull)
	if err != nil {
		t.Fatalf("DrawBatch: %v", err)
	}
	if len(res.Prizes) != 10 {
		t.Fatalf("got %d prizes, want 10", len(res.Prizes))
	}
	if res.NewBalance != 0 {
		t.Fatalf("new balance = %d, want 0", res.NewBalance)
	}
	bal, _ := ledger.GetBalance(ctx, 1)
	if bal != 0 {
		t.Fatalf("ledger balance = %d, want 0", bal)
	}
}

func TestDrawBatchInsufficientFundsYieldsNoPrizes(t *testing.T) {
	ctx := context.Background()
	table, ledger := newTestTable(t)
	if _, err := ledger.Adjust(ctx, 1, 1500); err != nil {
		t.Fatal(err)
	}

	res, err := table.DrawBatch(ctx, 1, 2, utils.GachaCostPerPull)
	if !errors.Is(err, utils.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if res != nil {
		t.Fatalf("failed draw returned prizes: %+v", res)
	}
	bal, _ := ledger.GetBalance(ctx, 1)
	if bal != 1500 {
		t.Fatalf("failed draw moved funds: %d, want 1500", bal)
	}
}

func TestDrawBatchValidatesArguments(t *testing.T) {
	ctx := context.Background()
	table, ledger := newTestTable(t)
	if _, err := table.DrawBatch(ctx, 1, 0, 1000); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("zero count got %v, want ErrValidation", err)
	}
	if _, err := table.DrawBatch(ctx, 1, 1, 0); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("zero cost got %v, want ErrValidation", err)
	}
	if _, err := table.DrawBatch(ctx, 1, utils.GachaMaxPulls+1, 1000); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("oversized count got %v, want ErrValidation", err)
	}
	if _, err := table.DrawBatch(ctx, 1, 2, math.MaxInt64); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("overflowing cost got %v, want ErrValidation", err)
	}
	// Rejections happen before any ledger mutation.
	if bal, _ := ledger.GetBalance(ctx, 1); bal != 0 {
		t.Fatalf("rejected draws moved funds: balance = %d", bal)
	}
}

func TestConcurrentDrawsNeverOverspend(t *testing.T) {
	ctx := context.Background()
	table, ledger := newTestTable(t)
	// Enough for exactly three single pulls.
	if _, err := ledger.Adjust(ctx, 1, 3*utils.GachaCostPerPull); err != nil {
		t.Fatal(err)
	}

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := table.DrawBatch(ctx, 1, 1, utils.GachaCostPerPull); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("%d draws succeeded, want 3", succeeded)
	}
	bal, _ := ledger.GetBalance(ctx, 1)
	if bal != 0 {
		t.Fatalf("balance = %d, want 0", bal)
	}
}

func TestDrawBatchSortsRarestFirst(t *testing.T) {
	ctx := context.Background()
	table, ledger := newTestTable(t)
	if _, err := ledger.Adjust(ctx, 1, 10000); err != nil {
		t.Fatal(err)
	}

	// Force rolls landing in COMMON, LEGEND, RARE, in that draw order.
	rolls := []float64{0.5, 0.0, 0.05}
	i := 0
	table.randFloat = func() float64 {
		x := rolls[i%len(rolls)]
		i++
		return x
	}

	res, err := table.DrawBatch(ctx, 1, 3, utils.GachaCostPerPull)
	if err != nil {
		t.Fatalf("DrawBatch: %v", err)
	}
	wantOrder := []string{"LEGEND", "RARE", "COMMON"}
	for pos, want := range wantOrder {
		if res.Prizes[pos].Rarity != want {
			t.Fatalf("position %d rarity = %s, want %s (full: %+v)", pos, res.Prizes[pos].Rarity, want, res.Prizes)
		}
	}
}

func TestWeightedTierSelection(t *testing.T) {
	table, _ := newTestTable(t)
	cases := []struct {
		roll float64
		want string
	}{
		{0.0, "LEGEND"},
		{0.009, "LEGEND"},
		{0.011, "RARE"},
		{0.099, "RARE"},
		{0.2, "COMMON"},
		{0.999, "COMMON"},
	}
	for _, tc := range cases {
		table.randFloat = func() float64 { return tc.roll }
		prize, err := table.drawOne()
		if err != nil {
			t.Fatalf("drawOne(roll=%v): %v", tc.roll, err)
		}
		if prize.Rarity != tc.want {
			t.Errorf("roll %v drew %s, want %s", tc.roll, prize.Rarity, tc.want)
		}
	}
}

func TestEmptyPrizePoolRefundsBet(t *testing.T) {
	ctx := context.Background()
	ledger := utils.NewLedger(utils.NewMemoryStore())
	table := NewTable([]utils.GachaTier{
		{Rarity: "BROKEN", Weight: 1, Prizes: nil},
	}, ledger)
	if _, err := ledger.Adjust(ctx, 1, 5000); err != nil {
		t.Fatal(err)
	}

	_, err := table.DrawBatch(ctx, 1, 1, utils.GachaCostPerPull)
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	bal, _ := ledger.GetBalance(ctx, 1)
	if bal != 5000 {
		t.Fatalf("balance after failed draw = %d, want 5000 (refunded)", bal)
	}
}

func TestDefaultConfigTiersDraw(t *testing.T) {
	ctx := context.Background()
	ledger := utils.NewLedger(utils.NewMemoryStore())
	cfg := utils.DefaultEconomyConfig()
	table := NewTable(cfg.GachaTiers, ledger)
	if _, err := ledger.Adjust(ctx, 1, utils.GachaMaxPulls*utils.GachaCostPerPull); err != nil {
		t.Fatal(err)
	}
	res, err := table.DrawBatch(ctx, 1, utils.GachaMaxPulls, utils.GachaCostPerPull)
	if err != nil {
		t.Fatalf("DrawBatch on default config: %v", err)
	}
	if len(res.Prizes) != utils.GachaMaxPulls {
		t.Fatalf("got %d prizes, want %d", len(res.Prizes), utils.GachaMaxPulls)
	}
}
