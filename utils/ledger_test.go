package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAdjustNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())

	if _, err := ledger.Adjust(ctx, 1, 300); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ledger.Adjust(ctx, 1, -500); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft got %v, want ErrInsufficientFunds", err)
	}
	bal, err := ledger.GetBalance(ctx, 1)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal != 300 {
		t.Fatalf("failed debit changed balance: %d, want 300", bal)
	}
}

func TestGetBalanceCreatesAccount(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())
	bal, err := ledger.GetBalance(ctx, 42)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal != 0 {
		t.Fatalf("fresh account balance = %d, want 0", bal)
	}
}

func TestSetBalance(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())
	if _, err := ledger.SetBalance(ctx, 1, -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative set got %v, want ErrValidation", err)
	}
	bal, err := ledger.SetBalance(ctx, 1, 12345)
	if err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	if bal != 12345 {
		t.Fatalf("SetBalance returned %d, want 12345", bal)
	}
}

func TestConcurrentAdjustsSerialize(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())

	const workers = 50
	const perWorker = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := ledger.Adjust(ctx, 7, 1); err != nil {
					t.Errorf("Adjust: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	bal, _ := ledger.GetBalance(ctx, 7)
	if bal != workers*perWorker {
		t.Fatalf("lost updates: balance = %d, want %d", bal, workers*perWorker)
	}
}

func TestTransferConservesTotal(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())
	if _, err := ledger.Adjust(ctx, 1, 1000); err != nil {
		t.Fatal(err)
	}

	newBal, err := ledger.Transfer(ctx, 1, 2, 400)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if newBal != 600 {
		t.Fatalf("sender balance = %d, want 600", newBal)
	}
	recvBal, _ := ledger.GetBalance(ctx, 2)
	if recvBal != 400 {
		t.Fatalf("receiver balance = %d, want 400", recvBal)
	}

	if _, err := ledger.Transfer(ctx, 1, 2, 601); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft transfer got %v, want ErrInsufficientFunds", err)
	}
	senderBal, _ := ledger.GetBalance(ctx, 1)
	recvBal, _ = ledger.GetBalance(ctx, 2)
	if senderBal != 600 || recvBal != 400 {
		t.Fatalf("failed transfer moved funds: %d/%d", senderBal, recvBal)
	}
}

func TestTransferRejectsBadTargets(t *testing.T) {
	ctx := context.Background()
	const botID = 999
	ledger := NewLedger(NewMemoryStore(), botID)
	if _, err := ledger.Adjust(ctx, 1, 1000); err != nil {
		t.Fatal(err)
	}

	if _, err := ledger.Transfer(ctx, 1, 1, 100); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("self transfer got %v, want ErrInvalidTarget", err)
	}
	if _, err := ledger.Transfer(ctx, 1, botID, 100); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("bot transfer got %v, want ErrInvalidTarget", err)
	}
	if _, err := ledger.Transfer(ctx, 1, 2, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero transfer got %v, want ErrValidation", err)
	}
	if _, err := ledger.Transfer(ctx, 1, 2, -5); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative transfer got %v, want ErrValidation", err)
	}
}

func TestOpposingTransfersDoNotDeadlock(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())
	if _, err := ledger.Adjust(ctx, 1, 10000); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Adjust(ctx, 2, 10000); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = ledger.Transfer(ctx, 1, 2, 10)
			}()
			go func() {
				defer wg.Done()
				_, _ = ledger.Transfer(ctx, 2, 1, 10)
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposing transfers deadlocked")
	}

	bal1, _ := ledger.GetBalance(ctx, 1)
	bal2, _ := ledger.GetBalance(ctx, 2)
	if bal1+bal2 != 20000 {
		t.Fatalf("total changed: %d + %d != 20000", bal1, bal2)
	}
}

func TestWithDebitRefundsOnError(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())
	if _, err := ledger.Adjust(ctx, 1, 1000); err != nil {
		t.Fatal(err)
	}

	boom := fmt.Errorf("downstream failure")
	err := ledger.WithDebit(ctx, 1, 400, func(balanceAfterDebit int64) error {
		if balanceAfterDebit != 600 {
			t.Errorf("balance after debit = %d, want 600", balanceAfterDebit)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped downstream failure", err)
	}
	bal, _ := ledger.GetBalance(ctx, 1)
	if bal != 1000 {
		t.Fatalf("refund missing: balance = %d, want 1000", bal)
	}

	if err := ledger.WithDebit(ctx, 1, 2000, func(int64) error { return nil }); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("oversized debit got %v, want ErrInsufficientFunds", err)
	}
}

func TestClaimDailyOncePerJSTDate(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())

	// 23:30 JST, late in the day.
	current := time.Date(2025, 6, 1, 23, 30, 0, 0, JST)
	ledger.now = func() time.Time { return current }

	res, err := ledger.ClaimDaily(ctx, 1)
	if err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	if !res.Granted || res.NewBalance != DailyReward {
		t.Fatalf("first claim: %+v", res)
	}
	wantNext := time.Date(2025, 6, 2, 0, 0, 0, 0, JST)
	if !res.NextEligibleAt.Equal(wantNext) {
		t.Fatalf("next eligible = %v, want %v", res.NextEligibleAt, wantNext)
	}

	// Same JST date, a few minutes later: rejected.
	current = current.Add(10 * time.Minute)
	res, err = ledger.ClaimDaily(ctx, 1)
	if err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	if res.Granted {
		t.Fatal("second claim on the same JST date was granted")
	}
	if res.NewBalance != DailyReward {
		t.Fatalf("rejected claim changed balance: %d", res.NewBalance)
	}

	// 00:05 next JST date, less than 24h after the first claim.
	current = time.Date(2025, 6, 2, 0, 5, 0, 0, JST)
	res, err = ledger.ClaimDaily(ctx, 1)
	if err != nil {
		t.Fatalf("ClaimDaily: %v", err)
	}
	if !res.Granted {
		t.Fatal("claim after JST midnight rollover was rejected")
	}
	if res.NewBalance != 2*DailyReward {
		t.Fatalf("balance = %d, want %d", res.NewBalance, 2*DailyReward)
	}
}

func TestLeaderboardOrdersByBalance(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryStore())
	balances := map[int64]int64{1: 50, 2: 500, 3: 5, 4: 5000}
	for id, amount := range balances {
		if _, err := ledger.Adjust(ctx, id, amount); err != nil {
			t.Fatal(err)
		}
	}

	top, err := ledger.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(top) != 4 {
		t.Fatalf("got %d entries, want 4", len(top))
	}
	wantOrder := []int64{4, 2, 1, 3}
	for i, acct := range top {
		if acct.ID != wantOrder[i] {
			t.Fatalf("position %d is account %d, want %d", i, acct.ID, wantOrder[i])
		}
	}
}
