package utils

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Ledger owns per-account GTV balances. All mutations go through the
// Store's atomic read-modify-write, so no operation can observe or
// produce a negative balance.
type Ledger struct {
	store      Store
	disallowed map[int64]bool
	now        func() time.Time
}

// NewLedger wraps a Store. Disallowed IDs (the bot itself, system
// accounts) are rejected as transfer targets.
func NewLedger(store Store, disallowedTargets ...int64) *Ledger {
	disallowed := make(map[int64]bool, len(disallowedTargets))
	for _, id := range disallowedTargets {
		disallowed[id] = true
	}
	return &Ledger{store: store, disallowed: disallowed, now: time.Now}
}

// GetBalance returns the account's balance, creating the account with
// zero balance on first touch.
func (l *Ledger) GetBalance(ctx context.Context, id int64) (int64, error) {
	acct, err := l.store.Update(ctx, id, func(*Account) error { return nil })
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Adjust applies delta atomically and returns the new balance. A debit
// that would go negative fails with ErrInsufficientFunds and leaves the
// balance unchanged.
func (l *Ledger) Adjust(ctx context.Context, id int64, delta int64) (int64, error) {
	acct, err := l.store.Update(ctx, id, func(a *Account) error {
		if a.Balance+delta < 0 {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, -delta, a.Balance)
		}
		a.Balance += delta
		return nil
	})
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// SetBalance pins the balance to an absolute amount (admin operation).
func (l *Ledger) SetBalance(ctx context.Context, id int64, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: balance cannot be negative", ErrValidation)
	}
	acct, err := l.store.Update(ctx, id, func(a *Account) error {
		a.Balance = amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Transfer moves amount from one account to another as a single atomic
// pair: either both sides change or neither does. Returns the sender's
// new balance.
func (l *Ledger) Transfer(ctx context.Context, fromID, toID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: transfer amount must be positive", ErrValidation)
	}
	if fromID == toID {
		return 0, fmt.Errorf("%w: cannot transfer to yourself", ErrInvalidTarget)
	}
	if l.disallowed[toID] {
		return 0, fmt.Errorf("%w: cannot transfer to a bot account", ErrInvalidTarget)
	}
	var newFromBalance int64
	err := l.store.UpdatePair(ctx, fromID, toID, func(from, to *Account) error {
		if from.Balance < amount {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, amount, from.Balance)
		}
		from.Balance -= amount
		to.Balance += amount
		newFromBalance = from.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newFromBalance, nil
}

// WithDebit is the compensating-transaction helper shared by gacha,
// slots and anything else that debits up front and may fail afterwards:
// it debits amount, runs fn, and credits the amount back if fn errors.
// Funds are never silently lost; a failed compensation is logged and
// surfaced to the caller.
func (l *Ledger) WithDebit(ctx context.Context, id int64, amount int64, fn func(balanceAfterDebit int64) error) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	balance, err := l.Adjust(ctx, id, -amount)
	if err != nil {
		return err
	}
	if err := fn(balance); err != nil {
		if _, refundErr := l.Adjust(ctx, id, amount); refundErr != nil {
			log.Printf("CRITICAL: failed to refund %d credits to %d after error (%v): %v", amount, id, err, refundErr)
			return fmt.Errorf("refund of %d credits failed after error: %w", amount, refundErr)
		}
		return err
	}
	return nil
}

// DailyResult reports the outcome of a daily-bonus claim.
type DailyResult struct {
	Granted        bool
	NewBalance     int64
	NextEligibleAt time.Time
}

// ClaimDaily grants the daily bonus once per JST calendar date; the
// claim window rolls over at JST midnight, not 24h after the last
// claim.
func (l *Ledger) ClaimDaily(ctx context.Context, id int64) (*DailyResult, error) {
	now := l.now().In(JST)
	res := &DailyResult{}
	acct, err := l.store.Update(ctx, id, func(a *Account) error {
		if a.LastDaily == nil || beforeDate(a.LastDaily.In(JST), now) {
			claimed := now
			a.Balance += DailyReward
			a.LastDaily = &claimed
			res.Granted = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.NewBalance = acct.Balance
	res.NextEligibleAt = nextMidnight(now)
	return res, nil
}

// Leaderboard returns the richest accounts, capped at LeaderboardTop.
func (l *Ledger) Leaderboard(ctx context.Context) ([]Account, error) {
	return l.store.Leaderboard(ctx, LeaderboardTop)
}

// Store exposes the underlying store for components that need snapshot
// access (the tax engine).
func (l *Ledger) Store() Store {
	return l.store
}

// beforeDate reports whether t falls on an earlier calendar date than
// ref, both already in the same location.
func beforeDate(t, ref time.Time) bool {
	ty, tm, td := t.Date()
	ry, rm, rd := ref.Date()
	if ty != ry {
		return ty < ry
	}
	if tm != rm {
		return tm < rm
	}
	return td < rd
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
