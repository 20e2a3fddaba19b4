package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// Notifier posts a text summary to wherever the community listens (a
// Discord channel in production, a buffer in tests).
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// TaxEngine walks all accounts once a week and taxes balance growth
// since each account's last checkpoint.
type TaxEngine struct {
	ledger   *Ledger
	brackets []TaxBracket
	notifier Notifier
}

// TaxSummary aggregates one collection run.
type TaxSummary struct {
	UsersTaxed     int
	TotalCollected int64
}

func NewTaxEngine(ledger *Ledger, brackets []TaxBracket, notifier Notifier) *TaxEngine {
	return &TaxEngine{ledger: ledger, brackets: brackets, notifier: notifier}
}

// assess returns the tax on a positive growth amount: the first bracket
// covering the growth applies its rate to the whole amount minus the
// flat subtractor, truncated. This single-bracket form (not a marginal
// sum) is the community's established rule.
func (e *TaxEngine) assess(growth int64) int64 {
	var bracket TaxBracket
	for _, b := range e.brackets {
		bracket = b
		if b.UpperBound != 0 && growth <= b.UpperBound {
			break
		}
	}
	tax := decimal.NewFromInt(growth).
		Mul(decimal.NewFromFloat(bracket.Rate)).
		Sub(decimal.NewFromInt(bracket.Subtractor))
	return tax.IntPart()
}

// Collect runs one tax pass. Each account's debit and checkpoint move
// together atomically; a failure on one account does not stop the walk.
func (e *TaxEngine) Collect(ctx context.Context) (*TaxSummary, error) {
	accounts, err := e.ledger.Store().ListPositive(ctx)
	if err != nil {
		return nil, err
	}

	summary := &TaxSummary{}
	for _, snapshot := range accounts {
		var collected int64
		_, err := e.ledger.Store().Update(ctx, snapshot.ID, func(a *Account) error {
			growth := a.Balance - a.LastTaxedBalance
			if growth <= 0 {
				a.LastTaxedBalance = a.Balance
				return nil
			}
			tax := e.assess(growth)
			if tax <= 0 {
				// Growth observed but under the tax floor; checkpoint
				// advances so it is not retaxed later.
				a.LastTaxedBalance = a.Balance
				return nil
			}
			a.Balance -= tax
			a.LastTaxedBalance = a.Balance
			collected = tax
			return nil
		})
		if err != nil {
			log.Printf("tax: skipping account %d: %v", snapshot.ID, err)
			continue
		}
		if collected > 0 {
			summary.UsersTaxed++
			summary.TotalCollected += collected
		}
	}

	if summary.UsersTaxed > 0 && e.notifier != nil {
		msg := fmt.Sprintf("Collected `%d` %s in income tax this week from %d member(s).",
			summary.TotalCollected, CreditName, summary.UsersTaxed)
		if err := e.notifier.Notify(ctx, msg); err != nil {
			log.Printf("tax: failed to post summary: %v", err)
		}
	}
	return summary, nil
}

// RunWeekly blocks until ctx is cancelled, collecting tax every Monday
// at midnight JST.
func (e *TaxEngine) RunWeekly(ctx context.Context) {
	for {
		next := nextCollectionTime(time.Now().In(JST))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			if summary, err := e.Collect(ctx); err != nil {
				log.Printf("tax: weekly collection failed: %v", err)
			} else {
				log.Printf("tax: collected %d from %d account(s)", summary.TotalCollected, summary.UsersTaxed)
			}
		}
	}
}

// nextCollectionTime returns the first Monday midnight JST strictly
// after now.
func nextCollectionTime(now time.Time) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	for next.Weekday() != time.Monday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
