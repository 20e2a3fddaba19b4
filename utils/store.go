package utils

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Account is one ledger row. Collaborator-owned profile columns live in
// the same table but are not represented here.
type Account struct {
	ID               int64
	Balance          int64
	LastDaily        *time.Time
	LastTaxedBalance int64
}

// Store abstracts the durable accounts table. Implementations guarantee
// that all mutations to a single account are strictly serialized and
// persisted before the call returns.
type Store interface {
	// Update runs fn against the account (created with zero balance if
	// absent) and persists the result atomically. fn returning an error
	// aborts the update and leaves the account unchanged.
	Update(ctx context.Context, id int64, fn func(*Account) error) (*Account, error)

	// UpdatePair runs fn against two distinct accounts as one atomic
	// unit: either both persisted states change or neither does.
	// Implementations lock the pair in ascending ID order so that
	// opposing concurrent transfers cannot deadlock.
	UpdatePair(ctx context.Context, firstID, secondID int64, fn func(first, second *Account) error) error

	// ListPositive returns a snapshot of every account with a positive
	// balance. The snapshot carries no locks; callers re-read through
	// Update before mutating.
	ListPositive(ctx context.Context) ([]Account, error)

	// Leaderboard returns up to limit accounts with positive balances,
	// richest first.
	Leaderboard(ctx context.Context, limit int) ([]Account, error)

	Close()
}

// memoryStore keeps the ledger in process memory. It backs tests and
// the no-DATABASE_URL mode, with the same atomicity contract as the
// Postgres store: one mutex per account, pairs locked in ID order.
type memoryStore struct {
	mu       sync.RWMutex
	accounts map[int64]*memAccount
}

type memAccount struct {
	mu   sync.Mutex
	acct Account
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{accounts: make(map[int64]*memAccount)}
}

func (m *memoryStore) entry(id int64) *memAccount {
	m.mu.RLock()
	e, ok := m.accounts[id]
	m.mu.RUnlock()
	if ok {
		return e
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.accounts[id]; ok {
		return e
	}
	e = &memAccount{acct: Account{ID: id}}
	m.accounts[id] = e
	return e
}

func (m *memoryStore) Update(ctx context.Context, id int64, fn func(*Account) error) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := m.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.acct
	if err := fn(&working); err != nil {
		return nil, err
	}
	e.acct = working
	snapshot := working
	return &snapshot, nil
}

func (m *memoryStore) UpdatePair(ctx context.Context, firstID, secondID int64, fn func(first, second *Account) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	first, second := m.entry(firstID), m.entry(secondID)

	lo, hi := first, second
	if secondID < firstID {
		lo, hi = second, first
	}
	lo.mu.Lock()
	defer lo.mu.Unlock()
	hi.mu.Lock()
	defer hi.mu.Unlock()

	workingFirst, workingSecond := first.acct, second.acct
	if err := fn(&workingFirst, &workingSecond); err != nil {
		return err
	}
	first.acct = workingFirst
	second.acct = workingSecond
	return nil
}

func (m *memoryStore) ListPositive(ctx context.Context) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entries := make([]*memAccount, 0, len(m.accounts))
	for _, e := range m.accounts {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Account, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.acct.Balance > 0 {
			out = append(out, e.acct)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) Leaderboard(ctx context.Context, limit int) ([]Account, error) {
	out, err := m.ListPositive(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) Close() {}
