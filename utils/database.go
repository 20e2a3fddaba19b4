package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SetupDatabase connects a tuned pgx pool and bootstraps the schema,
// returning a Store over it. An empty databaseURL yields the in-memory
// store so the bot can run without persistence.
func SetupDatabase(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewMemoryStore(), nil
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Pool sizing for a chat-bot workload: short bursty transactions.
	config.MaxConns = 20
	config.MinConns = 4
	config.MaxConnLifetime = 45 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "dmps-schedule-bot",
		"timezone":          "UTC",
		"statement_timeout": "30s",
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	conn.Release()

	store := &pgStore{pool: pool}
	if err := store.createSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// pgStore implements Store over Postgres. Per-account serialization
// comes from row locks: every mutation runs SELECT ... FOR UPDATE
// inside a transaction, pairs in ascending ID order.
type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) createSchema(ctx context.Context) error {
	// Collaborator-owned profile columns ride along in the same table;
	// this core only touches user_id, credits, last_daily and
	// last_taxed_credits.
	query := `CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		credits BIGINT NOT NULL DEFAULT 0,
		last_daily TIMESTAMPTZ,
		last_taxed_credits BIGINT NOT NULL DEFAULT 0,
		birthday VARCHAR(5),
		age INT,
		dmps_player_id TEXT,
		dmps_rank INT,
		dmps_points INT
	);
	CREATE INDEX IF NOT EXISTS idx_users_credits ON users(credits DESC, user_id);`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: failed to create users table: %w", ErrPersistence, err)
	}
	return nil
}

const selectForUpdate = `SELECT credits, last_daily, last_taxed_credits FROM users WHERE user_id = $1 FOR UPDATE`

// lockAccount upserts the row if missing, then takes its row lock.
func lockAccount(ctx context.Context, tx pgx.Tx, id int64) (*Account, error) {
	acct := &Account{ID: id}
	err := tx.QueryRow(ctx, selectForUpdate, id).Scan(&acct.Balance, &acct.LastDaily, &acct.LastTaxedBalance)
	if err == nil {
		return acct, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, id); err != nil {
		return nil, err
	}
	if err := tx.QueryRow(ctx, selectForUpdate, id).Scan(&acct.Balance, &acct.LastDaily, &acct.LastTaxedBalance); err != nil {
		return nil, err
	}
	return acct, nil
}

func writeAccount(ctx context.Context, tx pgx.Tx, acct *Account) error {
	_, err := tx.Exec(ctx,
		`UPDATE users SET credits = $2, last_daily = $3, last_taxed_credits = $4 WHERE user_id = $1`,
		acct.ID, acct.Balance, acct.LastDaily, acct.LastTaxedBalance)
	return err
}

func (s *pgStore) Update(ctx context.Context, id int64, fn func(*Account) error) (*Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	acct, err := lockAccount(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lock account %d: %w", ErrPersistence, id, err)
	}
	if err := fn(acct); err != nil {
		return nil, err
	}
	if err := writeAccount(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("%w: failed to update account %d: %w", ErrPersistence, id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to commit account %d: %w", ErrPersistence, id, err)
	}
	snapshot := *acct
	return &snapshot, nil
}

func (s *pgStore) UpdatePair(ctx context.Context, firstID, secondID int64, fn func(first, second *Account) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	// Lock in ascending ID order so opposing transfers cannot deadlock.
	loID, hiID := firstID, secondID
	if secondID < firstID {
		loID, hiID = secondID, firstID
	}
	locked := make(map[int64]*Account, 2)
	for _, id := range []int64{loID, hiID} {
		acct, err := lockAccount(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("%w: failed to lock account %d: %w", ErrPersistence, id, err)
		}
		locked[id] = acct
	}

	if err := fn(locked[firstID], locked[secondID]); err != nil {
		return err
	}
	for _, id := range []int64{loID, hiID} {
		if err := writeAccount(ctx, tx, locked[id]); err != nil {
			return fmt.Errorf("%w: failed to update account %d: %w", ErrPersistence, id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit transfer: %w", ErrPersistence, err)
	}
	return nil
}

func (s *pgStore) ListPositive(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, credits, last_daily, last_taxed_credits FROM users WHERE credits > 0 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list accounts: %w", ErrPersistence, err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (s *pgStore) Leaderboard(ctx context.Context, limit int) ([]Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, credits, last_daily, last_taxed_credits FROM users
		 WHERE credits > 0 ORDER BY credits DESC, user_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query leaderboard: %w", ErrPersistence, err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func scanAccounts(rows pgx.Rows) ([]Account, error) {
	var out []Account
	for rows.Next() {
		var acct Account
		if err := rows.Scan(&acct.ID, &acct.Balance, &acct.LastDaily, &acct.LastTaxedBalance); err != nil {
			return nil, fmt.Errorf("%w: failed to scan account: %w", ErrPersistence, err)
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return out, nil
}

func (s *pgStore) Close() {
	s.pool.Close()
}
