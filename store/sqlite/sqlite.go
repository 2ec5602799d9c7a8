/*
Package sqlite provides a SQLite-backed implementation of generic.TxStore.

PURPOSE:
  Persists claimer records, the audit event log, keyed state (schedule,
  open flag), and token balances/allowances in a single database so one
  SQL transaction can cover a claim end to end.

KEY TABLES:
  claimers:          One row per registered address (never deleted)
  events:            Append-only audit log, seq is the autoincrement key
  state:             Small keyed values
  token_balances:    Token balance per account
  token_allowances:  Allowance per (owner, spender)

AMOUNTS:
  Stored as base-10 TEXT. SQLite integers are 64-bit and token supplies
  routinely exceed that.

CONCURRENCY:
  Uses a deadlock.RWMutex for thread-safety. WithTx holds the write lock for
  the whole transaction; the Store handed to fn never locks.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/vesting.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sasha-s/go-deadlock"

	"github.com/warp/vesting-ledger/generic"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store implements generic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu deadlock.RWMutex
}

var _ generic.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS claimers (
		address TEXT PRIMARY KEY,
		total_claimable TEXT NOT NULL,
		remaining_claimable TEXT NOT NULL,
		claimed_times INTEGER NOT NULL DEFAULT 0,
		last_claim_time INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_claimers_created
		ON claimers(created_at);

	-- Append-only: no UPDATE or DELETE is ever issued against events
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		actor TEXT NOT NULL,
		subject TEXT NOT NULL,
		amount TEXT NOT NULL,
		claimed_times INTEGER NOT NULL DEFAULT 0,
		at INTEGER NOT NULL,
		metadata_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_subject
		ON events(subject, seq);
	CREATE INDEX IF NOT EXISTS idx_events_kind
		ON events(kind, seq);

	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS token_balances (
		account TEXT PRIMARY KEY,
		amount TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS token_allowances (
		owner TEXT NOT NULL,
		spender TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (owner, spender)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOCKED ENTRY POINTS (generic.Store)
// =============================================================================

func (s *Store) GetClaimer(ctx context.Context, addr generic.Address) (generic.Claimer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ops{s.db}.GetClaimer(ctx, addr)
}

func (s *Store) SaveClaimer(ctx context.Context, c generic.Claimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.db}.SaveClaimer(ctx, c)
}

func (s *Store) ListClaimers(ctx context.Context) ([]generic.Claimer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ops{s.db}.ListClaimers(ctx)
}

func (s *Store) AppendEvent(ctx context.Context, e generic.Event) (generic.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.db}.AppendEvent(ctx, e)
}

func (s *Store) Events(ctx context.Context, filter generic.EventFilter) ([]generic.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ops{s.db}.Events(ctx, filter)
}

func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ops{s.db}.GetState(ctx, key)
}

func (s *Store) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.db}.SetState(ctx, key, value)
}

func (s *Store) GetBalance(ctx context.Context, account generic.Address) (generic.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ops{s.db}.GetBalance(ctx, account)
}

func (s *Store) SetBalance(ctx context.Context, account generic.Address, amount generic.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.db}.SetBalance(ctx, account, amount)
}

func (s *Store) GetAllowance(ctx context.Context, owner, spender generic.Address) (generic.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ops{s.db}.GetAllowance(ctx, owner, spender)
}

func (s *Store) SetAllowance(ctx context.Context, owner, spender generic.Address, amount generic.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.db}.SetAllowance(ctx, owner, spender, amount)
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ops{sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// QUERIES - shared by the DB and transaction paths, never lock
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type ops struct {
	q querier
}

const claimerColumns = `address, total_claimable, remaining_claimable, claimed_times, last_claim_time, created_at`

func (o ops) GetClaimer(ctx context.Context, addr generic.Address) (generic.Claimer, error) {
	row := o.q.QueryRowContext(ctx,
		`SELECT `+claimerColumns+` FROM claimers WHERE address = ?`, addr.Hex())
	c, err := scanClaimer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Claimer{Address: addr}, nil
	}
	return c, err
}

func (o ops) SaveClaimer(ctx context.Context, c generic.Claimer) error {
	query := `
		INSERT INTO claimers (` + claimerColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			remaining_claimable = excluded.remaining_claimable,
			claimed_times = excluded.claimed_times,
			last_claim_time = excluded.last_claim_time,
			updated_at = excluded.updated_at
	`
	_, err := o.q.ExecContext(ctx, query,
		c.Address.Hex(),
		c.TotalClaimableAmount.String(),
		c.RemainingClaimableAmount.String(),
		c.ClaimedTimes,
		uint64(c.LastClaimTime),
		uint64(c.CreatedAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save claimer: %w", err)
	}
	return nil
}

func (o ops) ListClaimers(ctx context.Context) ([]generic.Claimer, error) {
	rows, err := o.q.QueryContext(ctx,
		`SELECT `+claimerColumns+` FROM claimers ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query claimers: %w", err)
	}
	defer rows.Close()

	var claimers []generic.Claimer
	for rows.Next() {
		c, err := scanClaimer(rows)
		if err != nil {
			return nil, err
		}
		claimers = append(claimers, c)
	}
	return claimers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClaimer(row scanner) (generic.Claimer, error) {
	var (
		c                    generic.Claimer
		address              string
		total, remaining     string
		lastClaim, createdAt uint64
	)
	if err := row.Scan(&address, &total, &remaining, &c.ClaimedTimes, &lastClaim, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan claimer: %w", err)
	}

	var err error
	if c.Address, err = generic.ParseAddress(address); err != nil {
		return c, err
	}
	if c.TotalClaimableAmount, err = generic.ParseAmount(total); err != nil {
		return c, err
	}
	if c.RemainingClaimableAmount, err = generic.ParseAmount(remaining); err != nil {
		return c, err
	}
	c.LastClaimTime = generic.Timestamp(lastClaim)
	c.CreatedAt = generic.Timestamp(createdAt)
	return c, nil
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

func (o ops) AppendEvent(ctx context.Context, e generic.Event) (generic.Event, error) {
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return e, fmt.Errorf("failed to encode event metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	res, err := o.q.ExecContext(ctx, `
		INSERT INTO events (kind, actor, subject, amount, claimed_times, at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.Kind),
		e.Actor.Hex(),
		e.Subject.Hex(),
		e.Amount.String(),
		e.ClaimedTimes,
		uint64(e.At),
		metadata,
	)
	if err != nil {
		return e, fmt.Errorf("failed to append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return e, fmt.Errorf("failed to read event seq: %w", err)
	}
	e.Seq = uint64(seq)
	return e, nil
}

func (o ops) Events(ctx context.Context, filter generic.EventFilter) ([]generic.Event, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Kinds) > 0 {
		placeholders := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Subject != nil {
		where = append(where, "subject = ?")
		args = append(args, filter.Subject.Hex())
	}

	query := `SELECT seq, kind, actor, subject, amount, claimed_times, at, metadata_json FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []generic.Event
	for rows.Next() {
		var (
			e                    generic.Event
			kind, actor, subject string
			amount               string
			at                   uint64
			metadata             sql.NullString
		)
		if err := rows.Scan(&e.Seq, &kind, &actor, &subject, &amount, &e.ClaimedTimes, &at, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = generic.EventKind(kind)
		e.At = generic.Timestamp(at)
		if e.Actor, err = generic.ParseAddress(actor); err != nil {
			return nil, err
		}
		if e.Subject, err = generic.ParseAddress(subject); err != nil {
			return nil, err
		}
		if e.Amount, err = generic.ParseAmount(amount); err != nil {
			return nil, err
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode event metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// -----------------------------------------------------------------------------
// State
// -----------------------------------------------------------------------------

func (o ops) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := o.q.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", generic.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %q: %w", key, err)
	}
	return value, nil
}

func (o ops) SetState(ctx context.Context, key, value string) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write state %q: %w", key, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Token balances and allowances
// -----------------------------------------------------------------------------

func (o ops) GetBalance(ctx context.Context, account generic.Address) (generic.Amount, error) {
	return o.readAmount(ctx, `SELECT amount FROM token_balances WHERE account = ?`, account.Hex())
}

func (o ops) SetBalance(ctx context.Context, account generic.Address, amount generic.Amount) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO token_balances (account, amount) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET amount = excluded.amount`,
		account.Hex(), amount.String())
	if err != nil {
		return fmt.Errorf("failed to write balance: %w", err)
	}
	return nil
}

func (o ops) GetAllowance(ctx context.Context, owner, spender generic.Address) (generic.Amount, error) {
	return o.readAmount(ctx,
		`SELECT amount FROM token_allowances WHERE owner = ? AND spender = ?`,
		owner.Hex(), spender.Hex())
}

func (o ops) SetAllowance(ctx context.Context, owner, spender generic.Address, amount generic.Amount) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO token_allowances (owner, spender, amount) VALUES (?, ?, ?)
		ON CONFLICT(owner, spender) DO UPDATE SET amount = excluded.amount`,
		owner.Hex(), spender.Hex(), amount.String())
	if err != nil {
		return fmt.Errorf("failed to write allowance: %w", err)
	}
	return nil
}

// readAmount returns zero for a missing row.
func (o ops) readAmount(ctx context.Context, query string, args ...any) (generic.Amount, error) {
	var value string
	err := o.q.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.NewAmount(0), nil
	}
	if err != nil {
		return generic.Amount{}, fmt.Errorf("failed to read amount: %w", err)
	}
	return generic.ParseAmount(value)
}
