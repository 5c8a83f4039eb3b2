package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/loyalty_layer/internal/app/domain/loyalty"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage"
)

// Store implements the ledger backed by PostgreSQL. A Store returned to an
// Atomic callback runs every statement inside that transaction.
type Store struct {
	db    *sqlx.DB
	q     sqlx.ExtContext
	bound string
	now   func() time.Time
}

var _ storage.LedgerStore = (*Store)(nil)
var _ storage.Pinger = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		q:   db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type userRow struct {
	UserID      string    `db:"user_id"`
	DisplayName string    `db:"display_name"`
	PictureURL  string    `db:"picture_url"`
	TotalPoints int64     `db:"total_points"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r userRow) model() loyalty.User {
	return loyalty.User{
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		PictureURL:  r.PictureURL,
		TotalPoints: r.TotalPoints,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type scanRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	StoreID   string    `db:"store_id"`
	Points    int64     `db:"points"`
	ScannedAt time.Time `db:"scanned_at"`
}

func (r scanRow) model() loyalty.ScanRecord {
	return loyalty.ScanRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		StoreID:   r.StoreID,
		Points:    r.Points,
		Timestamp: r.ScannedAt.UTC(),
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users -------------------------------------------------------------------

func (s *Store) GetUser(ctx context.Context, userID string) (loyalty.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT user_id, display_name, picture_url, total_points, created_at, updated_at
		FROM loyalty_users
		WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return loyalty.User{}, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return loyalty.User{}, err
	}
	return row.model(), nil
}

func (s *Store) UpsertUser(ctx context.Context, profile loyalty.Profile) (loyalty.User, error) {
	if err := s.check(profile.UserID); err != nil {
		return loyalty.User{}, err
	}
	var row userRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		INSERT INTO loyalty_users (user_id, display_name, picture_url, total_points, created_at, updated_at)
		VALUES ($1, COALESCE(NULLIF($2, ''), $3), $4, 0, $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = COALESCE(NULLIF($2, ''), loyalty_users.display_name),
			picture_url  = COALESCE(NULLIF($4, ''), loyalty_users.picture_url),
			updated_at   = $5
		RETURNING user_id, display_name, picture_url, total_points, created_at, updated_at
	`, profile.UserID, profile.DisplayName, loyalty.DefaultDisplayName, profile.PictureURL, s.now())
	if err != nil {
		return loyalty.User{}, err
	}
	return row.model(), nil
}

func (s *Store) IncrementPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	if err := s.check(userID); err != nil {
		return 0, err
	}
	var total int64
	err := sqlx.GetContext(ctx, s.q, &total, `
		UPDATE loyalty_users
		SET total_points = total_points + $2, updated_at = $3
		WHERE user_id = $1
		RETURNING total_points
	`, userID, delta, s.now())
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return total, err
}

// --- scans -------------------------------------------------------------------

func (s *Store) AppendScan(ctx context.Context, rec loyalty.ScanRecord) (loyalty.ScanRecord, error) {
	if err := s.check(rec.UserID); err != nil {
		return loyalty.ScanRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO loyalty_scans (id, user_id, store_id, points, scanned_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.UserID, rec.StoreID, rec.Points, rec.Timestamp)
	if err != nil {
		return loyalty.ScanRecord{}, err
	}
	return rec, nil
}

func (s *Store) HasScanSince(ctx context.Context, userID, storeID string, since time.Time) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.q, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM loyalty_scans
			WHERE user_id = $1 AND store_id = $2 AND scanned_at > $3
		)
	`, userID, storeID, since.UTC())
	return exists, err
}

func (s *Store) ListScans(ctx context.Context, userID string, limit int) ([]loyalty.ScanRecord, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, s.q, &exists, `
		SELECT EXISTS (SELECT 1 FROM loyalty_users WHERE user_id = $1)
	`, userID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}

	query := `
		SELECT id, user_id, store_id, points, scanned_at
		FROM loyalty_scans
		WHERE user_id = $1
		ORDER BY scanned_at DESC, seq ASC
	`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	var rows []scanRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]loyalty.ScanRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// --- transactions ------------------------------------------------------------

// Atomic runs fn inside a transaction holding a transaction-scoped advisory
// lock on the user, so concurrent scans for one account serialise while
// different accounts proceed in parallel.
func (s *Store) Atomic(ctx context.Context, userID string, fn func(tx storage.LedgerStore) error) error {
	if s.bound != "" {
		if err := s.check(userID); err != nil {
			return err
		}
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("lock user %s: %w", userID, err)
	}

	view := &Store{db: s.db, q: tx, bound: userID, now: s.now}
	if err := fn(view); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) check(userID string) error {
	if s.bound != "" && userID != s.bound {
		return fmt.Errorf("transaction bound to user %s cannot access %s", s.bound, userID)
	}
	return nil
}
