package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/loyalty_layer/internal/app/domain/loyalty"
)

// ErrNotFound is returned (possibly wrapped) when a user does not exist.
var ErrNotFound = errors.New("not found")

// LedgerStore persists loyalty accounts and their scan history.
type LedgerStore interface {
	// GetUser returns the account without history.
	GetUser(ctx context.Context, userID string) (loyalty.User, error)

	// UpsertUser creates the account when absent (DisplayName defaulting to
	// loyalty.DefaultDisplayName, zero points) and overwrites the non-empty
	// profile fields otherwise.
	UpsertUser(ctx context.Context, profile loyalty.Profile) (loyalty.User, error)

	// AppendScan stores an accepted scan. The ID is assigned when empty.
	AppendScan(ctx context.Context, rec loyalty.ScanRecord) (loyalty.ScanRecord, error)

	// HasScanSince reports whether the user has a scan at the store with a
	// timestamp strictly after since.
	HasScanSince(ctx context.Context, userID, storeID string, since time.Time) (bool, error)

	// IncrementPoints adds delta to the account total and returns the new total.
	IncrementPoints(ctx context.Context, userID string, delta int64) (int64, error)

	// ListScans returns history newest first. limit <= 0 returns everything.
	ListScans(ctx context.Context, userID string, limit int) ([]loyalty.ScanRecord, error)

	// Atomic runs fn with a store view whose operations on userID are applied
	// all-or-nothing and do not interleave with another Atomic call for the
	// same user.
	Atomic(ctx context.Context, userID string, fn func(tx LedgerStore) error) error
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}
