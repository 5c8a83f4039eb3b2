package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/R3E-Network/loyalty_layer/internal/app/domain/loyalty"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage"
	"github.com/R3E-Network/loyalty_layer/internal/locks"
)

// Store is an in-memory implementation of the ledger. It is safe for
// concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]*account
	locks  *locks.Local
	now    func() time.Time
}

// account keeps scans in insertion order; sorting happens on read.
type account struct {
	user  loyalty.User
	scans []loyalty.ScanRecord
}

var _ storage.LedgerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users: make(map[string]*account),
		locks: locks.NewLocal(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds; the store has no backend to lose.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) nextScanID() string {
	return fmt.Sprintf("%d", atomic.AddInt64(&s.nextID, 1))
}

func (s *Store) load(userID string) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.users[userID]
	if !ok {
		return nil, false
	}
	return acct.clone(), true
}

func (s *Store) commit(acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[acct.user.UserID] = acct
}

// Reads ----------------------------------------------------------------------

func (s *Store) GetUser(_ context.Context, userID string) (loyalty.User, error) {
	acct, ok := s.load(userID)
	if !ok {
		return loyalty.User{}, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return acct.user, nil
}

func (s *Store) HasScanSince(_ context.Context, userID, storeID string, since time.Time) (bool, error) {
	acct, ok := s.load(userID)
	if !ok {
		return false, nil
	}
	return acct.hasScanSince(storeID, since), nil
}

func (s *Store) ListScans(_ context.Context, userID string, limit int) ([]loyalty.ScanRecord, error) {
	acct, ok := s.load(userID)
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return acct.list(limit), nil
}

// Writes ---------------------------------------------------------------------
//
// Single writes take the per-user lock too, so they never race with a staged
// Atomic commit for the same account.

func (s *Store) UpsertUser(ctx context.Context, profile loyalty.Profile) (loyalty.User, error) {
	var out loyalty.User
	err := s.Atomic(ctx, profile.UserID, func(tx storage.LedgerStore) error {
		var err error
		out, err = tx.UpsertUser(ctx, profile)
		return err
	})
	return out, err
}

func (s *Store) AppendScan(ctx context.Context, rec loyalty.ScanRecord) (loyalty.ScanRecord, error) {
	var out loyalty.ScanRecord
	err := s.Atomic(ctx, rec.UserID, func(tx storage.LedgerStore) error {
		var err error
		out, err = tx.AppendScan(ctx, rec)
		return err
	})
	return out, err
}

func (s *Store) IncrementPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	var total int64
	err := s.Atomic(ctx, userID, func(tx storage.LedgerStore) error {
		var err error
		total, err = tx.IncrementPoints(ctx, userID, delta)
		return err
	})
	return total, err
}

// Atomic stages every change on a private copy of the account and publishes
// it only when fn returns nil.
func (s *Store) Atomic(ctx context.Context, userID string, fn func(tx storage.LedgerStore) error) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("atomic: user id required")
	}
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	defer unlock(ctx)

	tx := &txView{store: s, userID: userID}
	tx.acct, tx.exists = s.load(userID)

	if err := fn(tx); err != nil {
		return err
	}
	if tx.dirty {
		s.commit(tx.acct)
	}
	return nil
}

// txView -----------------------------------------------------------------------

// txView is the store handed to an Atomic callback. It is bound to a single
// account; touching any other user is an error.
type txView struct {
	store  *Store
	userID string
	acct   *account
	exists bool
	dirty  bool
}

var _ storage.LedgerStore = (*txView)(nil)

func (t *txView) check(userID string) error {
	if userID != t.userID {
		return fmt.Errorf("transaction bound to user %s cannot access %s", t.userID, userID)
	}
	return nil
}

func (t *txView) GetUser(_ context.Context, userID string) (loyalty.User, error) {
	if err := t.check(userID); err != nil {
		return loyalty.User{}, err
	}
	if !t.exists {
		return loyalty.User{}, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return t.acct.user, nil
}

func (t *txView) UpsertUser(_ context.Context, profile loyalty.Profile) (loyalty.User, error) {
	if err := t.check(profile.UserID); err != nil {
		return loyalty.User{}, err
	}
	now := t.store.now()
	if !t.exists {
		t.acct = &account{user: loyalty.User{
			UserID:      profile.UserID,
			DisplayName: loyalty.DefaultDisplayName,
			CreatedAt:   now,
		}}
		t.exists = true
	}
	if profile.DisplayName != "" {
		t.acct.user.DisplayName = profile.DisplayName
	}
	if profile.PictureURL != "" {
		t.acct.user.PictureURL = profile.PictureURL
	}
	t.acct.user.UpdatedAt = now
	t.dirty = true
	return t.acct.user, nil
}

func (t *txView) AppendScan(_ context.Context, rec loyalty.ScanRecord) (loyalty.ScanRecord, error) {
	if err := t.check(rec.UserID); err != nil {
		return loyalty.ScanRecord{}, err
	}
	if !t.exists {
		return loyalty.ScanRecord{}, fmt.Errorf("user %s: %w", rec.UserID, storage.ErrNotFound)
	}
	if rec.ID == "" {
		rec.ID = t.store.nextScanID()
	}
	t.acct.scans = append(t.acct.scans, rec)
	t.dirty = true
	return rec, nil
}

func (t *txView) HasScanSince(_ context.Context, userID, storeID string, since time.Time) (bool, error) {
	if err := t.check(userID); err != nil {
		return false, err
	}
	if !t.exists {
		return false, nil
	}
	return t.acct.hasScanSince(storeID, since), nil
}

func (t *txView) IncrementPoints(_ context.Context, userID string, delta int64) (int64, error) {
	if err := t.check(userID); err != nil {
		return 0, err
	}
	if !t.exists {
		return 0, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	t.acct.user.TotalPoints += delta
	t.acct.user.UpdatedAt = t.store.now()
	t.dirty = true
	return t.acct.user.TotalPoints, nil
}

func (t *txView) ListScans(_ context.Context, userID string, limit int) ([]loyalty.ScanRecord, error) {
	if err := t.check(userID); err != nil {
		return nil, err
	}
	if !t.exists {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return t.acct.list(limit), nil
}

// Atomic on a view joins the enclosing transaction.
func (t *txView) Atomic(_ context.Context, userID string, fn func(tx storage.LedgerStore) error) error {
	if err := t.check(userID); err != nil {
		return err
	}
	return fn(t)
}

// helpers ----------------------------------------------------------------------

func (a *account) clone() *account {
	out := &account{user: a.user}
	if len(a.scans) > 0 {
		out.scans = make([]loyalty.ScanRecord, len(a.scans))
		copy(out.scans, a.scans)
	}
	return out
}

func (a *account) hasScanSince(storeID string, since time.Time) bool {
	for _, rec := range a.scans {
		if rec.StoreID == storeID && rec.Timestamp.After(since) {
			return true
		}
	}
	return false
}

func (a *account) list(limit int) []loyalty.ScanRecord {
	out := make([]loyalty.ScanRecord, len(a.scans))
	copy(out, a.scans)
	loyalty.SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
