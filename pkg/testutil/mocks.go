// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/loyalty_layer/internal/app/domain/loyalty"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage"
)

// Operation names accepted by FaultyStore.Fail.
const (
	OpGetUser         = "GetUser"
	OpUpsertUser      = "UpsertUser"
	OpAppendScan      = "AppendScan"
	OpHasScanSince    = "HasScanSince"
	OpIncrementPoints = "IncrementPoints"
	OpListScans       = "ListScans"
	OpAtomic          = "Atomic"
)

// FaultyStore wraps a LedgerStore and returns queued errors from selected
// operations. Faults apply inside Atomic callbacks too.
type FaultyStore struct {
	inner storage.LedgerStore
	state *faultState
}

type faultState struct {
	mu     sync.Mutex
	faults map[string]error
	calls  map[string]int
}

var _ storage.LedgerStore = (*FaultyStore)(nil)

// NewFaultyStore wraps inner.
func NewFaultyStore(inner storage.LedgerStore) *FaultyStore {
	return &FaultyStore{
		inner: inner,
		state: &faultState{
			faults: make(map[string]error),
			calls:  make(map[string]int),
		},
	}
}

// Fail makes the next call of op return err.
func (f *FaultyStore) Fail(op string, err error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	f.state.faults[op] = err
}

// Calls reports how many times op was invoked.
func (f *FaultyStore) Calls(op string) int {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	return f.state.calls[op]
}

func (f *FaultyStore) take(op string) error {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	f.state.calls[op]++
	err := f.state.faults[op]
	delete(f.state.faults, op)
	return err
}

func (f *FaultyStore) view(inner storage.LedgerStore) *FaultyStore {
	return &FaultyStore{inner: inner, state: f.state}
}

func (f *FaultyStore) GetUser(ctx context.Context, userID string) (loyalty.User, error) {
	if err := f.take(OpGetUser); err != nil {
		return loyalty.User{}, err
	}
	return f.inner.GetUser(ctx, userID)
}

func (f *FaultyStore) UpsertUser(ctx context.Context, profile loyalty.Profile) (loyalty.User, error) {
	if err := f.take(OpUpsertUser); err != nil {
		return loyalty.User{}, err
	}
	return f.inner.UpsertUser(ctx, profile)
}

func (f *FaultyStore) AppendScan(ctx context.Context, rec loyalty.ScanRecord) (loyalty.ScanRecord, error) {
	if err := f.take(OpAppendScan); err != nil {
		return loyalty.ScanRecord{}, err
	}
	return f.inner.AppendScan(ctx, rec)
}

func (f *FaultyStore) HasScanSince(ctx context.Context, userID, storeID string, since time.Time) (bool, error) {
	if err := f.take(OpHasScanSince); err != nil {
		return false, err
	}
	return f.inner.HasScanSince(ctx, userID, storeID, since)
}

func (f *FaultyStore) IncrementPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	if err := f.take(OpIncrementPoints); err != nil {
		return 0, err
	}
	return f.inner.IncrementPoints(ctx, userID, delta)
}

func (f *FaultyStore) ListScans(ctx context.Context, userID string, limit int) ([]loyalty.ScanRecord, error) {
	if err := f.take(OpListScans); err != nil {
		return nil, err
	}
	return f.inner.ListScans(ctx, userID, limit)
}

func (f *FaultyStore) Atomic(ctx context.Context, userID string, fn func(tx storage.LedgerStore) error) error {
	if err := f.take(OpAtomic); err != nil {
		return err
	}
	return f.inner.Atomic(ctx, userID, func(tx storage.LedgerStore) error {
		return fn(f.view(tx))
	})
}

// =============================================================================
// Clock
// =============================================================================

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts the clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
