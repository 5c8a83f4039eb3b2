package scans

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/R3E-Network/loyalty_layer/internal/app/catalog"
	"github.com/R3E-Network/loyalty_layer/internal/app/domain/loyalty"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/loyalty_layer/internal/errors"
	"github.com/R3E-Network/loyalty_layer/internal/locks"
	"github.com/R3E-Network/loyalty_layer/pkg/logger"
	"github.com/R3E-Network/loyalty_layer/pkg/testutil"
)

var start = time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T, opts ...catalog.Option) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		catalog.Definition{DisplayName: "Unknown store", PointValue: 5},
		[]catalog.Definition{
			{StoreID: "shibuya01", DisplayName: "Shibuya", PointValue: 10},
			{StoreID: "shinjuku02", DisplayName: "Shinjuku", PointValue: 15},
		},
		opts...,
	)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func newService(t *testing.T, opts ...Option) (*Service, *memory.Store, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(start)
	store := memory.New()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(testCatalog(t), store, logger.NewNop(), opts...), store, clock
}

func scan(t *testing.T, svc *Service, userID, storeID string) ScanResult {
	t.Helper()
	res, err := svc.RecordScan(context.Background(), ScanRequest{UserID: userID, StoreID: storeID})
	if err != nil {
		t.Fatalf("scan %s@%s: %v", userID, storeID, err)
	}
	return res
}

func TestRecordScanExampleFlow(t *testing.T) {
	svc, _, clock := newService(t)

	res := scan(t, svc, "u1", "shibuya01")
	if res.IsDuplicate || res.PointsAwarded != 10 || res.User.TotalPoints != 10 {
		t.Fatalf("first scan: %+v", res)
	}
	if !res.Success || res.StoreName != "Shibuya" {
		t.Fatalf("unexpected result envelope %+v", res)
	}
	if res.User.DisplayName != loyalty.DefaultDisplayName {
		t.Fatalf("expected placeholder name, got %q", res.User.DisplayName)
	}

	clock.Advance(time.Hour)
	res = scan(t, svc, "u1", "shibuya01")
	if !res.IsDuplicate || res.PointsAwarded != 0 || res.User.TotalPoints != 10 {
		t.Fatalf("duplicate scan: %+v", res)
	}
	if len(res.User.ScanHistory) != 1 {
		t.Fatalf("duplicate must not append history, got %d", len(res.User.ScanHistory))
	}

	res = scan(t, svc, "u1", "shinjuku02")
	if res.IsDuplicate || res.PointsAwarded != 15 || res.User.TotalPoints != 25 {
		t.Fatalf("other store: %+v", res)
	}
	if res.User.ScanHistory[0].StoreID != "shinjuku02" {
		t.Fatalf("expected newest first, got %+v", res.User.ScanHistory)
	}
}

func TestRecordScanReEligibility(t *testing.T) {
	svc, _, clock := newService(t)

	scan(t, svc, "u1", "shibuya01")

	clock.Advance(24*time.Hour - time.Second)
	if res := scan(t, svc, "u1", "shibuya01"); !res.IsDuplicate {
		t.Fatalf("scan inside window must be duplicate")
	}

	clock.Set(start.Add(24 * time.Hour))
	res := scan(t, svc, "u1", "shibuya01")
	if res.IsDuplicate || res.User.TotalPoints != 20 {
		t.Fatalf("scan at exactly 24h must be credited: %+v", res)
	}

	clock.Advance(25 * time.Hour)
	res = scan(t, svc, "u1", "shibuya01")
	if res.IsDuplicate || res.User.TotalPoints != 30 {
		t.Fatalf("scan after window must be credited: %+v", res)
	}
}

func TestRecordScanHistoryCapAndSumInvariant(t *testing.T) {
	svc, store, clock := newService(t)
	ctx := context.Background()

	var last ScanResult
	for i := 0; i < 13; i++ {
		last = scan(t, svc, "u1", "shibuya01")
		clock.Advance(25 * time.Hour)
	}

	if len(last.User.ScanHistory) != RecentHistoryLimit {
		t.Fatalf("expected history capped at %d, got %d", RecentHistoryLimit, len(last.User.ScanHistory))
	}
	for i := 1; i < len(last.User.ScanHistory); i++ {
		if last.User.ScanHistory[i-1].Timestamp.Before(last.User.ScanHistory[i].Timestamp) {
			t.Fatalf("history not sorted descending at %d", i)
		}
	}

	full, err := svc.FetchUser(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(full.ScanHistory) != 13 {
		t.Fatalf("fetch must return the full history, got %d", len(full.ScanHistory))
	}
	if full.TotalPoints != loyalty.SumPoints(full.ScanHistory) || full.TotalPoints != 130 {
		t.Fatalf("sum invariant broken: total=%d sum=%d", full.TotalPoints, loyalty.SumPoints(full.ScanHistory))
	}

	u, _ := store.GetUser(ctx, "u1")
	if u.TotalPoints != 130 {
		t.Fatalf("stored total = %d", u.TotalPoints)
	}
}

func TestRecordScanProfileUpsertOnDuplicate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	scan(t, svc, "u1", "shibuya01")
	res, err := svc.RecordScan(ctx, ScanRequest{UserID: "u1", StoreID: "shibuya01", DisplayName: "Hanako", PictureURL: "https://img/h.png"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !res.IsDuplicate {
		t.Fatalf("expected duplicate")
	}
	if res.User.DisplayName != "Hanako" || res.User.PictureURL != "https://img/h.png" {
		t.Fatalf("profile not updated on duplicate: %+v", res.User)
	}
}

func TestRecordScanValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	cases := []ScanRequest{
		{StoreID: "shibuya01"},
		{UserID: "u1"},
		{UserID: "  ", StoreID: "shibuya01"},
		{UserID: "u1", StoreID: "nonexistent"},
		{UserID: "u1", StoreID: catalog.TestStoreID},
	}
	for _, req := range cases {
		if _, err := svc.RecordScan(ctx, req); !svcerrors.Is(err, svcerrors.CodeValidation) {
			t.Fatalf("request %+v: expected validation error, got %v", req, err)
		}
	}

	if _, err := svc.FetchUser(ctx, "u1"); !svcerrors.Is(err, svcerrors.CodeNotFound) {
		t.Fatalf("rejected scans must not create the account, got %v", err)
	}
}

func TestRecordScanLooseModeFallsBack(t *testing.T) {
	svc, _, _ := newService(t, WithStrictStores(false))

	res := scan(t, svc, "u1", "nonexistent")
	if res.PointsAwarded != 5 || res.StoreName != "Unknown store" {
		t.Fatalf("expected default store value, got %+v", res)
	}
}

func TestRecordScanTestStore(t *testing.T) {
	clock := testutil.NewClock(start)
	svc := New(testCatalog(t, catalog.WithTestStore(true)), memory.New(), logger.NewNop(), WithClock(clock.Now))

	res := scan(t, svc, "u1", catalog.TestStoreID)
	if res.PointsAwarded != 5 {
		t.Fatalf("test store should earn the default value, got %d", res.PointsAwarded)
	}
}

func TestFetchUser(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.FetchUser(ctx, "unknown-id"); !svcerrors.Is(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.FetchUser(ctx, ""); !svcerrors.Is(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	scan(t, svc, "u1", "shibuya01")
	sum, err := svc.FetchUser(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sum.TotalPoints != 10 || len(sum.ScanHistory) != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestRecordScanSurfacesStoreErrors(t *testing.T) {
	clock := testutil.NewClock(start)
	faulty := testutil.NewFaultyStore(memory.New())
	svc := New(testCatalog(t), faulty, logger.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	faulty.Fail(testutil.OpIncrementPoints, fmt.Errorf("connection reset"))
	_, err := svc.RecordScan(ctx, ScanRequest{UserID: "u1", StoreID: "shibuya01"})
	if !svcerrors.Is(err, svcerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if svcErr, _ := svcerrors.As(err); svcErr.Message != "increment points: connection reset" {
		t.Fatalf("unexpected message %q", svcErr.Message)
	}

	// the failed transaction must leave nothing behind
	if _, err := svc.FetchUser(ctx, "u1"); !svcerrors.Is(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}

	res := scan(t, svc, "u1", "shibuya01")
	if res.IsDuplicate || res.User.TotalPoints != 10 {
		t.Fatalf("retry after failure should credit: %+v", res)
	}

	faulty.Fail(testutil.OpGetUser, fmt.Errorf("timeout"))
	if _, err := svc.FetchUser(ctx, "u1"); !svcerrors.Is(err, svcerrors.CodeInternal) {
		t.Fatalf("expected internal error from fetch, got %v", err)
	}
}

func TestRecordScanConcurrentSameUser(t *testing.T) {
	svc, _, _ := newService(t, WithLocker(locks.NewLocal()))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RecordScan(ctx, ScanRequest{UserID: "u1", StoreID: "shibuya01"})
			if err != nil {
				t.Errorf("scan: %v", err)
				return
			}
			if !res.IsDuplicate {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if credited != 1 {
		t.Fatalf("expected a single credit, got %d", credited)
	}
	sum, err := svc.FetchUser(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sum.TotalPoints != 10 || len(sum.ScanHistory) != 1 {
		t.Fatalf("double credit: %+v", sum)
	}
}
