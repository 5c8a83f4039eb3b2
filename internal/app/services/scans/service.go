package scans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/R3E-Network/loyalty_layer/internal/app/catalog"
	"github.com/R3E-Network/loyalty_layer/internal/app/domain/loyalty"
	"github.com/R3E-Network/loyalty_layer/internal/app/metrics"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage"
	svcerrors "github.com/R3E-Network/loyalty_layer/internal/errors"
	"github.com/R3E-Network/loyalty_layer/internal/locks"
	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

const (
	// DefaultWindow is how long a credited scan blocks another credit for the
	// same user and store.
	DefaultWindow = 24 * time.Hour

	// RecentHistoryLimit caps the history returned after a scan.
	RecentHistoryLimit = 10
)

// ScanRequest is one QR check-in.
type ScanRequest struct {
	UserID      string `json:"userId"`
	StoreID     string `json:"storeId"`
	DisplayName string `json:"displayName,omitempty"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

// ScanResult is returned for every processed scan, duplicates included.
type ScanResult struct {
	Success       bool            `json:"success"`
	IsDuplicate   bool            `json:"isDuplicate"`
	PointsAwarded int64           `json:"pointsAwarded"`
	User          loyalty.Summary `json:"user"`
	StoreName     string          `json:"storeName"`
}

// Service processes scans against the ledger.
type Service struct {
	catalog *catalog.Catalog
	store   storage.LedgerStore
	locker  locks.Locker
	log     *logger.Logger
	now     func() time.Time
	window  time.Duration
	strict  bool
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker serialises scans per user across instances in addition to the
// store's own Atomic guarantee.
func WithLocker(l locks.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithWindow overrides the duplicate window.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithStrictStores toggles rejection of unknown store ids. Enabled by default;
// when disabled unknown stores earn the catalog default.
func WithStrictStores(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// New constructs a scan service.
func New(cat *catalog.Catalog, store storage.LedgerStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("scans")
	}
	if cat == nil {
		cat = catalog.Default()
	}
	s := &Service{
		catalog: cat,
		store:   store,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		window:  DefaultWindow,
		strict:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog exposes the store catalog used for lookups.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// RecordScan credits a store visit unless the same user already scanned the
// same store inside the window. Profile fields are upserted either way.
func (s *Service) RecordScan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	start := time.Now()
	req.UserID = strings.TrimSpace(req.UserID)
	req.StoreID = strings.TrimSpace(req.StoreID)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.PictureURL = strings.TrimSpace(req.PictureURL)

	if req.UserID == "" || req.StoreID == "" {
		metrics.RecordScan(metrics.ScanRejected, req.StoreID, 0, time.Since(start))
		return ScanResult{}, svcerrors.Validation("userId and storeId are required")
	}
	if s.strict && !s.catalog.IsValid(req.StoreID) {
		metrics.RecordScan(metrics.ScanRejected, req.StoreID, 0, time.Since(start))
		s.log.WithField("store_id", req.StoreID).Warn("scan rejected: unknown store")
		return ScanResult{}, svcerrors.Validation("invalid storeId: %s", req.StoreID).WithDetail("storeId", req.StoreID)
	}

	def := s.catalog.Lookup(req.StoreID)
	now := s.now()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, req.UserID)
		if err != nil {
			metrics.RecordScan(metrics.ScanFailed, req.StoreID, 0, time.Since(start))
			return ScanResult{}, svcerrors.Internal(fmt.Errorf("lock user %s: %w", req.UserID, err))
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				s.log.WithError(err).WithField("user_id", req.UserID).Warn("release user lock")
			}
		}()
	}

	var (
		result = ScanResult{Success: true, StoreName: def.DisplayName}
		user   loyalty.User
		recent []loyalty.ScanRecord
	)
	err := s.store.Atomic(ctx, req.UserID, func(tx storage.LedgerStore) error {
		var err error
		user, err = tx.UpsertUser(ctx, loyalty.Profile{
			UserID:      req.UserID,
			DisplayName: req.DisplayName,
			PictureURL:  req.PictureURL,
		})
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		dup, err := tx.HasScanSince(ctx, req.UserID, req.StoreID, now.Add(-s.window))
		if err != nil {
			return fmt.Errorf("check recent scans: %w", err)
		}
		result.IsDuplicate = dup

		if !dup {
			if _, err := tx.AppendScan(ctx, loyalty.ScanRecord{
				UserID:    req.UserID,
				StoreID:   req.StoreID,
				Timestamp: now,
				Points:    def.PointValue,
			}); err != nil {
				return fmt.Errorf("append scan: %w", err)
			}
			total, err := tx.IncrementPoints(ctx, req.UserID, def.PointValue)
			if err != nil {
				return fmt.Errorf("increment points: %w", err)
			}
			user.TotalPoints = total
			result.PointsAwarded = def.PointValue
		}

		recent, err = tx.ListScans(ctx, req.UserID, RecentHistoryLimit)
		if err != nil {
			return fmt.Errorf("list scans: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordScan(metrics.ScanFailed, req.StoreID, 0, time.Since(start))
		s.log.WithError(err).
			WithField("user_id", req.UserID).
			WithField("store_id", req.StoreID).
			Error("scan failed")
		return ScanResult{}, svcerrors.Internal(err)
	}

	result.User = loyalty.NewSummary(user, recent)

	outcome := metrics.ScanCredited
	if result.IsDuplicate {
		outcome = metrics.ScanDuplicate
	}
	metrics.RecordScan(outcome, req.StoreID, result.PointsAwarded, time.Since(start))

	s.log.WithField("user_id", user.UserID).
		WithField("store_id", req.StoreID).
		WithField("duplicate", result.IsDuplicate).
		WithField("points_awarded", result.PointsAwarded).
		WithField("total_points", user.TotalPoints).
		WithField("history_len", len(recent)).
		Info("scan processed")
	return result, nil
}

// FetchUser returns the account with its full history, newest first.
func (s *Service) FetchUser(ctx context.Context, userID string) (loyalty.Summary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return loyalty.Summary{}, svcerrors.Validation("userId is required")
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.WithField("user_id", userID).Info("user not found")
			return loyalty.Summary{}, svcerrors.NotFound("User not found")
		}
		s.log.WithError(err).WithField("user_id", userID).Error("fetch user failed")
		return loyalty.Summary{}, svcerrors.Internal(err)
	}

	history, err := s.store.ListScans(ctx, userID, 0)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return loyalty.Summary{}, svcerrors.NotFound("User not found")
		}
		s.log.WithError(err).WithField("user_id", userID).Error("list scans failed")
		return loyalty.Summary{}, svcerrors.Internal(err)
	}
	return loyalty.NewSummary(user, history), nil
}
