package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/R3E-Network/loyalty_layer/internal/config"
	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second},
		Loyalty: config.LoyaltyConfig{
			Storage:         config.StorageMemory,
			StrictStores:    true,
			DuplicateWindow: 24 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 100,
			Burst:             100,
			IdleTTL:           time.Minute,
			CleanupSchedule:   "@every 1m",
		},
		CORS: config.CORSConfig{AllowedOrigins: "*"},
	}
}

func TestNewWiresMemoryBackend(t *testing.T) {
	rt, err := New(testConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if rt.App().Backend != config.StorageMemory {
		t.Fatalf("backend = %s", rt.App().Backend)
	}

	ctx := context.Background()
	if err := rt.App().Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rt.App().Stop(ctx)

	req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(`{"userId":"u1","storeId":"shibuya01"}`))
	resp := httptest.NewRecorder()
	rt.Handler().ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestNewLoadsCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores.yaml")
	doc := "default:\n  name: Unknown\n  points: 1\nstores:\n  kichijoji01:\n    name: Kichijoji\n    points: 7\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cfg := testConfig()
	cfg.Loyalty.CatalogFile = path
	cfg.Loyalty.AllowTestStore = true
	rt, err := New(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	cat := rt.App().Catalog
	if cat.Lookup("kichijoji01").PointValue != 7 || !cat.IsValid("test") {
		t.Fatalf("catalog not loaded from file")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.CleanupSchedule = "whenever"
	if _, err := New(cfg, logger.NewNop()); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestRunAndShutdown(t *testing.T) {
	rt, err := New(testConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
