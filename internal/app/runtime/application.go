package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/loyalty_layer/internal/app"
	"github.com/R3E-Network/loyalty_layer/internal/app/catalog"
	"github.com/R3E-Network/loyalty_layer/internal/app/httpapi"
	"github.com/R3E-Network/loyalty_layer/internal/app/services/scans"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage/memory"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage/postgres"
	"github.com/R3E-Network/loyalty_layer/internal/app/system"
	"github.com/R3E-Network/loyalty_layer/internal/config"
	"github.com/R3E-Network/loyalty_layer/internal/locks"
	"github.com/R3E-Network/loyalty_layer/internal/middleware"
	"github.com/R3E-Network/loyalty_layer/internal/platform/migrations"
	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sqlx.DB
	redis      *redis.Client
}

// NewApplication loads configuration from the environment and builds the
// application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(cfg, logger.New(cfg.Logging.Logger()))
}

// New builds an application from an explicit configuration.
func New(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("runtime")
	}

	cat, err := buildCatalog(cfg.Loyalty)
	if err != nil {
		return nil, fmt.Errorf("configure catalog: %w", err)
	}

	store, db, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	var (
		locker      locks.Locker
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = locks.NewRedis(redisClient, locks.RedisOptions{TTL: cfg.Redis.LockTTL})
		log.WithField("addr", cfg.Redis.Addr).Info("distributed user lock enabled")
	}

	application, err := app.New(app.Options{
		Store:   store,
		Backend: cfg.Loyalty.Storage,
		Catalog: cat,
		Locker:  locker,
		Scans: []scans.Option{
			scans.WithWindow(cfg.Loyalty.DuplicateWindow),
			scans.WithStrictStores(cfg.Loyalty.StrictStores),
		},
	}, log)
	if err != nil {
		closeAll(db, redisClient, log)
		return nil, err
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL, log.Named("ratelimit"))

		maintenance := system.NewCronService("maintenance", log.Named("cron"))
		if err := maintenance.AddJob(cfg.RateLimit.CleanupSchedule, "ratelimit-cleanup", func() {
			if removed := limiter.Cleanup(); removed > 0 {
				log.WithField("removed", removed).Debug("pruned idle rate limiters")
			}
		}); err != nil {
			closeAll(db, redisClient, log)
			return nil, err
		}
		if err := application.Attach(maintenance); err != nil {
			closeAll(db, redisClient, log)
			return nil, err
		}
	}

	handler := httpapi.NewHandler(application, httpapi.Config{
		Version:     Version,
		CORSOrigins: cfg.CORS.Origins(),
		RateLimiter: limiter,
	}, log.Named("http"))

	return &Application{
		cfg: cfg,
		log: log,
		app: application,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
		db:    db,
		redis: redisClient,
	}, nil
}

// App exposes the composed application.
func (a *Application) App() *app.Application { return a.app }

// Handler exposes the HTTP handler.
func (a *Application) Handler() http.Handler { return a.httpServer.Handler }

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.Server.Addr).
			WithField("storage", a.cfg.Loyalty.Storage).
			Info("HTTP server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, background services and
// backend connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	closeAll(a.db, a.redis, a.log)
	return errors.Join(errs...)
}

func buildCatalog(cfg config.LoyaltyConfig) (*catalog.Catalog, error) {
	opts := []catalog.Option{catalog.WithTestStore(cfg.AllowTestStore)}
	if cfg.CatalogFile == "" {
		return catalog.Default(opts...), nil
	}
	return catalog.Load(cfg.CatalogFile, opts...)
}

func buildStore(cfg *config.Config) (storage.LedgerStore, *sqlx.DB, error) {
	switch cfg.Loyalty.Storage {
	case config.StorageMemory:
		return memory.New(), nil, nil
	case config.StoragePostgres:
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.Migrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := migrations.Apply(ctx, db.DB); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		return postgres.New(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage %q", cfg.Loyalty.Storage)
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func closeAll(db *sqlx.DB, rdb *redis.Client, log *logger.Logger) {
	if db != nil {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("error closing database connection")
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("error closing redis client")
		}
	}
}
