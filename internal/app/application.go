package app

import (
	"context"
	"fmt"

	"github.com/R3E-Network/loyalty_layer/internal/app/catalog"
	"github.com/R3E-Network/loyalty_layer/internal/app/services/scans"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage"
	"github.com/R3E-Network/loyalty_layer/internal/app/storage/memory"
	"github.com/R3E-Network/loyalty_layer/internal/app/system"
	"github.com/R3E-Network/loyalty_layer/internal/locks"
	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

// Options selects the collaborators of an Application. Zero values default to
// the in-memory store and the built-in store catalog.
type Options struct {
	Store   storage.LedgerStore
	Backend string
	Catalog *catalog.Catalog
	Locker  locks.Locker
	Scans   []scans.Option
}

// Application ties the scan service to its collaborators and manages the
// lifecycle of background services.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store   storage.LedgerStore
	Backend string
	Catalog *catalog.Catalog
	Scans   *scans.Service
}

// New builds a fully initialised application.
func New(opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Store == nil {
		opts.Store = memory.New()
		opts.Backend = "memory"
	}
	if opts.Backend == "" {
		opts.Backend = "custom"
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}

	scanOpts := append([]scans.Option{}, opts.Scans...)
	if opts.Locker != nil {
		scanOpts = append(scanOpts, scans.WithLocker(opts.Locker))
	}
	scanService := scans.New(opts.Catalog, opts.Store, log.Named("scans"), scanOpts...)

	manager := system.NewManager()
	if err := manager.Register(system.NoopService{ServiceName: "scans"}); err != nil {
		return nil, fmt.Errorf("register scans service: %w", err)
	}

	return &Application{
		manager: manager,
		log:     log,
		Store:   opts.Store,
		Backend: opts.Backend,
		Catalog: opts.Catalog,
		Scans:   scanService,
	}, nil
}

// Ping reports backend health for the configured store.
func (a *Application) Ping(ctx context.Context) error {
	if p, ok := a.Store.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
