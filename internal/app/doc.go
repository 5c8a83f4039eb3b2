// Package app is the composition layer of the loyalty ledger.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── catalog/            # Store catalog (point values, display names)
//	├── domain/loyalty/     # Ledger models (users, scan records, summaries)
//	├── storage/            # LedgerStore interface and implementations
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/scans/     # Scan processing and account lookup
//	├── httpapi/            # HTTP routes and handlers
//	├── metrics/            # Prometheus collectors
//	├── runtime/            # Config-driven process wiring
//	└── system/             # Service lifecycle and cron maintenance
//
// # Dependency Direction
//
//	cmd/loyaltyd/
//	      │
//	      ▼
//	internal/app/runtime ──► internal/config
//	      │
//	      ▼
//	internal/app (composition)
//	      │
//	      ├──► services/scans ──► catalog, storage, internal/locks
//	      │
//	      └──► httpapi ──► internal/middleware, internal/httputil
//
// Business rules live in services/scans. Handlers translate HTTP to service
// calls and map internal/errors codes to status codes.
package app
