package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/loyalty_layer/internal/app"
	"github.com/R3E-Network/loyalty_layer/internal/app/catalog"
	"github.com/R3E-Network/loyalty_layer/internal/app/metrics"
	"github.com/R3E-Network/loyalty_layer/internal/app/services/scans"
	"github.com/R3E-Network/loyalty_layer/internal/httputil"
	"github.com/R3E-Network/loyalty_layer/internal/middleware"
	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "loyalty-layer"

// Config controls the optional outer layers of the API.
type Config struct {
	Version     string
	CORSOrigins []string
	RateLimiter *middleware.RateLimiter
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	log     *logger.Logger
	version string
}

// NewHandler returns the router exposing the loyalty API wrapped in the
// tracing, logging and CORS layers.
func NewHandler(application *app.Application, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log, version: cfg.Version}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.Use(middleware.Metrics)

	limit := func(fn http.HandlerFunc) http.Handler {
		if cfg.RateLimiter == nil {
			return fn
		}
		return cfg.RateLimiter.Handler(fn)
	}
	router.Handle("/scan", limit(h.recordScan)).Methods(http.MethodPost)
	router.Handle("/scan", limit(h.fetchUser)).Methods(http.MethodGet)

	router.HandleFunc("/stores", h.listStores).Methods(http.MethodGet)
	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	var root http.Handler = router
	root = middleware.Logging(log)(root)
	if len(cfg.CORSOrigins) > 0 {
		root = middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(root)
	}
	return middleware.Tracing(root)
}

func (h *handler) recordScan(w http.ResponseWriter, r *http.Request) {
	var req scans.ScanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	result, err := h.app.Scans.RecordScan(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *handler) fetchUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		httputil.BadRequest(w, "userId is required")
		return
	}

	summary, err := h.app.Scans.FetchUser(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

type storesResponse struct {
	Default  catalog.Definition   `json:"default"`
	Stores   []catalog.Definition `json:"stores"`
	TestMode bool                 `json:"testMode"`
}

func (h *handler) listStores(w http.ResponseWriter, r *http.Request) {
	cat := h.app.Catalog
	httputil.WriteJSON(w, http.StatusOK, storesResponse{
		Default:  cat.Fallback(),
		Stores:   cat.List(),
		TestMode: cat.TestMode(),
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version,omitempty"`
	Backend   string    `json:"backend"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Service:   ServiceName,
		Version:   h.version,
		Backend:   h.app.Backend,
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK
	if err := h.app.Ping(ctx); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("health check failed")
		resp.Status = "degraded"
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
