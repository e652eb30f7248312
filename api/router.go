package api

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/GoCodeAlone/phishvars/metrics"
	"github.com/GoCodeAlone/phishvars/observability/tracing"
	"github.com/GoCodeAlone/phishvars/personalize"
	"github.com/GoCodeAlone/phishvars/store"
	"go.opentelemetry.io/otel/trace"
)

// Config holds configuration for the API layer.
type Config struct {
	// MaxUploadBytes caps CSV import bodies. Defaults to 10 MiB.
	MaxUploadBytes int64

	// ImportRate and ImportBurst limit CSV imports per client IP.
	ImportRate  float64
	ImportBurst int

	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers identify the client. Other peers are limited by their own
	// address.
	TrustedProxies []netip.Prefix

	Logger *slog.Logger

	// Metrics is optional; when set, /metrics is served from it.
	Metrics *metrics.Collector

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Router serves every API route. Stop releases the rate limiter.
type Router struct {
	handler http.Handler
	mw      *Middleware
}

// NewRouter registers all routes against s and resolver.
func NewRouter(s store.Store, resolver *personalize.Resolver, cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mw := NewMiddleware(s, logger, cfg.Metrics)
	mw.trusted = cfg.TrustedProxies

	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, tracing.Route(pattern, mw.Observe(pattern, h), cfg.TracerProvider))
	}
	auth := func(fn http.HandlerFunc) http.Handler { return mw.RequireAuth(fn) }

	// --- Fields ---
	fieldH := NewFieldHandler(s, logger, cfg.Metrics)
	handle("GET /api/fields", auth(fieldH.List))
	handle("POST /api/fields", auth(fieldH.Create))
	handle("GET /api/fields/summary", auth(fieldH.Summaries))
	handle("GET /api/fields/{id}", auth(fieldH.Get))
	handle("GET /api/fields/{id}/summary", auth(fieldH.Summary))
	handle("PUT /api/fields/{id}", auth(fieldH.Update))
	handle("DELETE /api/fields/{id}", auth(fieldH.Delete))

	// --- Variables ---
	varH := NewVariableHandler(s, logger, cfg.Metrics)
	handle("GET /api/variables", auth(varH.List))
	handle("POST /api/variables", auth(varH.Create))
	handle("GET /api/variables/summary", auth(varH.Summaries))
	handle("GET /api/variables/{id}", auth(varH.Get))
	handle("GET /api/variables/{id}/summary", auth(varH.Summary))
	handle("PUT /api/variables/{id}", auth(varH.Update))
	handle("DELETE /api/variables/{id}", auth(varH.Delete))

	// --- Import (rate limited) ---
	importH := NewImportHandler(cfg.MaxUploadBytes, logger, cfg.Metrics)
	limit := mw.RateLimit(cfg.ImportRate, cfg.ImportBurst)
	handle("POST /api/import/field", limit(auth(importH.Fields)))
	handle("POST /api/import/variable", limit(auth(importH.Variables)))

	// --- Personalization ---
	persH := NewPersonalizeHandler(resolver, logger)
	handle("GET /api/personalize/{name}", auth(persH.Value))
	handle("POST /api/personalize/render", auth(persH.Render))

	// --- Health ---
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		mux.Handle("GET "+cfg.Metrics.Path(), cfg.Metrics.Handler())
	}

	return &Router{handler: mw.RequestID(mux), mw: mw}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Stop shuts down the rate limiter's cleanup goroutine.
func (rt *Router) Stop() { rt.mw.Stop() }
