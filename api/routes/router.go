package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trekjournal/media-proxy/api/controllers"
	"github.com/trekjournal/media-proxy/api/middleware"
	"github.com/trekjournal/media-proxy/api/responses"
	"github.com/trekjournal/media-proxy/internal/accesscontrol"
	"github.com/trekjournal/media-proxy/internal/mcp"
	"github.com/trekjournal/media-proxy/internal/objects"
	"github.com/trekjournal/media-proxy/pkg/config"
	pkgerrors "github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
	"github.com/trekjournal/media-proxy/pkg/metrics"
)

// Deps carries everything the router wires into its handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Verifier    middleware.TokenVerifier
	Checker     *accesscontrol.Checker
	Objects     *objects.Service
	MCP         *mcp.Gateway
	RateLimiter middleware.RateLimiterStore
	HTTPMetrics *metrics.HTTPMetrics
	Readiness   map[string]controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/mcp", controllers.MCP(deps.MCP, logg))

	r.With(
		middleware.Auth(deps.Verifier, logg),
		middleware.UploadRateLimit(cfg.RateLimit, deps.RateLimiter, logg),
	).Post("/upload/journeys/{journeyID}/photos", controllers.UploadPhoto(deps.Objects, deps.Checker, logg))

	r.With(middleware.Auth(deps.Verifier, logg)).
		Delete("/journeys/{journeyID}/photos/{photoID}", controllers.DeletePhoto(deps.Objects, deps.Checker, logg))

	r.Get("/public/*", controllers.ServePublic(deps.Objects, logg))

	// All journey media, including thumbs/ variants, goes through the
	// viewer access check.
	r.With(middleware.AuthOptional(deps.Verifier, logg)).
		Get("/journeys/{journeyID}/*", controllers.ServeJourneyPhoto(deps.Objects, deps.Checker, logg))

	// Any other GET path requires a verified identity with no further
	// journey scoping.
	r.With(middleware.Auth(deps.Verifier, logg)).
		Get("/*", controllers.ServeProtected(deps.Objects, logg))

	// POST and DELETE to unmatched paths are client mistakes, not routing
	// gaps; everything else is an unsupported method.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodDelete:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown path for "+r.Method))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	return r
}
