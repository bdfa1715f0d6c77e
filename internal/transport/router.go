package transport

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/config"
	"github.com/pitabwire/backoffice/internal/listing"
	"github.com/pitabwire/backoffice/internal/observability"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Views     *listing.Provider
	Sessions  *listing.Sessions
	Readiness observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness and metrics endpoints skip the
// request context and timeout layers.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, observability.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Get("/ui/views/{viewId}", handleGetView(deps.Views))
		r.Get("/ui/views/{viewId}/data", handleGetViewData(deps.Views))
		r.Post("/ui/views/{viewId}/sessions", handleOpenSession(deps.Sessions))

		r.Get("/ui/sessions/{sessionId}", handleDescribeSession(deps.Sessions))
		r.Post("/ui/sessions/{sessionId}/events", handleSessionEvent(deps.Sessions))
		r.Delete("/ui/sessions/{sessionId}", handleCloseSession(deps.Sessions))

		r.Get("/ui/options/{capability}", handleGetOptions(deps.Views))
	})

	return r
}
