// Package httptransport assembles the chi router: the middleware chain every
// request runs through and the route groups each module mounts into.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "chariblock/internal/auth/handler"
	charityhandler "chariblock/internal/charity/handler"
	donationhandler "chariblock/internal/donation/handler"
	"chariblock/internal/platform/metrics"
	profilehandler "chariblock/internal/profile/handler"
	"chariblock/pkg/platform/httputil"
	"chariblock/pkg/platform/middleware/admin"
	auth "chariblock/pkg/platform/middleware/auth"
	"chariblock/pkg/platform/middleware/metadata"
	request "chariblock/pkg/platform/middleware/request"
	"chariblock/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Options are the transport settings taken from config.
type Options struct {
	RequestTimeout time.Duration
	// RequireSessions puts every write route behind a bearer token.
	RequireSessions bool
	// AdminToken guards the charity review route; empty disables the guard.
	AdminToken string
	// MediaDir serves locally stored documents under /media/documents/.
	MediaDir string
}

// Deps are the handlers and collaborators the router mounts.
type Deps struct {
	Profiles  *profilehandler.Handler
	Charities *charityhandler.Handler
	Donations *donationhandler.Handler
	Auth      *authhandler.Handler

	Validator   auth.JWTValidator
	Revocations auth.TokenRevocationChecker
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Health      map[string]HealthCheck
	Logger      *slog.Logger
}

// NewRouter wires all public endpoints.
func NewRouter(opts Options, deps Deps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	if opts.RequestTimeout > 0 {
		r.Use(request.Timeout(opts.RequestTimeout))
	}
	if deps.Metrics != nil {
		r.Use(request.LatencyMiddleware(deps.Metrics))
	}

	r.Get("/healthz", healthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.MediaDir != "" {
		r.Handle("/media/documents/*", http.StripPrefix("/media/documents/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	optional := auth.OptionalSession(deps.Validator, deps.Revocations, logger)
	required := auth.RequireSession(deps.Validator, deps.Revocations, logger)
	writeGate := optional
	if opts.RequireSessions {
		writeGate = required
	}

	r.Group(func(r chi.Router) {
		r.Use(optional)
		deps.Profiles.Register(r)
		deps.Charities.Register(r)
		deps.Donations.Register(r)
	})

	// Multipart submission; must stay outside the JSON content-type check.
	r.Group(func(r chi.Router) {
		r.Use(writeGate)
		deps.Charities.RegisterCreate(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)

		deps.Auth.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(required)
			deps.Auth.RegisterSession(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(writeGate)
			deps.Profiles.RegisterWrites(r)
			deps.Donations.RegisterWrites(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(opts.AdminToken, logger))
			deps.Charities.RegisterReview(r)
		})
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
