package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/deployhook/internal/auth"
	"github.com/tjfontaine/deployhook/internal/domain"
	"github.com/tjfontaine/deployhook/internal/storage"
)

// maxBodyBytes bounds the size of an inbound build notification.
const maxBodyBytes = 1 << 20

// Deployer runs the deploy pipeline for one notification body.
type Deployer interface {
	Run(ctx context.Context, body []byte) (*domain.Deployment, error)
}

// History serves recorded deployments.
type History interface {
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	ListDeployments(ctx context.Context, opts storage.ListOptions) ([]*domain.Deployment, error)
}

// ProjectCounter reports how many projects are configured.
type ProjectCounter interface {
	Len() int
}

// Options configures a Server.
type Options struct {
	Deployer Deployer
	// History is optional; the /deployments routes are not mounted without it.
	History  History
	Projects ProjectCounter
	// Authenticator is optional; nil leaves every route open.
	Authenticator  *auth.Authenticator
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Server struct {
	Router *chi.Mux

	deployer Deployer
	history  History
	projects ProjectCounter
	logger   *slog.Logger
}

// New builds the webhook router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Router:   chi.NewRouter(),
		deployer: opts.Deployer,
		history:  opts.History,
		projects: opts.Projects,
		logger:   logger,
	}

	r := s.Router
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "deployhook")
	})

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if opts.Authenticator != nil {
			r.Use(AuthMiddleware(opts.Authenticator))
		}
		r.Post("/deploy", s.handleDeploy)
		if s.history != nil {
			r.Get("/deployments", s.handleListDeployments)
			r.Get("/deployments/{id}", s.handleGetDeployment)
		}
	})

	return s
}

// ServeHTTP makes Server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
