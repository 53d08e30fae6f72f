// Package runtime wires configuration, storage, the deploy pipeline and the
// HTTP server into a Service with a start/shutdown lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/tjfontaine/deployhook/internal/auth"
	"github.com/tjfontaine/deployhook/internal/config"
	"github.com/tjfontaine/deployhook/internal/pipeline"
	"github.com/tjfontaine/deployhook/internal/project"
	"github.com/tjfontaine/deployhook/internal/server"
	"github.com/tjfontaine/deployhook/internal/storage"
	"github.com/tjfontaine/deployhook/internal/storage/memory"
	"github.com/tjfontaine/deployhook/internal/storage/sqlite"
)

// Service runs the deploy webhook receiver.
type Service struct {
	// Dependencies (injected via options)
	cfg      *config.Config
	projects *project.Store
	store    storage.DeploymentStore
	runner   pipeline.ScriptRunner
	logger   *slog.Logger

	// Internal state
	pipeline *pipeline.Pipeline
	handler  http.Handler
	server   *http.Server
	listener net.Listener
	done     chan struct{}

	mu sync.Mutex
}

// New creates a Service. WithConfig and WithProjects are required. Without a
// storage option the store named by storage.type in the config is opened.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if s.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig)")
	}
	if s.projects == nil {
		return nil, fmt.Errorf("projects required (use WithProjects)")
	}

	if s.store == nil {
		if err := s.openConfiguredStore(); err != nil {
			return nil, err
		}
	}

	if s.runner == nil {
		s.runner = pipeline.NewShellRunner(s.cfg.Deploy.Shell, s.cfg.Deploy.MaxOutputBytes)
	}

	s.pipeline = s.newPipeline()
	s.handler = s.newServer()

	return s, nil
}

func (s *Service) openConfiguredStore() error {
	switch s.cfg.Storage.Type {
	case "sqlite":
		store, err := sqlite.New(s.cfg.Storage.SQLite.Path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		s.store = store
	case "memory":
		s.store = memory.New()
	case "none", "":
		s.logger.Info("deployment history disabled")
	default:
		return fmt.Errorf("unknown storage type %q", s.cfg.Storage.Type)
	}
	return nil
}

func (s *Service) newPipeline() *pipeline.Pipeline {
	opts := pipeline.Options{
		Runner:      s.runner,
		Concurrency: pipeline.ConcurrencyPolicy(s.cfg.Deploy.Concurrency),
		Timeout:     s.cfg.Deploy.Timeout,
		Logger:      s.logger,
	}
	if s.store != nil {
		opts.Recorder = s.store
	}
	return pipeline.New(s.projects, opts)
}

func (s *Service) newServer() http.Handler {
	opts := server.Options{
		Deployer:       s.pipeline,
		Projects:       s.projects,
		Authenticator:  auth.NewAuthenticator(s.cfg.Auth.KeyHashes),
		RequestTimeout: s.cfg.Server.RequestTimeout,
		Logger:         s.logger,
	}
	if s.store != nil {
		opts.History = s.store
	}
	if opts.Authenticator == nil {
		s.logger.Warn("no auth.key_hashes configured, webhook accepts unauthenticated requests")
	}
	return server.New(opts)
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Start binds the configured address and serves in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("service already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Addr(), err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("deployhook started",
		slog.String("addr", ln.Addr().String()),
		slog.Int("projects", s.projects.Len()),
		slog.String("storage", s.cfg.Storage.Type),
		slog.String("concurrency", s.cfg.Deploy.Concurrency),
	)

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, waits for in-flight deployments to
// finish (bounded by ctx) and closes storage.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("shutting down deployhook")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
		<-s.done
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("deployhook shutdown complete")
	return nil
}
