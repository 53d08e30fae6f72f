package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tjfontaine/deployhook/internal/config"
	"github.com/tjfontaine/deployhook/internal/pipeline"
	"github.com/tjfontaine/deployhook/internal/project"
	"github.com/tjfontaine/deployhook/internal/storage"
	"github.com/tjfontaine/deployhook/internal/storage/memory"
	"github.com/tjfontaine/deployhook/internal/storage/sqlite"
)

const readHeaderTimeout = 10 * time.Second

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithConfig sets the service configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		s.cfg = cfg
		return nil
	}
}

// WithProjects sets the project configuration served by the pipeline.
func WithProjects(projects *project.Store) Option {
	return func(s *Service) error {
		s.projects = projects
		return nil
	}
}

// WithSQLite records deployment history in a SQLite database at path,
// overriding storage.type.
func WithSQLite(path string) Option {
	return func(s *Service) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		s.store = store
		return nil
	}
}

// WithMemoryStorage keeps deployment history in memory only.
func WithMemoryStorage() Option {
	return func(s *Service) error {
		s.store = memory.New()
		return nil
	}
}

// WithStorage sets a custom deployment store.
func WithStorage(store storage.DeploymentStore) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// WithRunner replaces the shell script runner.
func WithRunner(runner pipeline.ScriptRunner) Option {
	return func(s *Service) error {
		s.runner = runner
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}
