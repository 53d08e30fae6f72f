package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/deployhook/internal/domain"
	"github.com/tjfontaine/deployhook/internal/storage"
)

// Store is an in-memory implementation of DeploymentStore
type Store struct {
	mu          sync.RWMutex
	deployments map[string]*domain.Deployment
	order       []string // insertion order, oldest first
}

var _ storage.DeploymentStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		deployments: make(map[string]*domain.Deployment),
	}
}

func (s *Store) SaveDeployment(ctx context.Context, d *domain.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deployments[d.ID]; exists {
		return fmt.Errorf("deployment %s already exists", d.ID)
	}

	stored := *d
	s.deployments[d.ID] = &stored
	s.order = append(s.order, d.ID)
	return nil
}

func (s *Store) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.deployments[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	out := *d
	return &out, nil
}

func (s *Store) ListDeployments(ctx context.Context, opts storage.ListOptions) ([]*domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Deployment{}
	for i := len(s.order) - 1; i >= 0; i-- {
		d := s.deployments[s.order[i]]
		if opts.Project != "" && d.Project != opts.Project {
			continue
		}
		out := *d
		result = append(result, &out)
	}

	// Newest first; insertion order breaks ties
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	// Simple pagination
	start := opts.Offset
	if start >= len(result) {
		return []*domain.Deployment{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	end := start + limit
	if end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}
