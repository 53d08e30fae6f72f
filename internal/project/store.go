// Package project holds the read-only project configuration consulted by the
// deploy pipeline.
package project

import (
	"sort"

	"github.com/tjfontaine/deployhook/internal/domain"
)

// Store maps project names to their deployment configuration.
// It is built once at startup and never mutated, so it is safe for
// concurrent use without locking.
type Store struct {
	projects map[string]domain.Project
}

// NewStore creates a store from a copy of projects. The map key is
// authoritative for each project's name.
func NewStore(projects map[string]domain.Project) *Store {
	s := &Store{
		projects: make(map[string]domain.Project, len(projects)),
	}
	for name, p := range projects {
		p.Name = name
		s.projects[name] = p
	}
	return s
}

// Lookup returns the project configured for name.
func (s *Store) Lookup(name string) (domain.Project, bool) {
	p, ok := s.projects[name]
	return p, ok
}

// Len returns the number of configured projects.
func (s *Store) Len() int {
	return len(s.projects)
}

// Names returns the configured project names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.projects))
	for name := range s.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
