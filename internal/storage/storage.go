// Package storage defines persistence for deployment history.
package storage

import (
	"context"
	"errors"

	"github.com/tjfontaine/deployhook/internal/domain"
)

// ErrNotFound is returned when a deployment ID is unknown.
var ErrNotFound = errors.New("deployment not found")

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 50

// DeploymentStore records pipeline runs.
// Implementations: SQLite (default), in-memory.
type DeploymentStore interface {
	SaveDeployment(ctx context.Context, d *domain.Deployment) error
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	// ListDeployments returns deployments newest first.
	ListDeployments(ctx context.Context, opts ListOptions) ([]*domain.Deployment, error)
	Close() error
}

// ListOptions filters and paginates ListDeployments.
type ListOptions struct {
	Project string
	Limit   int
	Offset  int
}
