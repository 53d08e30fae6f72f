package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tjfontaine/deployhook/internal/domain"
)

// ConcurrencyPolicy decides what happens when a project is already deploying.
type ConcurrencyPolicy string

const (
	// PolicyQueue waits for the running deployment to finish.
	PolicyQueue ConcurrencyPolicy = "queue"

	// PolicyReject fails the new deployment with deploy_in_progress.
	PolicyReject ConcurrencyPolicy = "reject"
)

// projectLocks holds one single-slot semaphore per project.
type projectLocks struct {
	policy ConcurrencyPolicy

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newProjectLocks(policy ConcurrencyPolicy) *projectLocks {
	if policy == "" {
		policy = PolicyQueue
	}
	return &projectLocks{
		policy: policy,
		sems:   make(map[string]*semaphore.Weighted),
	}
}

func (l *projectLocks) get(project string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[project]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[project] = sem
	}
	return sem
}

// acquire takes the project's lock according to the policy. The returned
// release func must be called exactly once.
func (l *projectLocks) acquire(ctx context.Context, project string) (func(), error) {
	sem := l.get(project)

	if l.policy == PolicyReject {
		if !sem.TryAcquire(1) {
			return nil, domain.ErrDeployInProgress()
		}
		return func() { sem.Release(1) }, nil
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, domain.ErrDeployInProgress().WithCause(err)
	}
	return func() { sem.Release(1) }, nil
}
