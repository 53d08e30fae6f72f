package pipeline

import (
	"github.com/tjfontaine/deployhook/internal/domain"
)

// ProjectLookup finds the configuration of a project by repository name.
type ProjectLookup interface {
	Lookup(name string) (domain.Project, bool)
}

// ResolveProject maps a validated notification to its project configuration.
// The checks run in order: project exists, ref matches the configured branch,
// build succeeded. Comparisons are exact.
func ResolveProject(n domain.BuildNotification, projects ProjectLookup) (domain.Project, error) {
	project, ok := projects.Lookup(n.Repository.Name)
	if !ok {
		return domain.Project{}, domain.ErrProjectNotFound(n.Repository.Name)
	}

	if n.Ref != project.Branch {
		return domain.Project{}, domain.ErrBranchMismatch()
	}

	if n.BuildStatus != domain.SuccessStatus {
		return domain.Project{}, domain.ErrBuildNotSuccessful()
	}

	return project, nil
}
