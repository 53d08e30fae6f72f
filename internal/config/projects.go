package config

import (
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/deployhook/internal/domain"
)

// projectsDelim never occurs in repository names, which may contain dots.
const projectsDelim = "/"

// LoadProjects reads the project configuration document at path. The document
// maps project name to {branch, script} and may be JSON or YAML.
func LoadProjects(path string) (map[string]domain.Project, error) {
	k := koanf.New(projectsDelim)

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load projects from %s: %w", path, err)
	}

	var raw map[string]domain.Project
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("decode projects from %s: %w", path, err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	projects := make(map[string]domain.Project, len(raw))
	for _, name := range names {
		p := raw[name]
		if p.Branch == "" {
			return nil, fmt.Errorf("project %q: branch must not be empty", name)
		}
		if p.Script == "" {
			return nil, fmt.Errorf("project %q: script must not be empty", name)
		}
		p.Name = name
		projects[name] = p
	}

	return projects, nil
}
