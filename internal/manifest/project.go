package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ProjectFilename is the project descriptor name produced by the build system.
const ProjectFilename = "project_description.json"

// Placeholders for builds whose descriptor lacks a name or version.
const (
	fallbackProjectName    = "unknown_project"
	fallbackProjectVersion = "0.0.0"
)

// ProjectDescription is the subset of the build system's project descriptor
// used to name release archives. The file is read, never modified.
type ProjectDescription struct {
	ProjectName    string `json:"project_name"`
	ProjectVersion string `json:"project_version"`
}

// LoadProject reads project_description.json from a build directory.
// A missing project name or version falls back to a placeholder so
// packaging can proceed for builds with incomplete descriptors.
func LoadProject(buildDir string) (*ProjectDescription, error) {
	path := filepath.Join(buildDir, ProjectFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project descriptor: %w", err)
	}

	var project ProjectDescription

	if err = json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("decode project descriptor %s: %w", path, err)
	}

	if project.ProjectName == "" {
		project.ProjectName = fallbackProjectName
	}

	if project.ProjectVersion == "" {
		project.ProjectVersion = fallbackProjectVersion
	}

	return &project, nil
}
