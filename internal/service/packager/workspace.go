package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/esp-release-packager/internal/config"
	"github.com/oshokin/esp-release-packager/internal/logger"
)

// projectRootMarker identifies the project root while walking up from the
// working directory.
const projectRootMarker = ".git"

// outputDirMode is the permission set for created output directories.
const outputDirMode os.FileMode = 0o755

var errBuildDirMissing = errors.New("build directory not found")

// findProjectRoot walks up from the working directory until a directory
// carrying the root marker is found, falling back to the working directory.
func findProjectRoot() (string, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}

	current := workingDir

	for {
		if _, err = os.Stat(filepath.Join(current, projectRootMarker)); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return workingDir, nil
		}

		current = parent
	}
}

// resolveWorkspace determines the project root and the build and output
// directories, creating the output directory when needed. Relative output
// paths resolve against the project root.
func (p *packager) resolveWorkspace(ctx context.Context) error {
	root, err := findProjectRoot()
	if err != nil {
		return err
	}

	p.projectRoot = root

	p.buildDir = p.opts.BuildDir
	if p.buildDir == "" {
		p.buildDir = filepath.Join(root, config.DefaultBuildDirName)
	}

	info, err := os.Stat(p.buildDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", p.buildDir, errBuildDirMissing)
	}

	p.outputDir = p.cfg.OutputDir
	if p.outputDir == "" {
		p.outputDir = config.DefaultOutputDirName
	}

	if !filepath.IsAbs(p.outputDir) {
		p.outputDir = filepath.Join(root, p.outputDir)
	}

	if err = os.MkdirAll(p.outputDir, outputDirMode); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	logger.InfoKV(ctx, "Workspace resolved",
		"project_root", p.projectRoot,
		"build_dir", p.buildDir,
		"output_dir", p.outputDir)

	return nil
}

// resolveSigningKey returns the signing key location, resolving relative
// paths against the project root.
func (p *packager) resolveSigningKey() string {
	keyPath := p.cfg.SigningKey
	if !filepath.IsAbs(keyPath) {
		keyPath = filepath.Join(p.projectRoot, keyPath)
	}

	return keyPath
}
