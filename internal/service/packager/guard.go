package packager

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/esp-release-packager/internal/config"
	"github.com/oshokin/esp-release-packager/internal/logger"
	"github.com/oshokin/esp-release-packager/internal/version"
)

const (
	// MarkerFilename marks that a packager run is in progress to avoid two
	// runs writing into the same output at once.
	MarkerFilename = ".esp-packager-marker"

	// markerLifetime is the period after which a run marker without a live
	// packager process behind it counts as stale.
	markerLifetime = 30 * time.Second

	// basePackagerExecutable is the process name scanned for when a stale
	// marker is found; platform helpers append the extension when needed.
	basePackagerExecutable = "esp-packager"
)

// isPackagerRunning checks for a concurrent packaging run: a fresh marker
// file, or a live packager process holding a stale one. Stale markers left
// by crashed runs are cleaned up; live processes are never touched.
func isPackagerRunning(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of a run marker")

	info, err := os.Stat(MarkerFilename)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	if err != nil {
		logger.Infof(ctx, "Unable to read run marker: %v", err)
		return false
	}

	if time.Since(info.ModTime()) <= markerLifetime {
		return true
	}

	logger.Info(ctx, "The run marker is too old, checking for a live packager process")

	if otherPackagerExists(ctx) {
		return true
	}

	if err = os.Remove(MarkerFilename); err != nil {
		logger.Infof(ctx, "Unable to remove stale run marker: %v", err)
		return true
	}

	return false
}

// otherPackagerExists scans the process table for another packager instance.
func otherPackagerExists(ctx context.Context) bool {
	processList, err := ps.Processes()
	if err != nil {
		// Without a process list the marker's owner may still be alive.
		logger.Infof(ctx, "Unable to list processes: %v", err)
		return true
	}

	thisProcessID := os.Getpid()
	executable := basePackagerExecutable + getExecutableExtension()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executable {
			return true
		}
	}

	return false
}

// createRunMarker writes the marker file for this run.
func createRunMarker() error {
	return os.WriteFile(MarkerFilename, []byte(version.Short()), config.DefaultFilePermissions)
}

// removeRunMarker deletes this run's marker.
func removeRunMarker(ctx context.Context) {
	if err := os.Remove(MarkerFilename); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Infof(ctx, "Unable to remove run marker: %v", err)
	}
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}
