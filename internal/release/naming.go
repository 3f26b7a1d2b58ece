package release

import (
	"regexp"
	"strings"

	"github.com/oshokin/esp-release-packager/internal/manifest"
)

// ArchiveExtension is the release archive file extension.
const ArchiveExtension = ".zip"

// fallbackLabel names archives whose build reports no usable version.
const fallbackLabel = "latest"

var (
	// dirtySuffixPattern matches the marker git describe appends to builds
	// with uncommitted changes.
	dirtySuffixPattern = regexp.MustCompile(`-dirty$`)

	// versionPattern extracts a semantic-looking version ("v0.0.1", "1.2")
	// from whatever the build system reports.
	versionPattern = regexp.MustCompile(`v?\d+\.\d+(\.\d+)?`)
)

// ArchiveFilename derives the release archive name from the project
// descriptor. A non-empty custom label wins over the project version;
// spaces in it become underscores so the name stays shell-friendly.
func ArchiveFilename(project *manifest.ProjectDescription, customLabel string) string {
	label := strings.TrimSpace(customLabel)
	if label != "" {
		label = strings.ReplaceAll(label, " ", "_")
	} else {
		label = versionLabel(project.ProjectVersion)
	}

	return project.ProjectName + "_" + label + ArchiveExtension
}

// versionLabel reduces a build version to an archive-friendly label:
// the -dirty suffix goes, a semantic version is preferred, and builds
// reporting nothing usable fall back to a fixed label.
func versionLabel(version string) string {
	cleaned := dirtySuffixPattern.ReplaceAllString(strings.TrimSpace(version), "")

	if match := versionPattern.FindString(cleaned); match != "" {
		return match
	}

	if cleaned != "" {
		return cleaned
	}

	return fallbackLabel
}
