// Package release holds the metadata surrounding a packaged firmware
// release: the release.yaml description with artifact checksums and build
// provenance, and the naming rules for the archive itself.
package release
