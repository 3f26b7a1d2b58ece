package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/esp-release-packager/internal/archive"
	"github.com/oshokin/esp-release-packager/internal/config"
	"github.com/oshokin/esp-release-packager/internal/flashscript"
	"github.com/oshokin/esp-release-packager/internal/logger"
	"github.com/oshokin/esp-release-packager/internal/manifest"
	"github.com/oshokin/esp-release-packager/internal/release"
	"github.com/oshokin/esp-release-packager/internal/secureboot"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to persist packaging settings
	// (defaults to esp-release-settings.yaml).
	ConfigPath string
	// BuildDir is the build directory holding the manifests and images;
	// empty resolves to build/ under the project root.
	BuildDir string
	// OutputDir overrides where the release archive is written.
	OutputDir string
	// SigningKey overrides the Secure Boot V2 signing key path.
	SigningKey string
	// Name is an optional custom label for the archive filename.
	Name string
}

const (
	// stagingPattern names the temporary directory holding generated
	// artifacts until they are zipped.
	stagingPattern = "esp-packager-*"

	// artifactFileMode is the permission set for staged non-executable files.
	artifactFileMode os.FileMode = 0o644
)

// errPackagerRunning indicates that an attempt was made to start the
// packager while another instance is already running.
var errPackagerRunning = errors.New("the packager is running now")

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "esp-packager")

	pkg, err := newPackager(ctx, opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	defer pkg.close(ctx)

	if err = pkg.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// packager assembles one release archive from a build directory.
// It is unexported, callers go through Run which handles setup and cleanup.
type packager struct {
	// cfg holds the flashing environment settings baked into the script.
	cfg *config.Config
	// opts are the caller-provided inputs.
	opts *Options

	// projectRoot anchors relative build, output, and key paths.
	projectRoot string
	// buildDir is the resolved build directory.
	buildDir string
	// outputDir is the resolved archive destination.
	outputDir string
	// tempDir is the staging directory, removed unconditionally on close.
	tempDir string
}

// newPackager creates a packager instance: refuses concurrent runs, loads
// and persists settings, and resolves the workspace directories.
func newPackager(ctx context.Context, opts *Options) (*packager, error) {
	if isPackagerRunning(ctx) {
		return nil, errPackagerRunning
	}

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.SigningKey != "" {
		cfg.SigningKey = opts.SigningKey
	}

	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	if err = config.Save(opts.ConfigPath, cfg); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	pkg := &packager{
		cfg:  cfg,
		opts: opts,
	}

	if err = pkg.resolveWorkspace(ctx); err != nil {
		return nil, err
	}

	if err = createRunMarker(); err != nil {
		return nil, fmt.Errorf("create run marker: %w", err)
	}

	return pkg, nil
}

// close releases the staging directory and the run marker.
func (p *packager) close(ctx context.Context) {
	if p.tempDir != "" {
		if err := os.RemoveAll(p.tempDir); err != nil {
			logger.Infof(ctx, "Unable to remove staging directory: %v", err)
		}
	}

	removeRunMarker(ctx)
}

// Run performs the packaging pipeline for one build directory.
func (p *packager) Run(ctx context.Context) error {
	flasher, err := manifest.LoadFlasher(p.buildDir)
	if err != nil {
		return err
	}

	project, err := manifest.LoadProject(p.buildDir)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Packaging release",
		"project", project.ProjectName,
		"version", project.ProjectVersion)

	if err = flasher.PrepareForRelease(ctx); err != nil {
		return err
	}

	p.tempDir, err = os.MkdirTemp("", stagingPattern)
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	if flasher.Security.SecureBoot {
		if err = p.generateDigest(ctx, flasher); err != nil {
			return err
		}
	}

	staged, err := p.stageArtifacts(ctx, flasher)
	if err != nil {
		return err
	}

	binaries := p.collectBinaries(ctx, flasher)

	descEntry, err := p.stageDescription(ctx, p.newDescription(ctx, project, flasher), staged, binaries)
	if err != nil {
		return err
	}

	entries := make([]archive.Entry, 0, len(staged)+len(binaries)+1)
	entries = append(entries, staged...)
	entries = append(entries, descEntry)
	entries = append(entries, binaries...)

	archivePath := filepath.Join(p.outputDir, release.ArchiveFilename(project, p.opts.Name))

	logger.InfoKV(ctx, "Creating release archive", "path", archivePath)

	if err = archive.Build(archivePath, entries); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Flash package ready", "path", archivePath)

	return nil
}

// generateDigest produces the Secure Boot public key digest in the staging
// directory and references it from the manifest's security section.
func (p *packager) generateDigest(ctx context.Context, flasher *manifest.FlasherManifest) error {
	keyPath := p.resolveSigningKey()

	logger.InfoKV(ctx, "Generating Secure Boot V2 public key digest", "signing_key", keyPath)

	digestPath := filepath.Join(p.tempDir, secureboot.DigestFilename)
	if err := secureboot.WriteDigestFile(ctx, keyPath, digestPath); err != nil {
		return fmt.Errorf("generate public key digest: %w", err)
	}

	flasher.Security.DigestFile = secureboot.DigestFilename

	return nil
}

// stageArtifacts serializes the prepared manifest and the flash script into
// the staging directory and lists them as archive entries.
func (p *packager) stageArtifacts(ctx context.Context, flasher *manifest.FlasherManifest) ([]archive.Entry, error) {
	contents, err := flasher.Marshal()
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(p.tempDir, manifest.FlasherFilename)
	if err = os.WriteFile(manifestPath, contents, artifactFileMode); err != nil {
		return nil, fmt.Errorf("write release manifest: %w", err)
	}

	logger.Info(ctx, "Rendering release flash script")

	script, err := flashscript.Render(flasher, flashscript.Params{
		Port: p.cfg.SerialPort,
		Baud: p.cfg.BaudRate,
		Tool: p.cfg.EsptoolCommand,
	})
	if err != nil {
		return nil, err
	}

	scriptPath := filepath.Join(p.tempDir, flashscript.ScriptFilename)
	if err = os.WriteFile(scriptPath, script, release.DefaultFileMode); err != nil {
		return nil, fmt.Errorf("write flash script: %w", err)
	}

	entries := []archive.Entry{
		{Name: manifest.FlasherFilename, Path: manifestPath},
		{Name: flashscript.ScriptFilename, Path: scriptPath, Mode: release.DefaultFileMode},
	}

	if flasher.Security.DigestFile != "" {
		entries = append(entries, archive.Entry{
			Name: flasher.Security.DigestFile,
			Path: filepath.Join(p.tempDir, flasher.Security.DigestFile),
		})
	}

	return entries, nil
}

// collectBinaries returns archive entries for the flash images the manifest
// references, skipping any the build directory does not contain.
func (p *packager) collectBinaries(ctx context.Context, flasher *manifest.FlasherManifest) []archive.Entry {
	flashEntries := flasher.FlashFiles.Entries()
	entries := make([]archive.Entry, 0, len(flashEntries))
	seen := make(map[string]struct{}, len(flashEntries))

	for _, flashEntry := range flashEntries {
		if _, ok := seen[flashEntry.File]; ok {
			continue
		}

		seen[flashEntry.File] = struct{}{}

		sourcePath := filepath.Join(p.buildDir, flashEntry.File)
		if _, err := os.Stat(sourcePath); err != nil {
			logger.WarnKV(ctx, "Flash image is missing, the archive will be incomplete",
				"file", flashEntry.File,
				"offset", flashEntry.Offset)

			continue
		}

		entries = append(entries, archive.Entry{Name: flashEntry.File, Path: sourcePath})
	}

	return entries
}

// newDescription assembles the release.yaml metadata for this build.
func (p *packager) newDescription(
	ctx context.Context,
	project *manifest.ProjectDescription,
	flasher *manifest.FlasherManifest,
) *release.Description {
	desc := release.NewDescription(project.ProjectName, project.ProjectVersion)
	desc.Chip = flasher.Esptool.Chip
	desc.SecureBoot = flasher.Security.SecureBoot
	desc.Encryption = flasher.Security.Encryption

	actor, err := release.DetectActor()
	if err != nil {
		// Provenance is informational; a release without it is still valid.
		logger.Warnf(ctx, "Unable to detect build actor: %v", err)
	} else {
		desc.Builder = actor
	}

	return desc
}

// stageDescription records checksums for every artifact group and writes
// release.yaml to the staging directory.
func (p *packager) stageDescription(
	ctx context.Context,
	desc *release.Description,
	artifactGroups ...[]archive.Entry,
) (archive.Entry, error) {
	for _, group := range artifactGroups {
		for _, entry := range group {
			checksum, err := release.ChecksumFile(entry.Path)
			if err != nil {
				return archive.Entry{}, fmt.Errorf("checksum %s: %w", entry.Name, err)
			}

			desc.RecordChecksum(entry.Name, checksum)
		}
	}

	contents, err := desc.Marshal()
	if err != nil {
		return archive.Entry{}, err
	}

	path := filepath.Join(p.tempDir, release.DescriptionFilename)
	if err = os.WriteFile(path, contents, artifactFileMode); err != nil {
		return archive.Entry{}, fmt.Errorf("write release description: %w", err)
	}

	logger.InfoKV(ctx, "Release description written", "files", len(desc.Files))

	return archive.Entry{Name: release.DescriptionFilename, Path: path}, nil
}
