package verifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/oshokin/esp-release-packager/internal/archive"
	"github.com/oshokin/esp-release-packager/internal/flashscript"
	"github.com/oshokin/esp-release-packager/internal/logger"
	"github.com/oshokin/esp-release-packager/internal/manifest"
	"github.com/oshokin/esp-release-packager/internal/release"
)

// Options contains inputs for the verifier entry point.
type Options struct {
	// ArchivePath is the release archive to verify.
	ArchivePath string
}

// ErrVerificationFailed reports that the archive failed at least one check.
var ErrVerificationFailed = errors.New("release verification failed")

// scriptShebang is what a rendered flash script must start with.
const scriptShebang = "#!/bin/bash"

// Run verifies a packaged release archive: structure, manifest consistency,
// and artifact checksums.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "esp-verifier")

	logger.InfoKV(ctx, "Verifying release archive", "path", opts.ArchivePath)

	reader, err := archive.Open(opts.ArchivePath)
	if err != nil {
		return err
	}

	defer func() {
		// Best-effort cleanup.
		_ = reader.Close()
	}()

	v := &verifier{reader: reader}

	problems := v.verify()
	if len(problems) > 0 {
		for _, problem := range problems {
			logger.ErrorKV(ctx, "Verification problem", "detail", problem)
		}

		return fmt.Errorf("%w: %d problems found", ErrVerificationFailed, len(problems))
	}

	logger.InfoKV(ctx, "Release archive verified", "members", len(reader.Names()))

	return nil
}

// verifier accumulates problems found in a single archive.
type verifier struct {
	reader   *archive.Reader
	problems []string
}

// addProblem records one verification failure.
func (v *verifier) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// verify runs every check and returns the collected problems.
func (v *verifier) verify() []string {
	desc := v.loadDescription()
	flasher := v.loadManifest()

	v.checkScript()

	if flasher != nil {
		v.checkSecurity(flasher)
		v.checkWriteFlashArgs(flasher)
		v.checkImages(flasher)

		if desc != nil {
			v.checkDescriptionMatches(desc, flasher)
		}
	}

	if desc != nil {
		v.checkChecksums(desc)
	}

	return v.problems
}

// loadDescription reads and parses release.yaml.
func (v *verifier) loadDescription() *release.Description {
	contents, err := v.reader.ReadFile(release.DescriptionFilename)
	if err != nil {
		v.addProblem("%s: %v", release.DescriptionFilename, err)
		return nil
	}

	desc, err := release.ParseDescription(contents)
	if err != nil {
		v.addProblem("%s: %v", release.DescriptionFilename, err)
		return nil
	}

	return desc
}

// loadManifest reads and parses the release flasher manifest.
func (v *verifier) loadManifest() *manifest.FlasherManifest {
	contents, err := v.reader.ReadFile(manifest.FlasherFilename)
	if err != nil {
		v.addProblem("%s: %v", manifest.FlasherFilename, err)
		return nil
	}

	flasher, err := manifest.ParseFlasher(contents)
	if err != nil {
		v.addProblem("%s: %v", manifest.FlasherFilename, err)
		return nil
	}

	return flasher
}

// checkScript requires a flash script that looks like a shell script.
func (v *verifier) checkScript() {
	contents, err := v.reader.ReadFile(flashscript.ScriptFilename)
	if err != nil {
		v.addProblem("%s: %v", flashscript.ScriptFilename, err)
		return
	}

	if !strings.HasPrefix(string(contents), scriptShebang) {
		v.addProblem("%s does not start with %s", flashscript.ScriptFilename, scriptShebang)
	}
}

// checkSecurity requires a security section consistent with the digest
// artifact: a Secure Boot release references a digest that is present, and
// nothing else does.
func (v *verifier) checkSecurity(flasher *manifest.FlasherManifest) {
	if flasher.Security == nil {
		v.addProblem("%s has no security section", manifest.FlasherFilename)
		return
	}

	security := flasher.Security

	switch {
	case security.SecureBoot && security.DigestFile == "":
		v.addProblem("secure boot release references no digest file")
	case !security.SecureBoot && security.DigestFile != "":
		v.addProblem("digest file %s recorded but secure boot is disabled", security.DigestFile)
	}

	if security.DigestFile != "" && !v.reader.Has(security.DigestFile) {
		v.addProblem("digest file %s is missing from the archive", security.DigestFile)
	}
}

// checkWriteFlashArgs cross-checks the write_flash arguments against the
// security flags and flash settings.
func (v *verifier) checkWriteFlashArgs(flasher *manifest.FlasherManifest) {
	if flasher.Security == nil {
		return
	}

	args := flasher.WriteFlashArgs

	encryptCount := countArg(args, "--encrypt")
	if flasher.Security.Encryption && encryptCount != 1 {
		v.addProblem("--encrypt must appear exactly once in write_flash arguments, found %d", encryptCount)
	}

	if !flasher.Security.Encryption && encryptCount != 0 {
		v.addProblem("--encrypt present but encryption is disabled")
	}

	forceCount := countArg(args, "--force")
	if flasher.Security.SecureBoot && forceCount != 1 {
		v.addProblem("--force must appear exactly once in write_flash arguments, found %d", forceCount)
	}

	settings := []struct {
		flag     string
		expected string
	}{
		{"--flash_mode", flasher.FlashSettings.FlashMode},
		{"--flash_freq", flasher.FlashSettings.FlashFreq},
		{"--flash_size", flasher.FlashSettings.FlashSize},
	}

	for _, setting := range settings {
		value, ok := argValue(args, setting.flag)
		if !ok {
			v.addProblem("%s is missing from write_flash arguments", setting.flag)
			continue
		}

		if value != setting.expected {
			v.addProblem("%s is %s in write_flash arguments but %s in flash_settings",
				setting.flag, value, setting.expected)
		}
	}
}

// checkImages requires every referenced flash image in the archive, with
// offsets in ascending flashing order.
func (v *verifier) checkImages(flasher *manifest.FlasherManifest) {
	previous := uint64(0)
	hasPrevious := false

	for _, entry := range flasher.FlashFiles.Entries() {
		if !v.reader.Has(entry.File) {
			v.addProblem("flash image %s (offset %s) is missing from the archive", entry.File, entry.Offset)
		}

		offset, err := manifest.ParseOffset(entry.Offset)
		if err != nil {
			v.addProblem("flash offset %q is not a number", entry.Offset)
			continue
		}

		if hasPrevious && offset < previous {
			v.addProblem("flash entries are not sorted by offset, %s comes after 0x%x", entry.Offset, previous)
		}

		previous = offset
		hasPrevious = true
	}
}

// checkDescriptionMatches cross-checks release.yaml against the manifest.
func (v *verifier) checkDescriptionMatches(desc *release.Description, flasher *manifest.FlasherManifest) {
	if flasher.Security == nil {
		return
	}

	if desc.SecureBoot != flasher.Security.SecureBoot {
		v.addProblem("secure_boot is %t in %s but %t in the manifest",
			desc.SecureBoot, release.DescriptionFilename, flasher.Security.SecureBoot)
	}

	if desc.Encryption != flasher.Security.Encryption {
		v.addProblem("encryption is %t in %s but %t in the manifest",
			desc.Encryption, release.DescriptionFilename, flasher.Security.Encryption)
	}

	if desc.Chip != flasher.Esptool.Chip {
		v.addProblem("chip is %s in %s but %s in the manifest",
			desc.Chip, release.DescriptionFilename, flasher.Esptool.Chip)
	}
}

// checkChecksums verifies every recorded checksum and requires every member
// except the description itself to be covered by one.
func (v *verifier) checkChecksums(desc *release.Description) {
	names := make([]string, 0, len(desc.Files))
	for name := range desc.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		contents, err := v.reader.ReadFile(name)
		if err != nil {
			v.addProblem("%s has a checksum but is missing from the archive", name)
			continue
		}

		if err = desc.VerifyChecksum(name, contents); err != nil {
			v.addProblem("%v", err)
		}
	}

	for _, name := range v.reader.Names() {
		if name == release.DescriptionFilename {
			continue
		}

		if _, ok := desc.Files[name]; !ok {
			v.addProblem("%s is not covered by a checksum", name)
		}
	}
}

// countArg returns how many times an argument appears.
func countArg(args []string, arg string) int {
	count := 0

	for _, value := range args {
		if value == arg {
			count++
		}
	}

	return count
}

// argValue returns the value following a flag in the argument list.
func argValue(args []string, flag string) (string, bool) {
	for i, value := range args {
		if value == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}

	return "", false
}
