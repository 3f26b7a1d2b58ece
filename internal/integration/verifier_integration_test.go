package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/esp-release-packager/internal/archive"
	"github.com/oshokin/esp-release-packager/internal/service/verifier"
)

// TestVerifier_DetectsTampering packages a real build, rebuilds the archive
// with one flash image altered, and checks that verification fails.
func TestVerifier_DetectsTampering(t *testing.T) {
	root := buildProject(t, false, true)
	archivePath := packageProject(t, root, nil)

	tamperedPath := rebuildWithTamperedMember(t, archivePath, "blinky.bin", []byte("not the application"))

	err := verifier.Run(context.Background(), &verifier.Options{ArchivePath: tamperedPath})
	require.ErrorIs(t, err, verifier.ErrVerificationFailed)

	// The original archive still verifies.
	require.NoError(t, verifier.Run(context.Background(), &verifier.Options{ArchivePath: archivePath}))
}

// rebuildWithTamperedMember extracts an archive, replaces one member's
// contents, and builds a new archive next to the original.
func rebuildWithTamperedMember(t *testing.T, archivePath, member string, contents []byte) string {
	t.Helper()

	reader, err := archive.Open(archivePath)
	require.NoError(t, err)

	defer func() {
		// Best-effort cleanup.
		_ = reader.Close()
	}()

	extracted := t.TempDir()
	entries := make([]archive.Entry, 0, len(reader.Names()))

	for _, name := range reader.Names() {
		memberContents, readErr := reader.ReadFile(name)
		require.NoError(t, readErr)

		if name == member {
			memberContents = contents
		}

		path := filepath.Join(extracted, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, memberContents, 0o600))

		entries = append(entries, archive.Entry{Name: name, Path: path})
	}

	tamperedPath := filepath.Join(filepath.Dir(archivePath), "tampered.zip")
	require.NoError(t, archive.Build(tamperedPath, entries))

	return tamperedPath
}
