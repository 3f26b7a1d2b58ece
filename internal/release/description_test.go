package release

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescriptionChecksums(t *testing.T) {
	t.Parallel()

	desc := NewDescription("blink", "v1.2.3")
	contents := []byte("firmware image")

	checksum, err := ChecksumBytes(contents)
	require.NoError(t, err)
	require.Len(t, checksum, DefaultChecksumFunction.Size())

	desc.RecordChecksum("blink.bin", checksum)

	require.NoError(t, desc.VerifyChecksum("blink.bin", contents))
	require.ErrorIs(t, desc.VerifyChecksum("blink.bin", []byte("tampered")), ErrChecksumMismatch)
	require.ErrorIs(t, desc.VerifyChecksum("missing.bin", contents), ErrChecksumMissing)
}

func TestChecksumFileMatchesChecksumBytes(t *testing.T) {
	t.Parallel()

	contents := []byte("bootloader image")
	path := filepath.Join(t.TempDir(), "bootloader.bin")

	require.NoError(t, os.WriteFile(path, contents, 0o600))

	fromFile, err := ChecksumFile(path)
	require.NoError(t, err)

	fromBytes, err := ChecksumBytes(contents)
	require.NoError(t, err)
	require.Equal(t, fromBytes, fromFile)
}

func TestDescriptionRoundTrip(t *testing.T) {
	t.Parallel()

	desc := NewDescription("blink", "v1.2.3")
	desc.Chip = "esp32"
	desc.SecureBoot = true
	desc.Encryption = true
	desc.Builder = &Actor{Hostname: "build-host", Username: "builder"}

	checksum, err := ChecksumBytes([]byte("contents"))
	require.NoError(t, err)

	desc.RecordChecksum("flash.sh", checksum)

	encoded, err := desc.Marshal()
	require.NoError(t, err)

	decoded, err := ParseDescription(encoded)
	require.NoError(t, err)
	require.Equal(t, desc.ProjectName, decoded.ProjectName)
	require.Equal(t, desc.Version, decoded.Version)
	require.Equal(t, desc.Chip, decoded.Chip)
	require.True(t, decoded.SecureBoot)
	require.True(t, decoded.Encryption)
	require.Equal(t, desc.Builder, decoded.Builder)
	require.Equal(t, desc.Files, decoded.Files)
	require.True(t, desc.CreatedAt.Equal(decoded.CreatedAt))
}

func TestParseDescriptionMalformed(t *testing.T) {
	t.Parallel()

	_, err := ParseDescription([]byte("\tnot yaml"))
	require.Error(t, err)
}

func TestParseDescriptionFillsFilesMap(t *testing.T) {
	t.Parallel()

	desc, err := ParseDescription([]byte("project: blink\nversion: v1.0.0\n"))
	require.NoError(t, err)
	require.NotNil(t, desc.Files)
}
