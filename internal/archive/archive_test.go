package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestBuildAndRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	entries := []Entry{
		{Name: "flash.sh", Path: writeSource(t, dir, "flash.sh", "#!/bin/bash\n"), Mode: 0o755},
		{Name: "blink.bin", Path: writeSource(t, dir, "blink.bin", "app image")},
		{Name: "bootloader/bootloader.bin", Path: writeSource(t, dir, "bootloader.bin", "boot image")},
	}

	archivePath := filepath.Join(dir, "blink_v1.0.0.zip")
	require.NoError(t, Build(archivePath, entries))

	reader, err := Open(archivePath)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, reader.Close())
	}()

	require.Equal(t,
		[]string{"flash.sh", "blink.bin", "bootloader/bootloader.bin"},
		reader.Names())

	require.True(t, reader.Has("flash.sh"))
	require.False(t, reader.Has("digest.bin"))

	contents, err := reader.ReadFile("bootloader/bootloader.bin")
	require.NoError(t, err)
	require.Equal(t, "boot image", string(contents))

	_, err = reader.ReadFile("absent.bin")
	require.ErrorIs(t, err, ErrMemberMissing)
}

func TestBuildRecordsModeAndCompression(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	entries := []Entry{
		{Name: "flash.sh", Path: writeSource(t, dir, "flash.sh", "#!/bin/bash\necho flash\n"), Mode: 0o755},
		{Name: "blink.bin", Path: writeSource(t, dir, "blink.bin", "app image")},
	}

	archivePath := filepath.Join(dir, "release.zip")
	require.NoError(t, Build(archivePath, entries))

	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, zr.Close())
	}()

	require.Len(t, zr.File, 2)
	require.Equal(t, os.FileMode(0o755), zr.File[0].Mode().Perm())
	require.Equal(t, zip.Deflate, zr.File[0].Method)

	// Entries without an explicit mode keep the source file's permissions.
	require.Equal(t, os.FileMode(0o600), zr.File[1].Mode().Perm())
}

func TestBuildMissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	entries := []Entry{
		{Name: "blink.bin", Path: filepath.Join(dir, "absent.bin")},
	}

	err := Build(filepath.Join(dir, "release.zip"), entries)
	require.ErrorIs(t, err, os.ErrNotExist)
}
