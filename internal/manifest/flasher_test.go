package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sampleManifest returns a plain build's manifest as a mutable document.
func sampleManifest() map[string]any {
	return map[string]any{
		"write_flash_args": []any{"--flash_mode", "dio", "--flash_freq", "40m", "--flash_size", "2MB"},
		"flash_settings": map[string]any{
			"flash_mode": "dio",
			"flash_freq": "40m",
			"flash_size": "2MB",
		},
		"flash_files": map[string]any{
			"0x1000": "bootloader/bootloader.bin",
		},
		"bootloader": map[string]any{
			"offset":    "0x1000",
			"file":      "bootloader/bootloader.bin",
			"encrypted": "false",
		},
		"app": map[string]any{
			"offset":    "0x10000",
			"file":      "blink.bin",
			"encrypted": "false",
		},
		"partition-table": map[string]any{
			"offset":    "0x8000",
			"file":      "partition_table/partition-table.bin",
			"encrypted": "false",
		},
		"extra_esptool_args": map[string]any{
			"before": "default_reset",
			"after":  "hard_reset",
			"stub":   true,
			"chip":   "esp32",
		},
	}
}

func encodeManifest(t *testing.T, doc map[string]any) []byte {
	t.Helper()

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	return data
}

func TestParseFlasher(t *testing.T) {
	t.Parallel()

	flasher, err := ParseFlasher(encodeManifest(t, sampleManifest()))
	require.NoError(t, err)

	require.Equal(t,
		[]string{"--flash_mode", "dio", "--flash_freq", "40m", "--flash_size", "2MB"},
		flasher.WriteFlashArgs)
	require.Equal(t, 1, flasher.FlashFiles.Len())

	require.NotNil(t, flasher.Bootloader)
	require.Equal(t, "0x1000", flasher.Bootloader.Offset)
	require.False(t, flasher.Bootloader.IsEncrypted())

	require.NotNil(t, flasher.App)
	require.Equal(t, "blink.bin", flasher.App.File)

	require.Equal(t, "esp32", flasher.Esptool.Chip)
	require.True(t, flasher.Esptool.StubEnabled())

	require.Equal(t, "2MB", flasher.FlashSettings.FlashSize)
	require.Nil(t, flasher.Security)
}

func TestParseFlasherStubDefaultsToEnabled(t *testing.T) {
	t.Parallel()

	doc := sampleManifest()
	delete(doc["extra_esptool_args"].(map[string]any), "stub")

	flasher, err := ParseFlasher(encodeManifest(t, doc))
	require.NoError(t, err)
	require.Nil(t, flasher.Esptool.Stub)
	require.True(t, flasher.Esptool.StubEnabled())
}

func TestParseFlasherMissingKeys(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{
			name:   "no write_flash_args",
			mutate: func(doc map[string]any) { delete(doc, "write_flash_args") },
		},
		{
			name:   "no flash_files",
			mutate: func(doc map[string]any) { delete(doc, "flash_files") },
		},
		{
			name:   "no extra_esptool_args",
			mutate: func(doc map[string]any) { delete(doc, "extra_esptool_args") },
		},
		{
			name:   "no flash_settings",
			mutate: func(doc map[string]any) { delete(doc, "flash_settings") },
		},
		{
			name: "empty flash_mode",
			mutate: func(doc map[string]any) {
				doc["flash_settings"].(map[string]any)["flash_mode"] = ""
			},
		},
		{
			name: "empty chip",
			mutate: func(doc map[string]any) {
				doc["extra_esptool_args"].(map[string]any)["chip"] = ""
			},
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			doc := sampleManifest()
			tc.mutate(doc)

			_, err := ParseFlasher(encodeManifest(t, doc))
			require.ErrorIs(t, err, ErrMissingKey)
		})
	}
}

func TestParseFlasherInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseFlasher([]byte("not json at all"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode flasher manifest")
}

func TestMarshalPreservesUnknownSections(t *testing.T) {
	t.Parallel()

	doc := sampleManifest()
	doc["otadata"] = map[string]any{
		"offset": "0xd000",
		"file":   "ota_data_initial.bin",
	}

	flasher, err := ParseFlasher(encodeManifest(t, doc))
	require.NoError(t, err)

	encoded, err := flasher.Marshal()
	require.NoError(t, err)

	var decoded map[string]json.RawMessage

	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Contains(t, decoded, "partition-table")
	require.Contains(t, decoded, "otadata")
	require.Contains(t, decoded, "write_flash_args")
	require.JSONEq(t,
		`{"offset":"0xd000","file":"ota_data_initial.bin"}`,
		string(decoded["otadata"]))
}

func TestMarshalIndentation(t *testing.T) {
	t.Parallel()

	flasher, err := ParseFlasher(encodeManifest(t, sampleManifest()))
	require.NoError(t, err)

	encoded, err := flasher.Marshal()
	require.NoError(t, err)

	// The build system indents with four spaces; keep the diff-friendly shape.
	require.True(t, strings.HasPrefix(string(encoded), "{\n    \""))
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	flasher, err := ParseFlasher(encodeManifest(t, sampleManifest()))
	require.NoError(t, err)

	encoded, err := flasher.Marshal()
	require.NoError(t, err)

	again, err := ParseFlasher(encoded)
	require.NoError(t, err)
	require.Equal(t, flasher.WriteFlashArgs, again.WriteFlashArgs)
	require.Equal(t, flasher.FlashFiles.Entries(), again.FlashFiles.Entries())
	require.Equal(t, flasher.Esptool, again.Esptool)
	require.Equal(t, flasher.FlashSettings, again.FlashSettings)
}

func TestLoadFlasher(t *testing.T) {
	t.Parallel()

	buildDir := t.TempDir()
	path := filepath.Join(buildDir, FlasherFilename)

	require.NoError(t, os.WriteFile(path, encodeManifest(t, sampleManifest()), 0o600))

	flasher, err := LoadFlasher(buildDir)
	require.NoError(t, err)
	require.NotNil(t, flasher.App)
}

func TestLoadFlasherMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFlasher(t.TempDir())
	require.ErrorIs(t, err, os.ErrNotExist)
}
