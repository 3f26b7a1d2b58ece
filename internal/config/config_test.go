package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks default filling and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Nil config.
	require.Error(t, Validate(nil))

	// Empty config is filled with defaults.
	cfg := new(Config)

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultSerialPort, cfg.SerialPort)
	require.Equal(t, DefaultBaudRate, cfg.BaudRate)
	require.Equal(t, DefaultEsptoolCommand, cfg.EsptoolCommand)
	require.Equal(t, DefaultSigningKeyPath, cfg.SigningKey)
	require.Equal(t, DefaultOutputDirName, cfg.OutputDir)

	// Whitespace in the serial port would corrupt the flash script.
	cfg = &Config{
		SerialPort: "/dev/tty USB0",
	}

	require.Error(t, Validate(cfg))

	// Negative baud rate.
	cfg = &Config{
		BaudRate: -9600,
	}

	require.Error(t, Validate(cfg))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		SerialPort:     "/dev/ttyACM0",
		BaudRate:       115200,
		EsptoolCommand: "esptool",
		SigningKey:     "secure_boot_signing_key.pem",
		OutputDir:      "dist",
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoadOrDefault falls back to defaults when the file is absent
// and still reports malformed files.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("{broken"), 0o600))

	_, err = LoadOrDefault(bad)
	require.Error(t, err)
}
