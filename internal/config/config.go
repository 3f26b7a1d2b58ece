package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds packaging defaults shared by the esp-release binaries.
// Every field is optional; Validate fills in defaults for empty values.
type Config struct {
	// SerialPort is the default port baked into the generated flash script.
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the flashing baud rate baked into the generated flash script.
	BaudRate int `yaml:"baud_rate"`
	// EsptoolCommand is the flashing tool the generated script invokes.
	EsptoolCommand string `yaml:"esptool_command"`
	// SigningKey is the path to the Secure Boot V2 signing key.
	SigningKey string `yaml:"signing_key"`
	// OutputDir is where release archives are written.
	// Relative paths resolve against the project root.
	OutputDir string `yaml:"output_dir"`
}

const (
	// DefaultConfigFilename is the default filename for packaging settings.
	DefaultConfigFilename = "esp-release-settings.yaml"

	// DefaultSerialPort is the fallback serial port for the flash script.
	DefaultSerialPort = "/dev/ttyUSB0"

	// DefaultBaudRate is the fallback flashing baud rate.
	DefaultBaudRate = 460800

	// DefaultEsptoolCommand is the flashing tool invoked by the generated script.
	DefaultEsptoolCommand = "esptool.py"

	// DefaultSigningKeyPath is where the Secure Boot signing key is expected.
	DefaultSigningKeyPath = "keys/secure_boot_signing_key.pem"

	// DefaultOutputDirName is the release directory name under the project root.
	DefaultOutputDirName = "release"

	// DefaultBuildDirName is the build directory name under the project root.
	DefaultBuildDirName = "build"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidSerialPort is returned when the serial port contains whitespace,
	// which would corrupt the generated shell script.
	errInvalidSerialPort = errors.New("serial port must not contain whitespace")
	// errInvalidBaudRate is returned when a negative baud rate is configured.
	errInvalidBaudRate = errors.New("baud rate must be positive")
)

// Default returns a configuration populated with all default values.
func Default() *Config {
	cfg := new(Config)
	// Validate never fails on an empty config, it only fills defaults.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault reads configuration from the provided path and falls back to
// defaults when the file does not exist. Any other read or parse failure is
// reported to the caller.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults for empty fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.SerialPort == "" {
		cfg.SerialPort = DefaultSerialPort
	}

	if strings.ContainsAny(cfg.SerialPort, " \t") {
		return fmt.Errorf("serial port %q: %w", cfg.SerialPort, errInvalidSerialPort)
	}

	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}

	if cfg.BaudRate < 0 {
		return fmt.Errorf("baud rate %d: %w", cfg.BaudRate, errInvalidBaudRate)
	}

	if cfg.EsptoolCommand == "" {
		cfg.EsptoolCommand = DefaultEsptoolCommand
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = DefaultSigningKeyPath
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDirName
	}

	return nil
}
