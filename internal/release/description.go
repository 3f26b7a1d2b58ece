package release

import (
	"bytes"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	// Ensure SHA256 is available for checksum calculation.
	_ "crypto/sha256"
)

const (
	// DescriptionFilename stores the release description inside an archive.
	DescriptionFilename = "release.yaml"

	// DefaultFileMode is used when producing artifacts for distribution.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate artifact hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA256

	// defaultMapCapacity is the default initial capacity for maps.
	defaultMapCapacity = 16
)

var (
	errHashUnavailable = errors.New("hash function unavailable")

	// ErrChecksumMismatch indicates that an artifact's contents do not match
	// the checksum recorded in the release description.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrChecksumMissing indicates that the release description carries no
	// checksum for an artifact.
	ErrChecksumMissing = errors.New("checksum missing")
)

// Description contains metadata about a packaged release, stored as
// release.yaml next to the flashing artifacts inside the archive.
type Description struct {
	// ProjectName is the firmware project the archive was built from.
	ProjectName string `yaml:"project"`
	// Version is the project version reported by the build system.
	Version string `yaml:"version"`
	// Chip is the target chip from the flasher manifest.
	Chip string `yaml:"chip"`
	// SecureBoot reports whether the build uses Secure Boot.
	SecureBoot bool `yaml:"secure_boot"`
	// Encryption reports whether the build uses flash encryption.
	Encryption bool `yaml:"encryption"`
	// CreatedAt is the packaging time in UTC.
	CreatedAt time.Time `yaml:"created_at"`
	// Builder identifies the machine and user that packaged the release.
	Builder *Actor `yaml:"builder,omitempty"`
	// Files maps archive member names to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
}

// NewDescription produces a Description initialized with defaults.
func NewDescription(projectName, version string) *Description {
	return &Description{
		ProjectName: projectName,
		Version:     version,
		CreatedAt:   time.Now().UTC(),
		Files:       make(map[string]string, defaultMapCapacity),
	}
}

// ParseDescription decodes a release description from raw YAML.
func ParseDescription(data []byte) (*Description, error) {
	var desc Description

	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("decode release description: %w", err)
	}

	if desc.Files == nil {
		desc.Files = make(map[string]string, defaultMapCapacity)
	}

	return &desc, nil
}

// Marshal serializes the description to YAML.
func (d *Description) Marshal() ([]byte, error) {
	contents, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode release description: %w", err)
	}

	return contents, nil
}

// RecordChecksum stores an artifact checksum under its archive member name.
func (d *Description) RecordChecksum(name string, checksum []byte) {
	d.Files[name] = base64.StdEncoding.EncodeToString(checksum)
}

// VerifyChecksum compares an artifact's contents against the recorded checksum.
func (d *Description) VerifyChecksum(name string, contents []byte) error {
	encoded, ok := d.Files[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrChecksumMissing)
	}

	recorded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode checksum of %s: %w", name, err)
	}

	actual, err := ChecksumBytes(contents)
	if err != nil {
		return err
	}

	if !bytes.Equal(recorded, actual) {
		return fmt.Errorf("%s: %w", name, ErrChecksumMismatch)
	}

	return nil
}

// ChecksumBytes returns checksum bytes for in-memory contents using
// DefaultChecksumFunction.
func ChecksumBytes(contents []byte) ([]byte, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err := hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// ChecksumFile returns checksum bytes for a file using DefaultChecksumFunction.
func ChecksumFile(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return ChecksumBytes(contents)
}
