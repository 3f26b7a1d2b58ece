package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FlasherFilename is the flasher manifest name produced by the build system
// and carried into release archives.
const FlasherFilename = "flasher_args.json"

// manifestIndent matches the indentation the build system uses.
const manifestIndent = "    "

// Known manifest section keys.
const (
	keyWriteFlashArgs = "write_flash_args"
	keyFlashFiles     = "flash_files"
	keyBootloader     = "bootloader"
	keyApp            = "app"
	keyEsptoolArgs    = "extra_esptool_args"
	keyFlashSettings  = "flash_settings"
	keySecurity       = "security"
)

// ErrMissingKey indicates that a required manifest key is absent.
var ErrMissingKey = errors.New("required manifest key is missing")

// FlasherManifest is the parsed flasher_args.json document.
//
// Only the sections this tool interprets are modeled as fields; everything
// else (partition tables, OTA data, storage images) is preserved verbatim
// and round-trips through Marshal untouched.
type FlasherManifest struct {
	// WriteFlashArgs are the write_flash arguments; release preparation may
	// prepend --force and append --encrypt here.
	WriteFlashArgs []string
	// FlashFiles maps flash offsets to image files, in document order.
	FlashFiles FlashFiles
	// Bootloader describes the bootloader image. Secure Boot builds omit it.
	Bootloader *ImageSection
	// App describes the application image.
	App *ImageSection
	// Esptool holds the global esptool invocation arguments.
	Esptool EsptoolArgs
	// FlashSettings holds flash mode, frequency, and size.
	FlashSettings FlashSettings
	// Security is the posture section written during release preparation.
	Security *Security

	// extra keeps the sections this tool does not interpret.
	extra map[string]json.RawMessage
}

// LoadFlasher reads and parses flasher_args.json from a build directory.
func LoadFlasher(buildDir string) (*FlasherManifest, error) {
	path := filepath.Join(buildDir, FlasherFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flasher manifest: %w", err)
	}

	flasher, err := ParseFlasher(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return flasher, nil
}

// ParseFlasher decodes a flasher manifest from raw JSON.
func ParseFlasher(data []byte) (*FlasherManifest, error) {
	var sections map[string]json.RawMessage

	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("decode flasher manifest: %w", err)
	}

	manifest := &FlasherManifest{extra: sections}

	steps := []struct {
		key      string
		target   any
		required bool
	}{
		{keyWriteFlashArgs, &manifest.WriteFlashArgs, true},
		{keyFlashFiles, &manifest.FlashFiles, true},
		{keyBootloader, &manifest.Bootloader, false},
		{keyApp, &manifest.App, false},
		{keyEsptoolArgs, &manifest.Esptool, true},
		{keyFlashSettings, &manifest.FlashSettings, true},
		{keySecurity, &manifest.Security, false},
	}

	for _, step := range steps {
		if err := decodeSection(sections, step.key, step.target, step.required); err != nil {
			return nil, err
		}
	}

	if err := manifest.validate(); err != nil {
		return nil, err
	}

	return manifest, nil
}

// decodeSection unmarshals one known section and removes it from the raw map
// so only uninterpreted sections remain there.
func decodeSection(sections map[string]json.RawMessage, key string, target any, required bool) error {
	raw, ok := sections[key]
	if !ok {
		if required {
			return fmt.Errorf("%s: %w", key, ErrMissingKey)
		}

		return nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}

	delete(sections, key)

	return nil
}

// validate checks the fields a release package cannot be built without.
func (m *FlasherManifest) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{keyEsptoolArgs + ".before", m.Esptool.Before},
		{keyEsptoolArgs + ".after", m.Esptool.After},
		{keyEsptoolArgs + ".chip", m.Esptool.Chip},
		{keyFlashSettings + ".flash_mode", m.FlashSettings.FlashMode},
		{keyFlashSettings + ".flash_freq", m.FlashSettings.FlashFreq},
		{keyFlashSettings + ".flash_size", m.FlashSettings.FlashSize},
	}

	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s: %w", field.name, ErrMissingKey)
		}
	}

	return nil
}

// Marshal serializes the manifest back to the build system's JSON shape,
// merging the interpreted sections with the preserved ones.
func (m *FlasherManifest) Marshal() ([]byte, error) {
	sections := make(map[string]json.RawMessage, len(m.extra)+7)

	for key, raw := range m.extra {
		sections[key] = raw
	}

	steps := []struct {
		key   string
		value any
		skip  bool
	}{
		{keyWriteFlashArgs, m.WriteFlashArgs, false},
		{keyFlashFiles, m.FlashFiles, false},
		{keyBootloader, m.Bootloader, m.Bootloader == nil},
		{keyApp, m.App, m.App == nil},
		{keyEsptoolArgs, m.Esptool, false},
		{keyFlashSettings, m.FlashSettings, false},
		{keySecurity, m.Security, m.Security == nil},
	}

	for _, step := range steps {
		if step.skip {
			continue
		}

		raw, err := json.Marshal(step.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", step.key, err)
		}

		sections[step.key] = raw
	}

	data, err := json.MarshalIndent(sections, "", manifestIndent)
	if err != nil {
		return nil, fmt.Errorf("encode flasher manifest: %w", err)
	}

	return data, nil
}
