package flashscript

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/oshokin/esp-release-packager/internal/manifest"
)

// ScriptFilename is the flashing script name inside release archives.
const ScriptFilename = "flash.sh"

// entryIndent lines up flash entries under the write_flash command.
const entryIndent = "    "

var errNotPrepared = errors.New("manifest has no security section, prepare it for release first")

// Params adjusts the rendered script for the flashing environment.
type Params struct {
	// Port is the serial port baked into the script as a default; the
	// script's first positional argument overrides it at flash time.
	Port string
	// Baud is the flashing baud rate.
	Baud int
	// Tool is the flashing tool executable.
	Tool string
}

// templateData is the fully prepared input for the script template.
type templateData struct {
	Params

	Chip           string
	Before         string
	After          string
	NoStub         bool
	SecureBoot     bool
	Encryption     bool
	WriteFlashArgs string
	EntryLines     []string
	HasEntries     bool
}

// scriptTemplate lays out the wrapper script: defaults, confirmation
// prompts for the irreversible options, and the flashing command with one
// continuation line per flash entry.
var scriptTemplate = template.Must(template.New(ScriptFilename).Parse(`#!/bin/bash
PORT="${1:-{{.Port}}}"
BAUD={{.Baud}}

echo "Flashing {{.Chip}} firmware..."
{{- if .SecureBoot}}

echo "Secure Boot is enabled!"
echo "  - Secure Boot prevents flashing any region below 0x8000."
echo "  - The bootloader must be flashed using --force."
echo "  - WARNING: incorrect use of --force may permanently lock your device!"
echo ""
read -p "Continue flashing with Secure Boot enabled? (y/N): " CONFIRM_SECURE_BOOT
if [[ ! $CONFIRM_SECURE_BOOT =~ ^[Yy]$ ]]; then
    echo "Flashing aborted."
    exit 1
fi
{{- end}}
{{- if .Encryption}}

echo "Flash encryption is enabled!"
echo "  - The firmware will be encrypted when written to flash."
echo "  - Future updates must use the same encryption key."
echo "  - WARNING: losing the encryption key may render the device unbootable!"
echo ""
read -p "Continue flashing with encryption? (y/N): " CONFIRM_ENCRYPT
if [[ ! $CONFIRM_ENCRYPT =~ ^[Yy]$ ]]; then
    echo "Flashing aborted."
    exit 1
fi
{{- end}}

{{.Tool}} -p $PORT -b $BAUD --before {{.Before}} --after {{.After}}{{if .NoStub}} --no-stub{{end}} --chip {{.Chip}} \
    write_flash{{if .WriteFlashArgs}} {{.WriteFlashArgs}}{{end}}{{if .HasEntries}} \{{end}}
{{- range .EntryLines}}
{{.}}
{{- end}}
`))

// Render produces the flash.sh contents for a manifest that has been
// prepared for release. The write_flash arguments go in verbatim, so the
// --force and --encrypt flags added during preparation reach the device.
func Render(flasher *manifest.FlasherManifest, params Params) ([]byte, error) {
	if flasher.Security == nil {
		return nil, errNotPrepared
	}

	entries := flasher.FlashFiles.Entries()
	lines := make([]string, 0, len(entries))

	for i, entry := range entries {
		line := entryIndent + entry.Offset + " " + entry.File
		if i < len(entries)-1 {
			line += " \\"
		}

		lines = append(lines, line)
	}

	data := templateData{
		Params:         params,
		Chip:           flasher.Esptool.Chip,
		Before:         flasher.Esptool.Before,
		After:          flasher.Esptool.After,
		NoStub:         !flasher.Esptool.StubEnabled(),
		SecureBoot:     flasher.Security.SecureBoot,
		Encryption:     flasher.Security.Encryption,
		WriteFlashArgs: strings.Join(flasher.WriteFlashArgs, " "),
		EntryLines:     lines,
		HasEntries:     len(entries) > 0,
	}

	var buf bytes.Buffer

	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render flash script: %w", err)
	}

	return buf.Bytes(), nil
}
