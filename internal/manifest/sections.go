package manifest

// The build system writes string booleans, not JSON booleans.
const (
	encryptedTrue  = "true"
	encryptedFalse = "false"
)

// ImageSection describes a single flashable image referenced by the manifest.
type ImageSection struct {
	Offset    string `json:"offset"`
	File      string `json:"file"`
	Encrypted string `json:"encrypted,omitempty"`
}

// IsEncrypted reports whether the image is marked for flash encryption.
func (s *ImageSection) IsEncrypted() bool {
	return s != nil && s.Encrypted == encryptedTrue
}

// encryptedString converts a flag to the manifest's string boolean form.
func encryptedString(encrypted bool) string {
	if encrypted {
		return encryptedTrue
	}

	return encryptedFalse
}

// EsptoolArgs holds the global esptool invocation arguments.
type EsptoolArgs struct {
	Before string `json:"before"`
	After  string `json:"after"`
	Stub   *bool  `json:"stub,omitempty"`
	Chip   string `json:"chip"`
}

// StubEnabled reports whether the flasher stub should be used.
// Manifests that do not mention the stub default to using it.
func (a EsptoolArgs) StubEnabled() bool {
	return a.Stub == nil || *a.Stub
}

// FlashSettings holds the flash mode, frequency, and size for write_flash.
type FlashSettings struct {
	FlashMode string `json:"flash_mode"`
	FlashFreq string `json:"flash_freq"`
	FlashSize string `json:"flash_size"`
}

// Security records the security posture detected while preparing a release.
// The section is written by this tool; the build system never emits it.
type Security struct {
	SecureBoot bool   `json:"secure_boot"`
	Encryption bool   `json:"encryption"`
	DigestFile string `json:"digest_file,omitempty"`
}
