package manifest

import (
	"context"
	"slices"

	"github.com/oshokin/esp-release-packager/internal/logger"
)

const (
	// BootloaderOffset is where the bootloader flashes when the build system
	// leaves it out of the manifest (Secure Boot builds).
	BootloaderOffset = "0x0"
	// BootloaderImage is the bootloader path inside the build directory.
	BootloaderImage = "bootloader/bootloader.bin"

	forceFlag   = "--force"
	encryptFlag = "--encrypt"
)

// PrepareForRelease rewrites the manifest for standalone distribution.
//
// Secure Boot builds ship without a bootloader section, so one is injected
// at BootloaderOffset and write_flash gains --force, since esptool refuses
// to write below 0x8000 otherwise. Builds with flash encryption gain
// --encrypt. Flash entries are re-sorted so the lowest offset flashes
// first, and the security section records what was detected. Flags are
// added at most once.
func (m *FlasherManifest) PrepareForRelease(ctx context.Context) error {
	encrypted := m.App.IsEncrypted()
	secureBoot := m.Bootloader == nil

	if secureBoot {
		logger.Info(ctx, "Bootloader section is absent, Secure Boot is enabled")

		m.Bootloader = &ImageSection{
			Offset:    BootloaderOffset,
			File:      BootloaderImage,
			Encrypted: encryptedString(encrypted),
		}
		m.FlashFiles.Set(BootloaderOffset, BootloaderImage)

		if !slices.Contains(m.WriteFlashArgs, forceFlag) {
			logger.Warnf(ctx, "Adding %s to write_flash arguments for the %s region", forceFlag, BootloaderOffset)

			m.WriteFlashArgs = append([]string{forceFlag}, m.WriteFlashArgs...)
		}
	} else {
		logger.Info(ctx, "Bootloader section is present, Secure Boot is disabled")

		m.Bootloader.Encrypted = encryptedString(encrypted)
	}

	if m.Security == nil {
		m.Security = new(Security)
	}

	m.Security.SecureBoot = secureBoot
	m.Security.Encryption = encrypted

	if encrypted {
		logger.Info(ctx, "Flash encryption is enabled")

		if !slices.Contains(m.WriteFlashArgs, encryptFlag) {
			logger.Infof(ctx, "Adding %s to write_flash arguments", encryptFlag)

			m.WriteFlashArgs = append(m.WriteFlashArgs, encryptFlag)
		}
	} else {
		logger.Info(ctx, "Flash encryption is disabled")
	}

	return m.FlashFiles.SortByOffset()
}
