// Package packager assembles distributable firmware release archives from
// ESP-IDF build directories.
//
// A run loads the build's flashing manifest and project descriptor, prepares
// the manifest for standalone distribution (Secure Boot bootloader
// injection, encryption flags, offset ordering), generates the Secure Boot
// public key digest when needed, renders the flash.sh wrapper, records
// artifact checksums in release.yaml, and zips everything into
// <project>_<label>.zip. Generated artifacts pass through a staging
// directory that is removed when the run ends, successful or not.
package packager
