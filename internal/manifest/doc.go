// Package manifest models the two JSON documents the ESP-IDF build system
// writes into a build directory and that drive release packaging.
//
// flasher_args.json describes how to flash the build: global esptool
// arguments, flash mode, frequency and size, and an offset-to-image mapping.
// Sections this package does not interpret are preserved verbatim across a
// load and save round trip. PrepareForRelease rewrites a loaded manifest for
// standalone distribution, accounting for Secure Boot and flash encryption.
//
// project_description.json supplies the project name and version used to
// name the release archive.
package manifest
