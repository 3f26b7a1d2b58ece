// Package config defines packaging defaults used by the binaries and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the serial port, baud rate and flashing tool baked
// into generated flash scripts, plus the signing key and output directory
// locations. The settings file is optional: every field has a default.
package config
