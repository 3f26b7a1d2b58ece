// Package verifier inspects a packaged release archive and cross-checks its
// contents: the flasher manifest, the flash script, the digest artifact, the
// referenced flash images, and the checksums recorded in the release
// description. It reports every problem it finds instead of stopping at the
// first one.
package verifier
