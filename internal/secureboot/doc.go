// Package secureboot computes Secure Boot V2 public key digests for release
// archives, replacing the digest step of the chip vendor's signing tool.
//
// The digest is the SHA-256 of the public key laid out the way the bootloader
// reads it from flash:
//
//	RSA-3072:    modulus (384 bytes LE), exponent (uint32 LE),
//	             R^2 mod N (384 bytes LE), -N^-1 mod 2^32 (uint32 LE)
//	ECDSA P-256: curve id (one byte, 2 for P-256), X (32 bytes LE), Y (32 bytes LE)
//
// Signing keys load from PEM (plain or OpenSSL-encrypted) and OpenSSH files;
// encrypted keys take their passphrase from PassphraseEnvVar or a terminal
// prompt.
package secureboot
