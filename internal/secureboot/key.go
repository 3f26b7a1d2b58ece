package secureboot

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/oshokin/esp-release-packager/internal/logger"
)

// PEM block types accepted for signing keys.
const (
	pemTypeRSAPrivate     = "RSA PRIVATE KEY"
	pemTypeECPrivate      = "EC PRIVATE KEY"
	pemTypePKCS8Private   = "PRIVATE KEY"
	pemTypePKIXPublic     = "PUBLIC KEY"
	pemTypeRSAPublic      = "RSA PUBLIC KEY"
	pemTypeOpenSSHPrivate = "OPENSSH PRIVATE KEY"
	pemTypePKCS8Encrypted = "ENCRYPTED PRIVATE KEY"
)

var (
	errNoPEMData      = errors.New("no PEM data found in signing key")
	errUnsupportedKey = errors.New("unsupported signing key type")

	// errPKCS8Encryption exists because the standard library cannot decrypt
	// PKCS#8-encrypted keys; such keys must be converted beforehand.
	errPKCS8Encryption = errors.New("PKCS#8 encrypted keys are not supported, re-export the key without PKCS#8 encryption")
)

// LoadPublicKey reads a signing key file and returns its public half.
// Private and public keys are both accepted; encrypted files prompt for a
// passphrase unless PassphraseEnvVar supplies one.
func LoadPublicKey(ctx context.Context, path string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	key, err := parsePublicKey(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return key, nil
}

// parsePublicKey extracts the public key from raw PEM or OpenSSH key material.
func parsePublicKey(ctx context.Context, data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errNoPEMData
	}

	//nolint:staticcheck // Legacy OpenSSL key encryption is still what the signing tools emit.
	if x509.IsEncryptedPEMBlock(block) {
		decrypted, err := decryptPEMBlock(ctx, block)
		if err != nil {
			return nil, err
		}

		block = &pem.Block{Type: block.Type, Bytes: decrypted}
	}

	switch block.Type {
	case pemTypeRSAPrivate:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse RSA private key: %w", err)
		}

		return &key.PublicKey, nil
	case pemTypeECPrivate:
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse EC private key: %w", err)
		}

		return &key.PublicKey, nil
	case pemTypePKCS8Private:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
		}

		return publicHalf(key)
	case pemTypePKIXPublic:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}

		return checkPublicKey(key)
	case pemTypeRSAPublic:
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse RSA public key: %w", err)
		}

		return key, nil
	case pemTypeOpenSSHPrivate:
		return parseOpenSSHKey(ctx, data)
	case pemTypePKCS8Encrypted:
		return nil, errPKCS8Encryption
	default:
		return nil, fmt.Errorf("%q: %w", block.Type, errUnsupportedKey)
	}
}

// decryptPEMBlock resolves a passphrase and decrypts a legacy encrypted block.
func decryptPEMBlock(ctx context.Context, block *pem.Block) ([]byte, error) {
	logger.Info(ctx, "Signing key is encrypted, a passphrase is required")

	passphrase, err := readPassphrase("Enter signing key passphrase: ")
	if err != nil {
		return nil, err
	}

	defer zeroBytes(passphrase)

	//nolint:staticcheck // See the encryption check above.
	decrypted, err := x509.DecryptPEMBlock(block, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt signing key: %w", err)
	}

	return decrypted, nil
}

// parseOpenSSHKey handles keys in the OpenSSH private key format.
func parseOpenSSHKey(ctx context.Context, data []byte) (crypto.PublicKey, error) {
	key, err := ssh.ParseRawPrivateKey(data)

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		logger.Info(ctx, "Signing key is encrypted, a passphrase is required")

		var passphrase []byte

		passphrase, err = readPassphrase("Enter signing key passphrase: ")
		if err != nil {
			return nil, err
		}

		defer zeroBytes(passphrase)

		key, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	}

	if err != nil {
		return nil, fmt.Errorf("parse OpenSSH private key: %w", err)
	}

	return publicHalf(key)
}

// publicHalf maps a parsed private key to its public key.
func publicHalf(key any) (crypto.PublicKey, error) {
	switch typed := key.(type) {
	case *rsa.PrivateKey:
		return &typed.PublicKey, nil
	case *ecdsa.PrivateKey:
		return &typed.PublicKey, nil
	default:
		return nil, fmt.Errorf("%T: %w", key, errUnsupportedKey)
	}
}

// checkPublicKey rejects public key types Secure Boot V2 cannot use.
func checkPublicKey(key any) (crypto.PublicKey, error) {
	switch typed := key.(type) {
	case *rsa.PublicKey:
		return typed, nil
	case *ecdsa.PublicKey:
		return typed, nil
	default:
		return nil, fmt.Errorf("%T: %w", key, errUnsupportedKey)
	}
}
