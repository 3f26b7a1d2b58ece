package secureboot

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"os"
	"slices"

	"github.com/oshokin/esp-release-packager/internal/logger"
)

// DigestFilename is the digest artifact name inside release archives.
const DigestFilename = "digest.bin"

const (
	// rsaKeyBits is the only RSA key size Secure Boot V2 accepts.
	rsaKeyBits = 3072
	rsaKeySize = rsaKeyBits / 8

	// curveIDP256 identifies NIST P-256 in the flashed key layout.
	curveIDP256 = 2

	// The layout stores each coordinate little-endian; the point field is
	// sized for 256-bit curves.
	ecdsaCoordinateSize = 32
	ecdsaPointSize      = 2 * ecdsaCoordinateSize

	digestFileMode os.FileMode = 0o644
)

var (
	errRSAKeySize       = errors.New("RSA signing key must be 3072 bits")
	errUnsupportedCurve = errors.New("ECDSA signing key must use the P-256 curve")
	errEvenModulus      = errors.New("RSA modulus is even")
)

// Digest computes the Secure Boot V2 public key digest: the SHA-256 of the
// key in the layout the bootloader reads from flash.
func Digest(key crypto.PublicKey) ([]byte, error) {
	var (
		input []byte
		err   error
	)

	switch typed := key.(type) {
	case *rsa.PublicKey:
		input, err = rsaDigestInput(typed)
	case *ecdsa.PublicKey:
		input, err = ecdsaDigestInput(typed)
	default:
		return nil, fmt.Errorf("%T: %w", key, errUnsupportedKey)
	}

	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(input)

	return sum[:], nil
}

// WriteDigestFile computes the digest for a signing key file and stores it
// at path.
func WriteDigestFile(ctx context.Context, keyPath, path string) error {
	key, err := LoadPublicKey(ctx, keyPath)
	if err != nil {
		return err
	}

	digest, err := Digest(key)
	if err != nil {
		return err
	}

	if err = os.WriteFile(path, digest, digestFileMode); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}

	logger.InfoKV(ctx, "Public key digest written", "path", path)

	return nil
}

// rsaDigestInput lays out an RSA key with the Montgomery-form constants the
// ROM verifier expects precomputed next to the modulus.
func rsaDigestInput(key *rsa.PublicKey) ([]byte, error) {
	if key.N.BitLen() != rsaKeyBits {
		return nil, fmt.Errorf("%d bits: %w", key.N.BitLen(), errRSAKeySize)
	}

	wordModulus := new(big.Int).Lsh(big.NewInt(1), 32)

	inverse := new(big.Int).ModInverse(key.N, wordModulus)
	if inverse == nil {
		return nil, errEvenModulus
	}

	negInverse := new(big.Int).Sub(wordModulus, inverse)

	rSquared := new(big.Int).Lsh(big.NewInt(1), 2*rsaKeyBits)
	rSquared.Mod(rSquared, key.N)

	input := make([]byte, 0, 2*rsaKeySize+8)
	input = append(input, littleEndianPadded(key.N, rsaKeySize)...)
	input = binary.LittleEndian.AppendUint32(input, uint32(key.E))
	input = append(input, littleEndianPadded(rSquared, rsaKeySize)...)
	input = binary.LittleEndian.AppendUint32(input, uint32(negInverse.Uint64()))

	return input, nil
}

// ecdsaDigestInput lays out a P-256 key with both coordinates little-endian.
func ecdsaDigestInput(key *ecdsa.PublicKey) ([]byte, error) {
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%s: %w", key.Curve.Params().Name, errUnsupportedCurve)
	}

	input := make([]byte, 0, 1+ecdsaPointSize)
	input = append(input, curveIDP256)
	input = append(input, littleEndianPadded(key.X, ecdsaCoordinateSize)...)
	input = append(input, littleEndianPadded(key.Y, ecdsaCoordinateSize)...)

	return input, nil
}

// littleEndianPadded encodes a non-negative integer as exactly size bytes,
// little-endian, zero-padding the high bytes.
func littleEndianPadded(value *big.Int, size int) []byte {
	buf := make([]byte, size)
	value.FillBytes(buf)
	slices.Reverse(buf)

	return buf
}
