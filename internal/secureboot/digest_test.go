package secureboot

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	rsaTestKeyOnce sync.Once
	rsaTestKey     *rsa.PrivateKey
	rsaTestKeyErr  error
)

// testRSAKey generates the 3072-bit key once; generation is too slow to
// repeat per test.
func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	rsaTestKeyOnce.Do(func() {
		rsaTestKey, rsaTestKeyErr = rsa.GenerateKey(rand.Reader, rsaKeyBits)
	})
	require.NoError(t, rsaTestKeyErr)

	return rsaTestKey
}

func TestDigestRSA(t *testing.T) {
	t.Parallel()

	key := testRSAKey(t)

	digest, err := Digest(&key.PublicKey)
	require.NoError(t, err)
	require.Len(t, digest, sha256.Size)

	again, err := Digest(&key.PublicKey)
	require.NoError(t, err)
	require.Equal(t, digest, again)
}

func TestDigestRSARejectsWrongSize(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = Digest(&key.PublicKey)
	require.ErrorIs(t, err, errRSAKeySize)
}

func TestDigestECDSALayout(t *testing.T) {
	t.Parallel()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	digest, err := Digest(&key.PublicKey)
	require.NoError(t, err)

	// Rebuild the flashed layout from its definition: curve id, then both
	// coordinates little-endian.
	input := make([]byte, 0, 1+ecdsaPointSize)
	input = append(input, curveIDP256)

	for _, coordinate := range [][]byte{
		key.PublicKey.X.FillBytes(make([]byte, ecdsaCoordinateSize)),
		key.PublicKey.Y.FillBytes(make([]byte, ecdsaCoordinateSize)),
	} {
		for i := len(coordinate) - 1; i >= 0; i-- {
			input = append(input, coordinate[i])
		}
	}

	expected := sha256.Sum256(input)
	require.Equal(t, expected[:], digest)
}

func TestDigestECDSARejectsOtherCurves(t *testing.T) {
	t.Parallel()

	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	_, err = Digest(&key.PublicKey)
	require.ErrorIs(t, err, errUnsupportedCurve)
}

func TestDigestRejectsUnsupportedKeyTypes(t *testing.T) {
	t.Parallel()

	public, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = Digest(public)
	require.ErrorIs(t, err, errUnsupportedKey)
}

func TestWriteDigestFile(t *testing.T) {
	t.Parallel()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "signing_key.pem")
	digestPath := filepath.Join(dir, DigestFilename)

	require.NoError(t, os.WriteFile(keyPath, encodeECPrivateKey(t, key), 0o600))

	require.NoError(t, WriteDigestFile(context.Background(), keyPath, digestPath))

	contents, err := os.ReadFile(digestPath)
	require.NoError(t, err)
	require.Len(t, contents, sha256.Size)

	expected, err := Digest(&key.PublicKey)
	require.NoError(t, err)
	require.Equal(t, expected, contents)
}
