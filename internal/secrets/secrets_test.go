package secrets

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_GeneratesAndPersistsKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "nested", "encryption.key")

	k1, err := Open("", keyPath)
	require.NoError(t, err)

	k2, err := Open("", keyPath)
	require.NoError(t, err)

	ciphertext, err := k1.Encrypt("super-secret")
	require.NoError(t, err)
	plain, err := k2.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "super-secret", plain)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	k, err := Open("", filepath.Join(t.TempDir(), "encryption.key"))
	require.NoError(t, err)

	ciphertext, err := k.Encrypt("api-key-value")
	require.NoError(t, err)
	assert.Contains(t, ciphertext, EncPrefix)

	plain, err := k.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "api-key-value", plain)
}

func TestDecrypt_PlaintextPassesThrough(t *testing.T) {
	k, err := Open("", filepath.Join(t.TempDir(), "encryption.key"))
	require.NoError(t, err)

	plain, err := k.Decrypt("not-encrypted")
	require.NoError(t, err)
	assert.Equal(t, "not-encrypted", plain)
}
