package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurity_AESEncryption(t *testing.T) {
	t.Run("success - text is encrypted and decrypted", func(t *testing.T) {
		// arrange
		enc := NewAESEncrypter([]byte(GenerateRandomKey(32)))
		expectedText := "this is some text"

		// act
		encrypted, err := enc.Encrypt(expectedText)
		require.NoError(t, err)
		decrypted, err := enc.Decrypt(encrypted)

		// assert
		assert.NoError(t, err)
		assert.NotEqual(t, expectedText, encrypted)
		assert.Equal(t, expectedText, decrypted)
	})
	t.Run("failure - wrong key", func(t *testing.T) {
		// arrange
		enc := NewAESEncrypter([]byte(GenerateRandomKey(32)))
		other := NewAESEncrypter([]byte(GenerateRandomKey(32)))
		encrypted, err := enc.Encrypt("secret")
		require.NoError(t, err)

		// act
		_, err = other.Decrypt(encrypted)

		// assert
		assert.Error(t, err)
	})
	t.Run("failure - short cipher text", func(t *testing.T) {
		// arrange
		enc := NewAESEncrypter([]byte(GenerateRandomKey(32)))

		// act
		_, err := enc.Decrypt("abcd")

		// assert
		assert.ErrorIs(t, err, ErrCipherTextTooShort)
	})
}

func TestSecurity_NewKeys(t *testing.T) {
	t.Run("success - keys are generated and written to dotenv", func(t *testing.T) {
		// arrange
		path := filepath.Join(t.TempDir(), ".env")
		t.Setenv("SIMPLECD_HASH_KEY", "")
		os.Unsetenv("SIMPLECD_HASH_KEY")
		t.Setenv("SIMPLECD_BLOCK_KEY", "")
		os.Unsetenv("SIMPLECD_BLOCK_KEY")

		// act
		hashKey, blockKey, err := NewKeys(path)

		// assert
		require.NoError(t, err)
		assert.Len(t, hashKey, 32)
		assert.Len(t, blockKey, 24)
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(b), "SIMPLECD_HASH_KEY=")
		assert.Contains(t, string(b), "SIMPLECD_BLOCK_KEY=")
	})
}
