package security

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
)

var charset = "qwertyuiopasdfghjklzxcvbnmQWERTYUIOPASDFGHJKLZXCVBNM1234567890-_|!/"

var ErrCipherTextTooShort = errors.New("cipher text is shorter than nonce")

type Encrypter interface {
	Encrypt(string) (string, error)
	Decrypt(string) (string, error)
}

// AESEncrypter encrypts secure config values with AES-GCM. Cipher text is
// hex encoded with the nonce prepended.
type AESEncrypter struct {
	Key []byte
}

func NewAESEncrypter(key []byte) *AESEncrypter {
	return &AESEncrypter{Key: key}
}

func (e *AESEncrypter) gcm() (cipher.AEAD, error) {
	c, err := aes.NewCipher(e.Key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return cipher.NewGCM(c)
}

func (e *AESEncrypter) Encrypt(text string) (string, error) {
	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := crand.Read(nonce); err != nil {
		return "", err
	}

	out := gcm.Seal(nonce, nonce, []byte(text), nil)
	return hex.EncodeToString(out), nil
}

func (e *AESEncrypter) Decrypt(encrypted string) (string, error) {
	cipherText, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decoding hex: %w", err)
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(cipherText) < nonceSize {
		return "", ErrCipherTextTooShort
	}
	nonce, cipherText := cipherText[:nonceSize], cipherText[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return "", fmt.Errorf("opening gcm: %w", err)
	}
	return string(plaintext), nil
}

// NewKeys returns the cookie hash and block keys, generating and appending
// them to dotenvPath when they are not set in the environment.
func NewKeys(dotenvPath string) ([]byte, []byte, error) {
	hashKey, err := keyFromEnv(dotenvPath, "SIMPLECD_HASH_KEY", 32)
	if err != nil {
		return nil, nil, err
	}
	blockKey, err := keyFromEnv(dotenvPath, "SIMPLECD_BLOCK_KEY", 24)
	if err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}

func keyFromEnv(dotenvPath, name string, length int64) ([]byte, error) {
	if k, ok := os.LookupEnv(name); ok {
		return []byte(k), nil
	}
	key := GenerateRandomKey(length)
	if err := writeToDotenv(dotenvPath, name, key); err != nil {
		return nil, err
	}
	os.Setenv(name, key)
	return []byte(key), nil
}

func writeToDotenv(path, name, value string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(name + "=" + value + "\n"))
	return err
}

func GenerateRandomKey(length int64) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := crand.Int(crand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}
