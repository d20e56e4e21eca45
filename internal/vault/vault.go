package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidKey          = errors.New("encryption key must be a hex-encoded 32-byte key")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// Vault decrypts stored exchange credentials on read. With a key it speaks
// AES-256-CBC over "hexIV:hexCiphertext" values; without one the stored
// values are plain base64.
type Vault struct {
	key []byte
}

func New(keyHex string) (*Vault, error) {
	if keyHex == "" {
		return &Vault{}, nil
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return &Vault{key: key}, nil
}

func (v *Vault) Decrypt(ciphertext string) (string, error) {
	const op = "vault.Decrypt"

	if len(v.key) == 0 {
		plain, err := base64.StdEncoding.DecodeString(ciphertext)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, ErrMalformedCiphertext)
		}
		return string(plain), nil
	}

	parts := strings.SplitN(ciphertext, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%s: %w", op, ErrMalformedCiphertext)
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%s: %w", op, ErrMalformedCiphertext)
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%s: %w", op, ErrMalformedCiphertext)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(data, data)

	plain, err := unpad(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(plain), nil
}

// Encrypt is the write-side counterpart, kept for seeding and tests; the
// identity service owns credential writes in production.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	const op = "vault.Encrypt"

	if len(v.key) == 0 {
		return base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	data := pad([]byte(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(data, data)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(data), nil
}

// PKCS#7 padding.
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, ErrMalformedCiphertext
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrMalformedCiphertext
		}
	}
	return data[:len(data)-n], nil
}
