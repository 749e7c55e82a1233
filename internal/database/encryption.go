package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/Memesold/vk-tg-repost-bot/internal/constants"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"

	"golang.org/x/crypto/pbkdf2"
)

// encryptor handles optional at-rest encryption of tenant configuration
// blobs. When disabled it passes data through untouched.
type encryptor struct {
	gcm cipher.AEAD
}

func NewEncryptor() (*encryptor, error) {
	if !isEncryptionEnabled() {
		return &encryptor{gcm: nil}, nil
	}

	key, err := deriveKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

func isEncryptionEnabled() bool {
	return os.Getenv("VKTG_ENABLE_ENCRYPTION") == "true"
}

func deriveKey() ([]byte, error) {
	secret := os.Getenv("VKTG_ENCRYPTION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("VKTG_ENCRYPTION_SECRET environment variable is required when encryption is enabled")
	}

	if len(secret) < 32 {
		return nil, fmt.Errorf("encryption secret must be at least 32 characters long")
	}

	salt := []byte(constants.EncryptionSalt)

	key := pbkdf2.Key([]byte(secret), salt, models.Iterations, models.KeySize, sha256.New)
	return key, nil
}

// EncryptIfEnabled encrypts the tenant blob when encryption is configured,
// otherwise returns it unchanged.
func (e *encryptor) EncryptIfEnabled(plaintext string) (string, error) {
	if plaintext == "" || e.gcm == nil {
		return plaintext, nil
	}

	nonce := make([]byte, models.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	result := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(result), nil
}

// DecryptIfEnabled reverses EncryptIfEnabled. Plaintext blobs written before
// encryption was enabled are detected by their JSON shape and passed through,
// so enabling encryption does not orphan existing tenants.
func (e *encryptor) DecryptIfEnabled(stored string) (string, error) {
	if stored == "" || e.gcm == nil {
		return stored, nil
	}

	if len(stored) > 0 && (stored[0] == '{' || stored[0] == '[') {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(data) < models.NonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:models.NonceSize], data[models.NonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
