package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"dwhctl/pkg/errors"
	"dwhctl/pkg/models"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"
	keyringPrefix   = "keyring:"

	// KeyringService is the service name secrets are stored under
	KeyringService = "dwhctl"
	// PassphraseEnv holds the passphrase for ENC[...] values
	PassphraseEnv = EnvPrefix + "_ENCRYPTION_KEY"

	saltSize         = 16
	pbkdf2Iterations = 100000
	keySize          = 32
)

// SecretResolver turns ENC[...] and keyring:<name> config values into
// plaintext. Plain values pass through unchanged.
type SecretResolver struct {
	passphrase string
	keyringGet func(service, user string) (string, error)
}

// NewSecretResolver creates a resolver using the OS keyring and the
// passphrase from $DWH_ENCRYPTION_KEY.
func NewSecretResolver() *SecretResolver {
	return &SecretResolver{
		passphrase: os.Getenv(PassphraseEnv),
		keyringGet: keyring.Get,
	}
}

// WithPassphrase overrides the decryption passphrase
func (r *SecretResolver) WithPassphrase(passphrase string) *SecretResolver {
	r.passphrase = passphrase
	return r
}

// ResolveConfig resolves every secret-bearing field in place
func (r *SecretResolver) ResolveConfig(cfg *models.Config) error {
	fields := []struct {
		key   string
		value *string
	}{
		{"aws.key", &cfg.AWS.Key},
		{"aws.secret", &cfg.AWS.Secret},
		{"cluster.db_password", &cfg.Cluster.DBPassword},
	}

	for _, f := range fields {
		resolved, err := r.Resolve(*f.value)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSecretUnavailable, "Failed to resolve secret").
				WithContext("key", f.key).
				WithSeverity(errors.SeverityCritical)
		}
		*f.value = resolved
	}
	return nil
}

// Resolve returns the plaintext for a single config value
func (r *SecretResolver) Resolve(value string) (string, error) {
	switch {
	case IsEncrypted(value):
		if r.passphrase == "" {
			return "", fmt.Errorf("value is encrypted but %s is not set", PassphraseEnv)
		}
		return Decrypt(value, r.passphrase)
	case strings.HasPrefix(value, keyringPrefix):
		name := strings.TrimPrefix(value, keyringPrefix)
		secret, err := r.keyringGet(KeyringService, name)
		if err != nil {
			return "", fmt.Errorf("keyring lookup for %q failed: %w", name, err)
		}
		return secret, nil
	default:
		return value, nil
	}
}

// StoreInKeyring saves a secret so it can be referenced as keyring:<name>
func StoreInKeyring(name, secret string) error {
	if err := keyring.Set(KeyringService, name, secret); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// IsEncrypted checks if a string is an ENC[...] value
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// Encrypt seals plaintext with AES-256-GCM under a PBKDF2-derived key
func Encrypt(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("passphrase is required")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	payload := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	return encryptedPrefix + base64.StdEncoding.EncodeToString(payload) + encryptedSuffix, nil
}

// Decrypt opens a value produced by Encrypt
func Decrypt(value, passphrase string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	encoded := strings.TrimSuffix(strings.TrimPrefix(value, encryptedPrefix), encryptedSuffix)
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted value: %w", err)
	}
	if len(payload) < saltSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	salt, rest := payload[:saltSize], payload[saltSize:]
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}

	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
