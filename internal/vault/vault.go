package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// envelope format: hex(iv) + ":" + hex(ciphertext). A stored value without
// the separator predates encryption and is treated as plaintext.
const separator = ":"

// Vault encrypts OAuth credentials at rest with AES-256-GCM. Without key
// material it degrades to passthrough, which is only acceptable outside
// production; New warns loudly when that happens.
type Vault struct {
	key []byte
}

func New(secret string) *Vault {
	if secret == "" {
		slog.Warn("vault: no encryption key configured, tokens will be stored in plaintext")
		return &Vault{}
	}
	return &Vault{key: deriveKey(secret)}
}

func deriveKey(secret string) []byte {
	if len(secret) == 64 {
		if key, err := hex.DecodeString(secret); err == nil {
			return key
		}
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

func (v *Vault) Enabled() bool {
	return len(v.key) != 0
}

// Encrypt seals plaintext with a fresh random IV. Two calls on the same
// input never produce the same envelope.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if !v.Enabled() {
		return plaintext, nil
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	iv := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	ciphertext := aesGCM.Seal(nil, iv, []byte(plaintext), nil)

	return hex.EncodeToString(iv) + separator + hex.EncodeToString(ciphertext), nil
}

// Decrypt never fails. A value without the separator is legacy plaintext and
// comes back unchanged; a corrupt envelope or wrong key also comes back
// unchanged so the caller can surface the anomaly instead of crashing the
// batch. Use StillSealed on the result to detect that case.
func (v *Vault) Decrypt(envelope string) string {
	if !v.Enabled() {
		return envelope
	}
	if !strings.Contains(envelope, separator) {
		return envelope
	}

	plaintext, err := v.open(envelope)
	if err != nil {
		slog.Warn("vault: decrypt failed, returning value as stored", "error", err.Error())
		return envelope
	}
	return plaintext
}

func (v *Vault) open(envelope string) (string, error) {
	ivHex, cipherHex, ok := strings.Cut(envelope, separator)
	if !ok {
		return "", errors.New("missing separator")
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", err
	}
	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(iv) != aesGCM.NonceSize() {
		return "", errors.New("bad iv length")
	}

	plaintext, err := aesGCM.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// StillSealed reports whether a value still looks like an envelope. A
// decrypted credential that is still sealed means the vault could not open
// it; downstream code must treat that as a credential failure.
func (v *Vault) StillSealed(s string) bool {
	if !v.Enabled() {
		return false
	}
	ivHex, cipherHex, ok := strings.Cut(s, separator)
	if !ok {
		return false
	}
	if _, err := hex.DecodeString(ivHex); err != nil {
		return false
	}
	if _, err := hex.DecodeString(cipherHex); err != nil {
		return false
	}
	return true
}
