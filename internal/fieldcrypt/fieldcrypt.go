// Package fieldcrypt decrypts the trait metadata blobs stored on-chain for
// each token. Blobs are AES-256-GCM sealed and framed as
// "enc:v1:<base64(nonce+ciphertext)>"; the key is derived from the server's
// master secret with HKDF so the same secret can back other derivations
// without key reuse.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const prefix = "enc:v1:"

// Cipher seals and opens metadata blobs. Safe for concurrent use.
type Cipher struct {
	gcm cipher.AEAD
}

// Derive builds a Cipher from the master secret. The purpose string isolates
// this derived key from other uses of the same secret.
func Derive(masterSecret []byte, purpose string) (*Cipher, error) {
	reader := hkdf.New(sha256.New, masterSecret, []byte("rangda-field-encryption"), []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("fieldcrypt: key derivation: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: %w", err)
	}
	return &Cipher{gcm: gcm}, nil
}

// IsEncrypted reports whether the blob carries the encryption framing.
func IsEncrypted(blob []byte) bool {
	return strings.HasPrefix(string(blob), prefix)
}

// Seal encrypts plaintext into the framed form.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("fieldcrypt: nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(prefix + base64.StdEncoding.EncodeToString(sealed)), nil
}

// Open decrypts a framed blob. Unframed blobs pass through unchanged, which
// lets plaintext and encrypted metadata coexist in one collection.
func (c *Cipher) Open(blob []byte) ([]byte, error) {
	s := string(blob)
	if !strings.HasPrefix(s, prefix) {
		return blob, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, prefix))
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: invalid base64: %w", err)
	}
	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("fieldcrypt: ciphertext too short")
	}
	plaintext, err := c.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: decryption failed: %w", err)
	}
	return plaintext, nil
}
