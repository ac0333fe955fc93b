package spotify

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/denisbrodbeck/machineid"
)

// keySalt is mixed into the key derivation so the key is specific to this
// application rather than a bare hash of the machine identifier.
const keySalt = "spotify-rework-salt-v1"

// Cipher seals and opens credential payloads with AES-256-GCM under a key
// derived from the local machine identifier. Credentials sealed on one machine
// cannot be opened on another.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher bound to this machine's identifier.
func NewCipher() (*Cipher, error) {
	id, err := machineid.ID()
	if err != nil {
		return nil, authErrorf(ErrEncryption, "failed to read machine id: %w", err)
	}
	return newCipherWithMachineID(id)
}

// newCipherWithMachineID derives the AEAD from an explicit machine identifier.
// Tests use it to simulate foreign machines.
func newCipherWithMachineID(id string) (*Cipher, error) {
	key := deriveKey(id)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, NewAuthError(ErrEncryption, fmt.Errorf("new cipher: %w", err))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewAuthError(ErrEncryption, fmt.Errorf("new gcm: %w", err))
	}
	return &Cipher{aead: aead}, nil
}

// deriveKey hashes the machine identifier with the application salt into a
// 256-bit AES key. Same machine, same key; different machine, different key.
func deriveKey(machineID string) [32]byte {
	h := sha256.New()
	h.Write([]byte(machineID))
	h.Write([]byte(keySalt))
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext+tag). A fresh
// random nonce is drawn per call, so repeated inputs produce distinct tokens.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", authErrorf(ErrEncryption, "read nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	payload := append(nonce, sealed...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt reverses Encrypt. Any malformed, truncated, tampered, or foreign-key
// token fails with an encryption error; it never yields wrong plaintext.
func (c *Cipher) Decrypt(token string) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", authErrorf(ErrEncryption, "base64 decode failed: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(payload) < nonceSize {
		return "", authErrorf(ErrEncryption, "encrypted payload too short")
	}

	nonce, sealed := payload[:nonceSize], payload[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", authErrorf(ErrEncryption, "decryption failed: %w", err)
	}

	if !utf8.Valid(plaintext) {
		return "", authErrorf(ErrEncryption, "decrypted payload is not valid text")
	}
	return string(plaintext), nil
}
