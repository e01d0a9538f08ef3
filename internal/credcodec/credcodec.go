// Package credcodec encrypts and decrypts the ciphertext payloads held in
// domain.EncryptedCredential. It is the one place in this codebase that
// ever sees integration-credential cleartext; domain and store never do.
package credcodec

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrDecryptFailed covers both a tampered ciphertext and a key mismatch —
// secretbox's Open doesn't distinguish them, and neither should callers.
var ErrDecryptFailed = errors.New("credcodec: decryption failed")

const nonceSize = 24

// Codec seals and opens credential ciphertext with a single tenant-wide
// key, via NaCl secretbox (XSalsa20-Poly1305).
type Codec struct {
	key [32]byte
}

// New builds a Codec from a 32-byte key. Panics if key isn't exactly 32
// bytes — this is a startup-time configuration error, not a request-time
// one.
func New(key []byte) *Codec {
	if len(key) != 32 {
		panic("credcodec: key must be 32 bytes")
	}
	var c Codec
	copy(c.key[:], key)
	return &c
}

// Encrypt seals plaintext behind a random nonce prefix, so a single Codec
// can safely encrypt many values without nonce-reuse bookkeeping.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &c.key), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func (c *Codec) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, ErrDecryptFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &c.key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
