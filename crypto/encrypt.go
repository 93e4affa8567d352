package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher selects the AEAD used to encrypt key material at rest.
type Cipher string

const (
	// XChaCha20 is the default cipher (XChaCha20-Poly1305).
	XChaCha20 Cipher = "xchacha20poly1305"
	// AESGCM selects AES-256-GCM.
	AESGCM Cipher = "aes-256-gcm"
)

func newAEAD(c Cipher, key []byte) (cipher.AEAD, error) {
	switch c {
	case XChaCha20, "":
		return chacha20poly1305.NewX(key)
	case AESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("unknown cipher %q", c)
	}
}

// Encrypt seals plaintext with the given 32-byte key and returns
// hex(nonce || ciphertext).
func Encrypt(plaintext, key []byte) (string, error) {
	return EncryptWith(XChaCha20, plaintext, key)
}

// EncryptWith is Encrypt with an explicit cipher.
func EncryptWith(c Cipher, plaintext, key []byte) (string, error) {
	aead, err := newAEAD(c, key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt. A wrong key or a
// tampered payload fails authentication and returns an error.
func Decrypt(encoded string, key []byte) ([]byte, error) {
	return DecryptWith(XChaCha20, encoded, key)
}

// DecryptWith is Decrypt with an explicit cipher.
func DecryptWith(c Cipher, encoded string, key []byte) ([]byte, error) {
	aead, err := newAEAD(c, key)
	if err != nil {
		return nil, err
	}
	sealed, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("payload is not valid hex: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("payload is shorter than the nonce")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
