// Package envelope seals image bytes and file references with AES-256-GCM.
//
// A packet is nonce(12) ‖ ciphertext ‖ tag(16). A reference token is the
// unpadded URL-safe base64 rendering of a packet whose plaintext is the JSON
// encoding of a models.FileReference, sealed under the reference's own nonce.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"imgvault/internal/models"
)

// KeySize is the required raw key length.
const KeySize = 32

var (
	ErrInvalidKey     = errors.New("invalid encryption key")
	ErrEncryption     = errors.New("encryption error")
	ErrInvalidImageID = errors.New("invalid image id")
)

var tokenEncoding = base64.RawURLEncoding.Strict()

// Envelope holds the single process-wide symmetric key.
type Envelope struct {
	aead cipher.AEAD
}

// New builds an envelope from a raw 32-byte key.
func New(key []byte) (*Envelope, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Envelope{aead: aead}, nil
}

// NewFromBase64 decodes a standard base64 key and builds an envelope.
func NewFromBase64(encoded string) (*Envelope, error) {
	key, err := DecodeKey(encoded)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// DecodeKey decodes a standard base64 key and checks its length.
func DecodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", ErrInvalidKey)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: must decode to %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return key, nil
}

// GenerateKey returns a fresh random key in standard base64.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// EncryptBytes seals plaintext under a fresh random nonce.
func (e *Envelope) EncryptBytes(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, models.NonceSize, models.NonceSize+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %v", ErrEncryption, err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptBytes opens a packet produced by EncryptBytes.
func (e *Envelope) DecryptBytes(packet []byte) ([]byte, error) {
	if len(packet) < models.NonceSize {
		return nil, fmt.Errorf("%w: packet shorter than nonce", ErrEncryption)
	}
	nonce, sealed := packet[:models.NonceSize], packet[models.NonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrEncryption)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// EncodeReference renders ref as an opaque token. The reference's own nonce
// is used, so encoding the same reference twice yields the same token.
func (e *Envelope) EncodeReference(ref models.FileReference) (string, error) {
	plaintext, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("%w: marshal reference: %v", ErrEncryption, err)
	}
	packet := make([]byte, models.NonceSize, models.NonceSize+len(plaintext)+e.aead.Overhead())
	copy(packet, ref.Nonce[:])
	packet = e.aead.Seal(packet, ref.Nonce[:], plaintext, nil)
	return tokenEncoding.EncodeToString(packet), nil
}

// DecodeReference parses a token produced by EncodeReference. Every failure
// is reported as ErrInvalidImageID.
func (e *Envelope) DecodeReference(token string) (models.FileReference, error) {
	if token == "" || strings.ContainsAny(token, "\r\n") {
		return models.FileReference{}, ErrInvalidImageID
	}
	packet, err := tokenEncoding.DecodeString(token)
	if err != nil || len(packet) < models.NonceSize {
		return models.FileReference{}, ErrInvalidImageID
	}
	plaintext, err := e.aead.Open(nil, packet[:models.NonceSize], packet[models.NonceSize:], nil)
	if err != nil {
		return models.FileReference{}, ErrInvalidImageID
	}

	var ref models.FileReference
	if err := json.Unmarshal(plaintext, &ref); err != nil {
		return models.FileReference{}, ErrInvalidImageID
	}
	if ref.Validate() != nil || string(ref.Nonce[:]) != string(packet[:models.NonceSize]) {
		return models.FileReference{}, ErrInvalidImageID
	}
	return ref, nil
}
