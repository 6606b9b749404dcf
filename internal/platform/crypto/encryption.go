package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Sealer encrypts small secrets (MFA seeds) before they reach the database.
// An unconfigured Sealer passes values through unchanged.
type Sealer struct {
	key []byte
}

func New(key string) (*Sealer, error) {
	if key == "" {
		return &Sealer{}, nil
	}
	decoded, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	if len(decoded) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be %d bytes after decoding", chacha20poly1305.KeySize)
	}
	return &Sealer{key: decoded}, nil
}

func (s *Sealer) Configured() bool {
	return s != nil && len(s.key) == chacha20poly1305.KeySize
}

func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, nil
	}
	if !s.Configured() {
		return plain, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func (s *Sealer) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	if !s.Configured() {
		return ciphertext, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, data := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, data, nil)
}

func (s *Sealer) SealString(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	return s.Seal([]byte(value))
}

func (s *Sealer) OpenString(value []byte) (string, error) {
	plain, err := s.Open(value)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func decodeKey(raw string) ([]byte, error) {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded, nil
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	return []byte(raw), nil
}
