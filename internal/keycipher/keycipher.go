// Package keycipher turns wallet private keys into password-protected text
// suitable for at-rest storage.
package keycipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrDecode reports ciphertext that is not valid stored text.
	ErrDecode = errors.New("ciphertext decode failure")

	// ErrAuthentication reports a sealed ciphertext that failed to open,
	// which means a wrong password or tampered data.
	ErrAuthentication = errors.New("ciphertext authentication failed")
)

// Cipher is a reversible, password-keyed transform.
type Cipher interface {
	Encrypt(secret, password string) (string, error)
	Decrypt(ciphertext, password string) (string, error)
}

// Legacy is the repeated-password XOR transform used by early stores. It has
// no integrity check: a wrong password yields wrong bytes, not an error.
type Legacy struct{}

// Encrypt XORs secret with the repeated password and base64-encodes the result.
func (Legacy) Encrypt(secret, password string) (string, error) {
	return base64.StdEncoding.EncodeToString(xorKeystream([]byte(secret), []byte(password))), nil
}

// Decrypt reverses Encrypt.
func (Legacy) Decrypt(ciphertext, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(xorKeystream(raw, []byte(password))), nil
}

// xorKeystream returns data XOR password repeated to len(data). An empty
// password leaves data unchanged.
func xorKeystream(data, password []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	if len(password) == 0 {
		return out
	}
	for i := range out {
		out[i] ^= password[i%len(password)]
	}
	return out
}

const (
	sealedPrefix = "v1:"
	saltSize     = 16
	keySize      = 32

	// DefaultTime and DefaultMemoryKiB are the Argon2id cost parameters.
	DefaultTime      uint32 = 3
	DefaultMemoryKiB uint32 = 64 * 1024
	defaultThreads   uint8  = 4
)

// Sealed derives an AES-256-GCM key from the password with Argon2id. Output is
// "v1:" followed by base64(salt || nonce || ciphertext).
type Sealed struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8

	// AllowLegacy makes Decrypt fall back to Legacy for text without the
	// sealed prefix.
	AllowLegacy bool
}

// NewSealed returns a Sealed cipher with the default cost parameters.
func NewSealed(allowLegacy bool) *Sealed {
	return &Sealed{
		Time:        DefaultTime,
		MemoryKiB:   DefaultMemoryKiB,
		Threads:     defaultThreads,
		AllowLegacy: allowLegacy,
	}
}

// Encrypt seals secret under a key derived from password and a fresh salt.
func (s *Sealed) Encrypt(secret, password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := s.aead(password, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(secret)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(secret), nil)

	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens text produced by Encrypt.
func (s *Sealed) Decrypt(ciphertext, password string) (string, error) {
	body, ok := strings.CutPrefix(ciphertext, sealedPrefix)
	if !ok {
		if s.AllowLegacy {
			return Legacy{}.Decrypt(ciphertext, password)
		}
		return "", fmt.Errorf("%w: missing %q prefix", ErrDecode, sealedPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(raw) < saltSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecode)
	}

	gcm, err := s.aead(password, raw[:saltSize])
	if err != nil {
		return "", err
	}
	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecode)
	}

	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plain), nil
}

func (s *Sealed) aead(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, s.Time, s.MemoryKiB, s.Threads, keySize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// IsSealed reports whether ciphertext was produced by Sealed.
func IsSealed(ciphertext string) bool {
	return strings.HasPrefix(ciphertext, sealedPrefix)
}
