// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package codec provides authenticated encryption for token material at rest
// and for client-held OAuth state.
//
// Ciphertexts are AES-256-GCM with a random 96-bit nonce prepended, encoded
// as unpadded base64url so they can be stored in a cookie unchanged. The AES
// key is derived from the configured master key with HKDF-SHA256, bound to a
// context string so the same master key can serve several purposes without
// key reuse.
//
// Every failure to decrypt (bad encoding, truncated input, wrong key, any
// modified byte) returns ErrTamperOrKey. No partial plaintext is returned.
package codec

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

	"github.com/goccy/go-json"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrKeyMissing indicates no master key was configured.
	ErrKeyMissing = errors.New("encryption key not configured")

	// ErrTamperOrKey indicates a ciphertext failed authentication, was
	// malformed, or was produced under a different key.
	ErrTamperOrKey = errors.New("ciphertext tampered or key mismatch")
)

// DefaultContext is the HKDF info string used when Config.Context is empty.
const DefaultContext = "adlink-token-encryption-v1"

const (
	minMasterKeyBytes = 16
	derivedKeyBytes   = 32
	stateTokenBytes   = 32
)

var b64 = base64.RawURLEncoding.Strict()

// Config configures a Codec.
type Config struct {
	// MasterKey is the base64-encoded master key (standard or URL alphabet).
	// It must decode to at least 16 bytes; 32 is recommended.
	MasterKey string

	// Context binds derived keys to a purpose.
	Context string
}

// Codec encrypts and decrypts secrets. It is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// New builds a Codec from cfg. Unlike an optional at-rest encryptor, a Codec
// never runs in pass-through mode: a missing key is an error.
func New(cfg Config) (*Codec, error) {
	if cfg.MasterKey == "" {
		return nil, ErrKeyMissing
	}

	masterKey, err := decodeKey(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(masterKey) < minMasterKeyBytes {
		return nil, fmt.Errorf("master key must be at least %d bytes, got %d", minMasterKeyBytes, len(masterKey))
	}

	info := cfg.Context
	if info == "" {
		info = DefaultContext
	}

	derivedKey, err := deriveKey(masterKey, []byte(info), derivedKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}

	return &Codec{aead: aead}, nil
}

func decodeKey(key string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil {
		return raw, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
}

// deriveKey derives keyLen bytes from secret with HKDF-SHA256.
func deriveKey(secret, info []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext. The output embeds the nonce and tag, so Decrypt
// needs nothing else.
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return b64.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *Codec) Decrypt(ciphertext string) ([]byte, error) {
	data, err := b64.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrTamperOrKey
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return nil, ErrTamperOrKey
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, ErrTamperOrKey
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// EncryptString is Encrypt for string secrets such as access tokens.
func (c *Codec) EncryptString(plaintext string) (string, error) {
	return c.Encrypt([]byte(plaintext))
}

// DecryptString is Decrypt returning a string.
func (c *Codec) DecryptString(ciphertext string) (string, error) {
	b, err := c.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncryptJSON marshals v and encrypts the result.
func (c *Codec) EncryptJSON(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return c.Encrypt(payload)
}

// DecryptJSON decrypts ciphertext and unmarshals it into T. A payload that
// decrypts but does not parse is treated as tampered.
func DecryptJSON[T any](c *Codec, ciphertext string) (T, error) {
	var out T
	payload, err := c.Decrypt(ciphertext)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		var zero T
		return zero, ErrTamperOrKey
	}
	return out, nil
}

// GenerateStateToken returns 256 bits of randomness encoded as unpadded
// base64url, suitable as an OAuth state nonce.
func GenerateStateToken() (string, error) {
	buf := make([]byte, stateTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	return b64.EncodeToString(buf), nil
}

// GenerateMasterKey returns a fresh 32-byte key in standard base64, the
// format expected by TOKEN_ENCRYPTION_KEY.
func GenerateMasterKey() (string, error) {
	buf := make([]byte, derivedKeyBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate master key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
