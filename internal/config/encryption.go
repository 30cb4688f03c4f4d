// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Admin fingerprint encryption for the persistent store.
//
// Algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per encryption
//   - Wire format "iv:authTag:ciphertext", lowercase hex
//
// Key sourcing, in order:
//   - SYNC_ENCRYPTION_KEY as 64 hex chars: decoded and used directly
//   - SYNC_ENCRYPTION_KEY as anything else: treated as a passphrase and
//     run through HKDF-SHA256 with a fixed application salt
//   - otherwise a random 32-byte key persisted at data_dir/secret.key
//     with owner-only permissions
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"golang.org/x/crypto/hkdf"

	"github.com/tomtom215/syncplayer/internal/logging"
)

const (
	// EncryptionKeyEnvVar supplies the fingerprint encryption key.
	EncryptionKeyEnvVar = "SYNC_ENCRYPTION_KEY"

	// KeyFileName is the generated key file inside data_dir.
	KeyFileName = "secret.key"

	// fingerprintKeySalt is the HKDF salt binding derived keys to this use.
	fingerprintKeySalt = "syncplayer-admin-fingerprint"

	// fingerprintKeyInfo is the HKDF info parameter.
	fingerprintKeyInfo = "fingerprint-encryption-v1"

	// aesKeySize is the AES key size in bytes (256 bits).
	aesKeySize = 32

	// gcmNonceSize is the GCM nonce size in bytes.
	gcmNonceSize = 12

	// gcmTagSize is the GCM authentication tag size in bytes.
	gcmTagSize = 16
)

var (
	// ErrNoKey is returned when no usable encryption key can be sourced.
	ErrNoKey = errors.New("no encryption key available")

	// ErrEmptyPlaintext is returned when attempting to encrypt empty data.
	ErrEmptyPlaintext = errors.New("plaintext cannot be empty")

	// ErrMalformedCiphertext is returned when the stored value is not an
	// iv:authTag:ciphertext hex triple.
	ErrMalformedCiphertext = errors.New("malformed ciphertext: want iv:authTag:ciphertext hex")

	// ErrDecryptFailed is returned when authentication or decryption fails.
	ErrDecryptFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")
)

// Encryptor provides AES-256-GCM encryption for the persisted admin
// fingerprint.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor from a 32-byte key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrNoKey, aesKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: gcm}, nil
}

// LoadKey sources the encryption key per the package policy. dataDir must
// exist; the generated key file is created on first run.
func LoadKey(dataDir string) ([]byte, error) {
	if raw := os.Getenv(EncryptionKeyEnvVar); raw != "" {
		raw = strings.TrimSpace(raw)
		if len(raw) == aesKeySize*2 {
			if key, err := hex.DecodeString(raw); err == nil {
				return key, nil
			}
		}
		logging.Debug().Msg("encryption key env var is not hex, deriving via HKDF")
		return deriveKey(raw)
	}

	keyPath := filepath.Join(dataDir, KeyFileName)
	if data, err := os.ReadFile(keyPath); err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) != aesKeySize {
			return nil, fmt.Errorf("%w: corrupt key file %s", ErrNoKey, keyPath)
		}
		return key, nil
	}

	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	encoded := []byte(hex.EncodeToString(key) + "\n")
	if err := renameio.WriteFile(keyPath, encoded, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist encryption key: %w", err)
	}
	logging.Info().Str("path", keyPath).Msg("generated new encryption key")

	return key, nil
}

// deriveKey derives a 256-bit AES key from a passphrase using HKDF-SHA256.
func deriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrNoKey
	}

	reader := hkdf.New(sha256.New, []byte(passphrase), []byte(fingerprintKeySalt), []byte(fingerprintKeyInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return key, nil
}

// Encrypt encrypts a fingerprint and returns the iv:authTag:ciphertext hex
// triple.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext||tag; split the tag out for the wire format.
	sealed := e.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", ErrMalformedCiphertext
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", ErrMalformedCiphertext
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != gcmNonceSize {
		return "", ErrMalformedCiphertext
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagSize {
		return "", ErrMalformedCiphertext
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
