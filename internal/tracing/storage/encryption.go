// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for passphrase keys.
const (
	argon2Time        = 3
	argon2Memory      = 64 * 1024 // 64MB in KB
	argon2Parallelism = 4
	argon2KeyLength   = 32 // 256 bits for AES-256

	saltLength = 16
)

// EncryptionKey seals stored span attributes with AES-256-GCM.
type EncryptionKey struct {
	aead cipher.AEAD
	raw  []byte
}

// ParseEncryptionKey accepts a base64 encoded 32 byte key. Anything else is
// treated as a passphrase and stretched with Argon2id over salt, which must
// then be set.
func ParseEncryptionKey(s string, salt []byte) (*EncryptionKey, error) {
	if s == "" {
		return nil, errors.New("encryption key is empty")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err == nil && len(raw) == argon2KeyLength {
		return newEncryptionKey(raw)
	}
	if len(salt) == 0 {
		return nil, errors.New("passphrase keys require a salt")
	}
	raw = argon2.IDKey([]byte(s), salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLength)
	return newEncryptionKey(raw)
}

// GenerateEncryptionKey returns a new random key.
func GenerateEncryptionKey() (*EncryptionKey, error) {
	raw := make([]byte, argon2KeyLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return newEncryptionKey(raw)
}

func newEncryptionKey(raw []byte) (*EncryptionKey, error) {
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &EncryptionKey{aead: aead, raw: raw}, nil
}

// String returns the base64 encoded key.
func (k *EncryptionKey) String() string {
	return base64.StdEncoding.EncodeToString(k.raw)
}

// Seal encrypts plaintext. The nonce is prepended to the returned bytes.
func (k *EncryptionKey) Seal(plaintext []byte) ([]byte, error) {
	if k == nil {
		return nil, errors.New("encryption key is nil")
	}
	nonce := make([]byte, k.aead.NonceSize(), k.aead.NonceSize()+len(plaintext)+k.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts bytes produced by Seal.
func (k *EncryptionKey) Open(sealed []byte) ([]byte, error) {
	if k == nil {
		return nil, errors.New("encryption key is nil")
	}
	n := k.aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("ciphertext too short")
	}
	plaintext, err := k.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
