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
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyEnv names the environment variable holding the span database key.
	KeyEnv = "TRACEBRIDGE_TRACE_KEY"

	// keychainService is the service name for tracebridge keychain entries
	keychainService = "tracebridge"

	// keyName is the keychain entry for the span database key
	keyName = "trace-key"
)

// KeySource says where LookupKey found the key.
type KeySource string

const (
	KeySourceNone     KeySource = "none"
	KeySourceEnv      KeySource = "environment"
	KeySourceKeychain KeySource = "keychain"
)

// ErrKeychainUnavailable is returned when the system keychain is not accessible.
var ErrKeychainUnavailable = errors.New("system keychain unavailable")

// LookupKey returns the span database key.
//
// Resolution order:
//  1. TRACEBRIDGE_TRACE_KEY environment variable
//  2. System keychain (macOS Keychain, Linux Secret Service, Windows Credential Manager)
//
// A locked or missing keychain is treated as no key.
func LookupKey() (string, KeySource) {
	if key := os.Getenv(KeyEnv); key != "" {
		return key, KeySourceEnv
	}
	key, err := keyring.Get(keychainService, keyName)
	if err == nil && key != "" {
		return key, KeySourceKeychain
	}
	return "", KeySourceNone
}

// StoreKey saves key in the system keychain.
func StoreKey(key string) error {
	if key == "" {
		return errors.New("encryption key is empty")
	}
	if err := keyring.Set(keychainService, keyName, key); err != nil {
		return fmt.Errorf("%w: %v", ErrKeychainUnavailable, err)
	}
	return nil
}

// DeleteKey removes the key from the keychain. A missing entry is not an
// error.
func DeleteKey() error {
	if err := keyring.Delete(keychainService, keyName); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrKeychainUnavailable, err)
	}
	return nil
}
