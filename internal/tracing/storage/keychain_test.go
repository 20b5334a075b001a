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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestLookupKey(t *testing.T) {
	keyring.MockInit()
	t.Setenv(KeyEnv, "")

	key, src := LookupKey()
	assert.Empty(t, key)
	assert.Equal(t, KeySourceNone, src)

	require.NoError(t, StoreKey("from-keychain"))
	key, src = LookupKey()
	assert.Equal(t, "from-keychain", key)
	assert.Equal(t, KeySourceKeychain, src)

	t.Setenv(KeyEnv, "from-env")
	key, src = LookupKey()
	assert.Equal(t, "from-env", key)
	assert.Equal(t, KeySourceEnv, src)
}

func TestDeleteKey(t *testing.T) {
	keyring.MockInit()
	t.Setenv(KeyEnv, "")

	require.NoError(t, DeleteKey(), "deleting a missing key is not an error")

	require.NoError(t, StoreKey("k"))
	require.NoError(t, DeleteKey())
	_, src := LookupKey()
	assert.Equal(t, KeySourceNone, src)
}

func TestStoreKey_Empty(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, StoreKey(""))
}
