// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lvldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDB(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Get([]byte("missing"))
	assert.True(t, db.IsNotFound(err))

	require.NoError(t, db.Put([]byte("a/1"), []byte("x")))
	require.NoError(t, db.Put([]byte("a/2"), []byte("y")))
	require.NoError(t, db.Put([]byte("b/1"), []byte("z")))

	v, err := db.Get([]byte("a/1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), v)

	has, err := db.Has([]byte("b/1"))
	require.NoError(t, err)
	assert.True(t, has)

	var keys []string
	require.NoError(t, db.Iterate([]byte("a/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}))
	assert.Equal(t, []string{"a/1", "a/2"}, keys)

	require.NoError(t, db.Delete([]byte("a/1")))
	has, err = db.Has([]byte("a/1"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPersistentDB(t *testing.T) {
	dir := t.TempDir()

	db, err := New(dir, Options{})
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Close())

	db, err = New(dir, Options{CacheSize: 32})
	require.NoError(t, err)
	defer db.Close()
	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
