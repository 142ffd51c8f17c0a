// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/burrow/internal/json"
)

func openTestDb(t *testing.T, maxCache int64) *Db {
	t.Helper()
	d, err := Open(t.TempDir(), maxCache)
	require.NoError(t, err)
	return d
}

func TestCreateLockUnlock(t *testing.T) {
	d := openTestDb(t, 1<<20)

	ref, err := d.Create("users", "alice")
	require.NoError(t, err)
	ref.Json().Set("createdOn", json.IntValue(12345))
	require.NoError(t, d.Unlock(ref))

	assert.True(t, d.Exists("users", "alice"))

	ref, err = d.Lock("users", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), ref.Json().Get("createdOn").AsInt())
	require.NoError(t, d.Unlock(ref))
}

func TestCreateExisting(t *testing.T) {
	d := openTestDb(t, 0)

	ref, err := d.Create("users", "alice")
	require.NoError(t, err)
	require.NoError(t, d.Unlock(ref))

	_, err = d.Create("users", "alice")
	assert.ErrorIs(t, err, ErrExists)
}

func TestLockMissing(t *testing.T) {
	d := openTestDb(t, 1<<20)

	_, err := d.Lock("users", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	d := openTestDb(t, 0)

	for _, name := range []string{"alice", "bob", "carol"} {
		ref, err := d.Create("users", name)
		require.NoError(t, err)
		require.NoError(t, d.Unlock(ref))
	}

	names, err := d.List("users")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, names)

	names, err = d.List("empty")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDelete(t *testing.T) {
	d := openTestDb(t, 1<<20)

	ref, err := d.Create("tokens", "access", "abc")
	require.NoError(t, err)
	require.NoError(t, d.Unlock(ref))

	require.NoError(t, d.Delete("tokens", "access", "abc"))
	assert.False(t, d.Exists("tokens", "access", "abc"))
	assert.False(t, d.Cached("tokens", "access", "abc"))

	assert.ErrorIs(t, d.Delete("tokens", "access", "abc"), ErrNotFound)
}

func TestPathSanitization(t *testing.T) {
	d := openTestDb(t, 0)

	ref, err := d.Create("users", "../../etc/passwd")
	require.NoError(t, err)
	require.NoError(t, d.Unlock(ref))

	// The sanitized name stays inside the data directory.
	matches, err := filepath.Glob(filepath.Join(d.dir, "users", "*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "--_--_etc_passwd.json", filepath.Base(matches[0]))
}

func TestNoMutationPreservesContent(t *testing.T) {
	d := openTestDb(t, 0)

	ref, err := d.Create("config")
	require.NoError(t, err)
	ref.Json().Set("serverName", json.StringValue("example.org"))
	require.NoError(t, d.Unlock(ref))

	before, err := os.ReadFile(d.filePath([]string{"config"}))
	require.NoError(t, err)

	ref, err = d.Lock("config")
	require.NoError(t, err)
	require.NoError(t, d.Unlock(ref))

	after, err := os.ReadFile(d.filePath([]string{"config"}))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestCacheEviction(t *testing.T) {
	d := openTestDb(t, 1024)

	// Ten objects of roughly 300 bytes each; only the tail fits.
	for i := 0; i < 10; i++ {
		ref, err := d.Create("objects", fmt.Sprintf("obj%d", i))
		require.NoError(t, err)
		ref.Json().Set("data", json.StringValue(string(make([]byte, 220))))
		require.NoError(t, d.Unlock(ref))
	}

	assert.LessOrEqual(t, d.CacheSize(), int64(1024))
	assert.False(t, d.Cached("objects", "obj0"))
	assert.True(t, d.Cached("objects", "obj9"))

	// Re-locking an evicted object floats it back in, pushing out the
	// oldest of the survivors.
	ref, err := d.Lock("objects", "obj0")
	require.NoError(t, err)
	require.NoError(t, d.Unlock(ref))

	assert.True(t, d.Cached("objects", "obj0"))
	assert.LessOrEqual(t, d.CacheSize(), int64(1024))
}

func TestCacheDisabled(t *testing.T) {
	d := openTestDb(t, 0)

	ref, err := d.Create("users", "alice")
	require.NoError(t, err)
	require.NoError(t, d.Unlock(ref))

	assert.False(t, d.Cached("users", "alice"))
	assert.Zero(t, d.CacheSize())
}

func TestStaleCacheRereadsFromDisk(t *testing.T) {
	d := openTestDb(t, 1<<20)

	ref, err := d.Create("users", "alice")
	require.NoError(t, err)
	ref.Json().Set("v", json.IntValue(1))
	require.NoError(t, d.Unlock(ref))
	require.True(t, d.Cached("users", "alice"))

	// Simulate another process rewriting the file.
	time.Sleep(10 * time.Millisecond)
	path := d.filePath([]string{"users", "alice"})
	require.NoError(t, os.WriteFile(path, []byte(`{"v":2}`), 0o640))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	ref, err = d.Lock("users", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ref.Json().Get("v").AsInt())
	require.NoError(t, d.Unlock(ref))
}

func TestLockIsExclusive(t *testing.T) {
	d := openTestDb(t, 1<<20)

	ref, err := d.Create("counters", "n")
	require.NoError(t, err)
	ref.Json().Set("n", json.IntValue(0))
	require.NoError(t, d.Unlock(ref))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				ref, err := d.Lock("counters", "n")
				if err != nil {
					t.Error(err)
					return
				}
				ref.Json().Set("n", json.IntValue(ref.Json().Get("n").AsInt()+1))
				if err := d.Unlock(ref); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	ref, err = d.Lock("counters", "n")
	require.NoError(t, err)
	assert.Equal(t, int64(200), ref.Json().Get("n").AsInt())
	require.NoError(t, d.Unlock(ref))
}
