// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package db implements the flat-file JSON object store. Every object is
// addressed by an ordered sequence of path components and stored as one
// .json file under the data directory. Objects are accessed exclusively:
// Lock returns the only live reference to an object, and Unlock atomically
// rewrites the file. Recently used objects are kept parsed in a
// byte-bounded LRU cache.
package db

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wingedpig/burrow/internal/json"
)

var (
	// ErrNotFound means no object exists at the given path.
	ErrNotFound = errors.New("db: object not found")
	// ErrExists means Create was called for an existing object.
	ErrExists = errors.New("db: object already exists")
	// ErrLocked means another process holds the advisory lock.
	ErrLocked = errors.New("db: object locked by another process")
)

// Db is a handle to one data directory.
type Db struct {
	dir string

	// mu orders all metadata operations: cache bookkeeping, LRU
	// movement, and object-lock registry updates. It is never held
	// while blocking on an object lock, so object locks may be taken
	// with mu-guarded sections nested inside them but never the other
	// way around.
	mu        sync.Mutex
	maxCache  int64
	cacheSize int64
	cache     map[string]*entry
	lru       *list.List // front is most recently used
	locks     map[string]*objLock
}

// objLock serializes in-process access to a single object. The refs
// counter keeps the registry entry alive while goroutines are waiting.
type objLock struct {
	mu   sync.Mutex
	refs int
}

type entry struct {
	key  string
	path []string
	json *json.Object
	size int64
	ts   time.Time
	elem *list.Element
}

// Ref is an exclusive reference to a locked object. The JSON tree may be
// mutated freely; Unlock persists it.
type Ref struct {
	db   *Db
	key  string
	path []string
	json *json.Object
	file *os.File
	lock *objLock
}

// Json returns the object's mutable JSON tree.
func (r *Ref) Json() *json.Object {
	return r.json
}

// SetJson replaces the object's entire JSON tree.
func (r *Ref) SetJson(obj *json.Object) {
	if obj == nil {
		obj = json.NewObject()
	}
	r.json = obj
}

// Path returns the path the reference was locked at.
func (r *Ref) Path() []string {
	return r.path
}

// Open opens (creating if necessary) a data directory. maxCache is the
// cache bound in bytes; zero disables caching.
func Open(dir string, maxCache int64) (*Db, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Db{
		dir:      dir,
		maxCache: maxCache,
		cache:    make(map[string]*entry),
		lru:      list.New(),
		locks:    make(map[string]*objLock),
	}, nil
}

// SetMaxCache adjusts the cache bound and evicts down to it.
func (d *Db) SetMaxCache(maxCache int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxCache = maxCache
	d.evict()
}

// Close drops the cache. Outstanding references stay valid until
// unlocked.
func (d *Db) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxCache = 0
	d.evict()
}

// sanitize neutralizes path separators and dots so a component can never
// escape the data directory.
func sanitize(component string) string {
	component = strings.ReplaceAll(component, "/", "_")
	return strings.ReplaceAll(component, ".", "-")
}

func cacheKey(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = sanitize(p)
	}
	return strings.Join(parts, "/")
}

func (d *Db) filePath(path []string) string {
	return filepath.Join(d.dir, cacheKey(path)) + ".json"
}

// acquire takes the in-process lock for a path. The metadata mutex is
// only held to manipulate the registry, never while blocking.
func (d *Db) acquire(key string) *objLock {
	d.mu.Lock()
	l := d.locks[key]
	if l == nil {
		l = &objLock{}
		d.locks[key] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return l
}

func (d *Db) release(l *objLock, key string) {
	l.mu.Unlock()
	d.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(d.locks, key)
	}
	d.mu.Unlock()
}

// Exists reports whether an object exists at the path. The object is not
// parsed.
func (d *Db) Exists(path ...string) bool {
	if len(path) == 0 {
		return false
	}
	_, err := os.Stat(d.filePath(path))
	return err == nil
}

// List returns the names of all objects directly under the path.
func (d *Db) List(path ...string) ([]string, error) {
	dir := filepath.Join(d.dir, cacheKey(path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var names []string
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	return names, nil
}

// Create makes a new empty object and returns it locked. It fails with
// ErrExists if the path is already populated. The per-path lock is held
// across the existence check, the file creation, and the lock
// acquisition, so a concurrent Lock on the same path is linearized after
// the Create and observes the created object.
func (d *Db) Create(path ...string) (*Ref, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("create: empty path")
	}
	key := cacheKey(path)
	file := d.filePath(path)

	l := d.acquire(key)

	if _, err := os.Stat(file); err == nil {
		d.release(l, key)
		return nil, ErrExists
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		d.release(l, key)
		return nil, fmt.Errorf("create %s: %w", key, err)
	}
	if err := os.WriteFile(file, []byte("{}"), 0o640); err != nil {
		d.release(l, key)
		return nil, fmt.Errorf("create %s: %w", key, err)
	}

	ref, err := d.lockLocked(l, key, path)
	if err != nil {
		d.release(l, key)
		return nil, err
	}
	return ref, nil
}

// Lock opens, advisory-locks, and parses the object at the path,
// returning an exclusive reference. A cached object whose file changed on
// disk is re-parsed first.
func (d *Db) Lock(path ...string) (*Ref, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("lock: empty path")
	}
	key := cacheKey(path)
	l := d.acquire(key)

	ref, err := d.lockLocked(l, key, path)
	if err != nil {
		d.release(l, key)
		return nil, err
	}
	return ref, nil
}

// lockLocked does the disk and cache work of Lock with the object lock
// already held.
func (d *Db) lockLocked(l *objLock, key string, path []string) (*Ref, error) {
	file, err := os.OpenFile(d.filePath(path), os.O_RDWR, 0)
	if err != nil {
		d.mu.Lock()
		// A cached object with no backing file was deleted behind our
		// back; forget it.
		if ent := d.cache[key]; ent != nil {
			d.remove(ent)
		}
		d.mu.Unlock()
		return nil, ErrNotFound
	}

	flock := unix.Flock_t{Type: unix.F_WRLCK, Whence: io.SeekStart}
	if err := unix.FcntlFlock(file.Fd(), unix.F_SETLK, &flock); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}

	ref := &Ref{db: d, key: key, path: append([]string(nil), path...), file: file, lock: l}

	d.mu.Lock()
	ent := d.cache[key]
	d.mu.Unlock()

	if ent != nil {
		// Re-parse if another process rewrote the file since caching.
		if info, err := file.Stat(); err == nil && info.ModTime().After(ent.ts) {
			obj, derr := json.Decode(file)
			if derr != nil {
				file.Close()
				return nil, fmt.Errorf("parse %s: %w", key, derr)
			}
			d.mu.Lock()
			d.cacheSize -= ent.size
			ent.json = obj
			ent.size = estimateObject(obj)
			ent.ts = info.ModTime()
			d.cacheSize += ent.size
			d.mu.Unlock()
		}
		d.mu.Lock()
		d.lru.MoveToFront(ent.elem)
		d.evict()
		d.mu.Unlock()
		ref.json = ent.json
		return ref, nil
	}

	obj, err := json.Decode(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	ref.json = obj

	d.mu.Lock()
	if d.maxCache > 0 {
		ent = &entry{key: key, path: ref.path, json: obj, size: estimateObject(obj), ts: time.Now()}
		ent.elem = d.lru.PushFront(ent)
		d.cache[key] = ent
		d.cacheSize += ent.size
		d.evict()
	}
	d.mu.Unlock()

	return ref, nil
}

// Unlock writes the reference's JSON tree back to disk, releases the
// advisory lock, and updates the cache accounting. The write truncates
// and rewrites in place while the advisory lock is still held, so other
// processes observe either the old or the new content.
func (d *Db) Unlock(ref *Ref) error {
	if ref == nil || ref.file == nil {
		return fmt.Errorf("unlock: stale reference")
	}

	var werr error
	if _, err := ref.file.Seek(0, io.SeekStart); err != nil {
		werr = err
	} else if err := ref.file.Truncate(0); err != nil {
		werr = err
	} else if _, err := json.Encode(ref.json, ref.file, json.EncodeDefault); err != nil {
		werr = err
	}
	if werr != nil {
		slog.Error("failed to rewrite object", "path", ref.key, "error", werr)
	}
	ref.file.Close()
	ref.file = nil

	d.mu.Lock()
	if ent := d.cache[ref.key]; ent != nil {
		d.cacheSize -= ent.size
		ent.json = ref.json
		ent.size = estimateObject(ref.json)
		ent.ts = time.Now()
		d.cacheSize += ent.size
		d.lru.MoveToFront(ent.elem)
		d.evict()
	}
	d.mu.Unlock()

	d.release(ref.lock, ref.key)
	ref.lock = nil

	if werr != nil {
		return fmt.Errorf("unlock %s: %w", ref.key, werr)
	}
	return nil
}

// Delete removes the object at the path from disk and cache.
func (d *Db) Delete(path ...string) error {
	if len(path) == 0 {
		return fmt.Errorf("delete: empty path")
	}
	key := cacheKey(path)
	l := d.acquire(key)
	defer d.release(l, key)

	d.mu.Lock()
	if ent := d.cache[key]; ent != nil {
		d.remove(ent)
	}
	d.mu.Unlock()

	file := d.filePath(path)
	if _, err := os.Stat(file); err != nil {
		return ErrNotFound
	}
	if err := os.Remove(file); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// CacheSize returns the current estimated cache footprint in bytes.
func (d *Db) CacheSize() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cacheSize
}

// Cached reports whether the object at the path is currently cached.
func (d *Db) Cached(path ...string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.cache[cacheKey(path)]
	return ok
}

// remove drops an entry from the cache. Callers hold d.mu.
func (d *Db) remove(ent *entry) {
	delete(d.cache, ent.key)
	d.lru.Remove(ent.elem)
	d.cacheSize -= ent.size
}

// evict drops least-recently-used entries until the cache fits the
// bound. Callers hold d.mu.
func (d *Db) evict() {
	for d.cacheSize > d.maxCache && d.lru.Len() > 0 {
		ent := d.lru.Back().Value.(*entry)
		d.remove(ent)
	}
}
