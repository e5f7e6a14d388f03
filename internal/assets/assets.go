// Package assets resolves model and palette files from PAK archives and the
// local filesystem, caching what it loads.
package assets

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"

	"github.com/Faultbox/mdlcore/internal/logger"
	"github.com/Faultbox/mdlcore/pkg/pak"
)

// ErrNotFound is returned when no archive or directory holds a file.
var ErrNotFound = errors.New("asset not found")

// Manager handles asset loading from PAK archives and directories.
type Manager struct {
	archives []*pak.Archive
	dirs     []string
	cache    *Cache
	mu       sync.RWMutex
}

// NewManager creates a new asset manager whose cache holds up to
// maxCacheBytes of file data. Zero disables the limit.
func NewManager(maxCacheBytes int) *Manager {
	return &Manager{
		cache: NewCache(maxCacheBytes),
	}
}

// AddArchive adds a PAK archive to the manager.
// Archives are searched in reverse order (last added = highest priority).
func (m *Manager) AddArchive(path string) error {
	archive, err := pak.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	m.mu.Lock()
	m.archives = append(m.archives, archive)
	m.mu.Unlock()

	logger.Named("assets").Debug("archive added",
		zap.String("path", path), zap.Int("files", len(archive.List())))
	return nil
}

// AddDir adds a directory searched after every archive.
func (m *Manager) AddDir(dir string) {
	m.mu.Lock()
	m.dirs = append(m.dirs, dir)
	m.mu.Unlock()
}

// Load returns the contents of path from the newest archive holding it, then
// from the added directories in order. A path that names an existing local
// file is read directly when nothing else holds it.
func (m *Manager) Load(path string) ([]byte, error) {
	if data, ok := m.cache.Get(path); ok {
		return data, nil
	}

	data, err := m.load(path)
	if err != nil {
		return nil, err
	}
	m.cache.Set(path, data)
	return data, nil
}

func (m *Manager) load(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.archives) - 1; i >= 0; i-- {
		if !m.archives[i].Contains(path) {
			continue
		}
		return m.archives[i].Read(path)
	}

	candidates := make([]string, 0, len(m.dirs)+1)
	for _, dir := range m.dirs {
		candidates = append(candidates, filepath.Join(dir, filepath.FromSlash(path)))
	}
	candidates = append(candidates, path)

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// List returns every archived path, newest archive first, without duplicates.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var result []string
	for i := len(m.archives) - 1; i >= 0; i-- {
		for _, p := range m.archives[i].List() {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}
	return result
}

// Cache returns the manager's cache.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Close closes all archives.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, archive := range m.archives {
		archive.Close()
	}
	m.archives = nil
	m.dirs = nil
	m.cache.Clear()
}

// Cache is an in-memory cache for loaded assets. When the total cached size
// would exceed its limit, the least recently used entries are dropped first.
type Cache struct {
	entries  *simplelru.LRU[string, []byte]
	size     int
	maxBytes int
	mu       sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache holding up to maxBytes. Zero means unlimited.
func NewCache(maxBytes int) *Cache {
	c := &Cache{maxBytes: maxBytes}
	// The entry limit is never reached; eviction is driven by size.
	entries, err := simplelru.NewLRU[string, []byte](math.MaxInt32, func(_ string, data []byte) {
		c.size -= len(data)
	})
	if err != nil {
		panic(err)
	}
	c.entries = entries
	return c
}

// Get retrieves an item from cache and marks it recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache. Items larger than the limit are not stored.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxBytes > 0 && len(data) > c.maxBytes {
		return
	}
	c.entries.Remove(key)

	for c.maxBytes > 0 && c.size+len(data) > c.maxBytes {
		if _, _, ok := c.entries.RemoveOldest(); !ok {
			break
		}
	}

	c.entries.Add(key, data)
	c.size += len(data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.size = 0
	c.hits = 0
	c.misses = 0
}

// Size returns the number of cached bytes.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
