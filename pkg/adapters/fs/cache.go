package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/audittrail/pkg/core"
)

// indexEntry is the last acknowledged state of one record file.
type indexEntry struct {
	Record       *core.Record `json:"record"`
	LastModified time.Time    `json:"lastModified"`
}

// index represents the persistent cache state.
type index struct {
	Version int                    `json:"version"`
	Entries map[string]*indexEntry `json:"entries"` // Key is the slash-separated path relative to the root.
	dirty   bool
	mu      sync.RWMutex
}

// cache manages the loading, updating, and saving of the index.
// It is the persisted history the audit engine compares new versions with:
// a file edited on disk only reaches the index once its event was delivered.
type cache struct {
	Path  string
	index *index
}

func newCache(root, systemDir string) *cache {
	return &cache{
		Path: filepath.Join(root, systemDir, "index.json"),
		index: &index{
			Version: 1,
			Entries: make(map[string]*indexEntry),
		},
	}
}

// Load reads the cache from disk. A missing or corrupted file yields an empty index.
func (c *cache) Load() error {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	if err := json.Unmarshal(data, c.index); err != nil || c.index.Entries == nil {
		c.index.Entries = make(map[string]*indexEntry)
		return nil
	}

	c.index.dirty = false
	return nil
}

// Save persists the cache if it is dirty.
func (c *cache) Save() error {
	c.index.mu.RLock()
	if !c.index.dirty {
		c.index.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	c.index.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := writeFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.index.mu.Lock()
	c.index.dirty = false
	c.index.mu.Unlock()
	return nil
}

// Fresh returns the entry for relPath if its modification time matches.
func (c *cache) Fresh(relPath string, mtime time.Time) (*indexEntry, bool) {
	entry, ok := c.Lookup(relPath)
	if !ok || !entry.LastModified.Equal(mtime) {
		return nil, false
	}
	return entry, true
}

// Lookup returns the entry for relPath.
func (c *cache) Lookup(relPath string) (*indexEntry, bool) {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	entry, ok := c.index.Entries[relPath]
	return entry, ok
}

// Set updates an entry in the cache.
func (c *cache) Set(relPath string, entry *indexEntry) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	c.index.Entries[relPath] = entry
	c.index.dirty = true
}

// Delete removes a single entry from the cache.
func (c *cache) Delete(relPath string) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	if _, ok := c.index.Entries[relPath]; ok {
		delete(c.index.Entries, relPath)
		c.index.dirty = true
	}
}

// Range iterates over all entries; callback returns false to stop.
func (c *cache) Range(callback func(relPath string, entry *indexEntry) bool) {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	for k, v := range c.index.Entries {
		if !callback(k, v) {
			break
		}
	}
}

// Len returns the number of entries in the cache.
func (c *cache) Len() int {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return len(c.index.Entries)
}
