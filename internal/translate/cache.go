package translate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// CacheEntry is one cached translation.
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile is the on-disk cache structure.
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// TranslationCache caches translations keyed by the SHA-256 of the
// source text. Safe for concurrent use.
type TranslationCache struct {
	cachePath string
	cache     map[string]CacheEntry
	mu        sync.RWMutex
}

// NewTranslationCache creates a cache persisted at cachePath. An empty
// path keeps the cache memory-only.
func NewTranslationCache(cachePath string) *TranslationCache {
	return &TranslationCache{
		cachePath: cachePath,
		cache:     make(map[string]CacheEntry),
	}
}

// ComputeHash returns the cache key for a piece of text.
func (c *TranslationCache) ComputeHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// Get returns the cached translation for text.
func (c *TranslationCache) Get(text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[c.ComputeHash(text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set stores a translation.
func (c *TranslationCache) Set(text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := c.ComputeHash(text)
	c.cache[hash] = CacheEntry{
		Hash:        hash,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
}

// Load reads the cache file. A missing file or empty path starts empty.
func (c *TranslationCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}
	if _, err := os.Stat(c.cachePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	var cacheFile CacheFile
	if err := json.Unmarshal(data, &cacheFile); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}

	c.cache = make(map[string]CacheEntry)
	for _, entry := range cacheFile.Entries {
		c.cache[entry.Hash] = entry
	}
	return nil
}

// Save writes the cache file. An empty path is a no-op.
func (c *TranslationCache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachePath == "" {
		return nil
	}

	entries := make([]CacheEntry, 0, len(c.cache))
	for _, entry := range c.cache {
		entries = append(entries, entry)
	}
	cacheFile := CacheFile{
		Version: "1.0",
		Entries: entries,
	}

	data, err := json.MarshalIndent(cacheFile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Filter splits blocks into cache hits (as finished results) and misses.
func (c *TranslationCache) Filter(blocks []Block) (cached []Result, uncached []Block) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached = make([]Result, 0)
	uncached = make([]Block, 0)

	for _, block := range blocks {
		if entry, ok := c.cache[c.ComputeHash(block.Text)]; ok {
			cached = append(cached, Result{
				Block:      block,
				Translated: entry.Translation,
				FromCache:  true,
			})
		} else {
			uncached = append(uncached, block)
		}
	}
	return cached, uncached
}

// Size returns the number of cached entries.
func (c *TranslationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear drops all entries.
func (c *TranslationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]CacheEntry)
}

// CachePath returns the cache file path.
func (c *TranslationCache) CachePath() string {
	return c.cachePath
}
