package bank

import (
	"log/slog"
	"sync"
)

// Cache holds the process-wide question bank. The bank is loaded
// lazily on first Get and replaced only by an explicit Reload, never
// implicitly. Safe for concurrent readers.
type Cache struct {
	path string

	mu   sync.RWMutex
	bank *Bank
}

// NewCache creates a cache for the bank at path without loading it.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Get returns the cached bank, loading it on first use.
func (c *Cache) Get() (*Bank, error) {
	c.mu.RLock()
	b := c.bank
	c.mu.RUnlock()
	if b != nil {
		return b, nil
	}
	return c.Reload()
}

// Reload re-reads the bank from disk and swaps it in atomically. On
// failure the previously cached bank (if any) stays in place.
func (c *Cache) Reload() (*Bank, error) {
	b, err := Load(c.path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.bank = b
	c.mu.Unlock()

	slog.Info("question bank loaded",
		"path", b.Info.SourcePath,
		"records", b.Info.Records,
		"hash", b.Info.ContentHash[:12],
		"has_role", b.HasRole,
		"has_function", b.HasFunction,
		"has_chapter", b.HasChapter,
	)
	return b, nil
}
