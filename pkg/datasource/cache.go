package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/richard-senior/matchpredictor/internal/logger"
)

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Cache keeps raw provider payloads on disk so repeated runs do not hit the network.
// A zero TTL keeps entries forever, an empty directory disables caching.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

func NewCache(dir string, ttl time.Duration) *Cache {
	return &Cache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, unsafeKey.ReplaceAllString(key, "-")+".json")
}

// Get returns a fresh cached payload
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil || c.dir == "" {
		return nil, false
	}
	p := c.path(key)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(info.ModTime()) > c.ttl {
		logger.Debug("Cache entry expired", p)
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		logger.Warn("Failed to read cache file, perhaps consider deleting it", p, err)
		return nil, false
	}
	logger.Info("Loaded data from cache:", p)
	return data, true
}

// Put stores a payload
func (c *Cache) Put(key string, data []byte) error {
	if c == nil || c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	p := c.path(key)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("error writing cache file %s: %w", p, err)
	}
	return nil
}
