package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CacheName derives the on-disk filename for a fetch, keyed by the
// identifier and requested count with special characters stripped.
func CacheName(p Params) string {
	id := p.WorkspaceID
	if id == "" {
		id = p.SkillID
	}
	if id == "" {
		id = p.AssistantID
	}
	safe := unsafeNameChars.ReplaceAllString(id, "")
	return fmt.Sprintf("logs_%s_%d.json", safe, p.Count)
}

// Cache persists fetched log batches as JSON files in a directory.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name)
}

// Exists reports whether a cached batch of the given name is present.
func (c *Cache) Exists(name string) bool {
	info, err := os.Stat(c.path(name))
	return err == nil && !info.IsDir()
}

// Load reads a cached batch.
func (c *Cache) Load(name string) ([]any, error) {
	data, err := os.ReadFile(c.path(name))
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	var logs []any
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", name, err)
	}
	return logs, nil
}

// Save writes a batch to the cache.
func (c *Cache) Save(name string, logs []any) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}
	return os.WriteFile(c.path(name), data, 0o644)
}

// FetchOrLoad loads a previously fetched batch with the same derived name
// instead of refetching, unless overwrite is set. A nil cache disables
// caching. The bool result reports whether the batch came from the cache.
func (c *Client) FetchOrLoad(ctx context.Context, p Params, cache *Cache, overwrite bool) ([]any, bool, error) {
	if cache == nil {
		logs, err := c.FetchLogs(ctx, p)
		return logs, false, err
	}

	name := CacheName(p)
	if !overwrite && cache.Exists(name) {
		c.logger.Info("loading logs from cache", "file", name)
		logs, err := cache.Load(name)
		if err != nil {
			return nil, false, err
		}
		return logs, true, nil
	}

	logs, err := c.FetchLogs(ctx, p)
	if err != nil {
		return nil, false, err
	}
	if err := cache.Save(name, logs); err != nil {
		return nil, false, fmt.Errorf("save cache: %w", err)
	}
	return logs, false, nil
}
