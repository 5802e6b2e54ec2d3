package cache

import (
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ppiankov/deepguard/internal/model"
)

// FindingsCache stores analyzer findings keyed by media kind and content hash,
// so identical bytes uploaded again skip the analyzer.
//
// The memory tier holds decoded findings; only the disk tier stores JSON.
// A disk hit is promoted to memory.
type FindingsCache struct {
	memory *gocache.Cache // nil when the memory tier is off
	disk   *DiskCache     // nil when the disk tier is off
}

// NewFindingsCache builds a two-tier cache. A memoryTTL <= 0 disables the memory
// tier and a nil disk disables the disk tier; with neither, every lookup misses.
func NewFindingsCache(memoryTTL time.Duration, disk *DiskCache) *FindingsCache {
	c := &FindingsCache{disk: disk}
	if memoryTTL > 0 {
		c.memory = gocache.New(memoryTTL, memoryTTL)
	}
	return c
}

// Get returns cached findings for the content, if any
func (c *FindingsCache) Get(kind model.MediaKind, sha256Hex string) (model.Findings, bool) {
	if c == nil || sha256Hex == "" {
		return model.Findings{}, false
	}
	key := CacheKey(kind, sha256Hex)

	if c.memory != nil {
		if val, found := c.memory.Get(key); found {
			return cloneFindings(val.(model.Findings)), true
		}
	}

	if c.disk == nil {
		return model.Findings{}, false
	}
	data, ok := c.disk.Get(key)
	if !ok {
		return model.Findings{}, false
	}
	findings, err := model.DecodeFindings(kind, data)
	if err != nil || findings.Validate() != nil {
		_ = c.disk.Delete(key)
		return model.Findings{}, false
	}

	if c.memory != nil {
		c.memory.SetDefault(key, cloneFindings(findings))
	}
	return findings, true
}

// Put caches findings for the content in every enabled tier
func (c *FindingsCache) Put(sha256Hex string, findings model.Findings) error {
	if c == nil || sha256Hex == "" {
		return nil
	}
	if err := findings.Validate(); err != nil {
		return fmt.Errorf("cache findings: %w", err)
	}
	key := CacheKey(findings.Kind, sha256Hex)

	if c.memory != nil {
		c.memory.SetDefault(key, cloneFindings(findings))
	}
	if c.disk == nil {
		return nil
	}

	data, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	return c.disk.Set(key, data, 0)
}

// cloneFindings copies the kind member so callers never share cached state
func cloneFindings(f model.Findings) model.Findings {
	switch {
	case f.Image != nil:
		img := *f.Image
		f.Image = &img
	case f.Video != nil:
		v := *f.Video
		f.Video = &v
	case f.Audio != nil:
		a := *f.Audio
		f.Audio = &a
	}
	return f
}
