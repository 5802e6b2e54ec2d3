package cache

import (
	"github.com/ppiankov/deepguard/internal/model"
)

// keyVersion changes whenever the heuristics change, so stale findings are never served
const keyVersion = "v1"

// CacheKey builds the findings key for content with the given SHA-256 hex digest
func CacheKey(kind model.MediaKind, sha256Hex string) string {
	return "deepguard:" + keyVersion + ":" + string(kind) + ":" + sha256Hex
}
