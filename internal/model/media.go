package model

import (
	"strings"
	"time"
)

// MediaKind selects which heuristic checks apply to an upload
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// Kinds lists every supported media kind in a stable order
var Kinds = []MediaKind{KindImage, KindVideo, KindAudio}

// ParseMediaKind normalizes a path segment such as "Image" into a MediaKind
func ParseMediaKind(raw string) (MediaKind, error) {
	kind := MediaKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case KindImage, KindVideo, KindAudio:
		return kind, nil
	default:
		return "", NewValidationError(CodeInvalidKind, "Unknown media kind %q; use image, video or audio", raw)
	}
}

// UploadedMedia is a stored upload. It is read-only once intake returns it.
type UploadedMedia struct {
	ID          string    `json:"file_id"`
	FileName    string    `json:"file_name"`
	Kind        MediaKind `json:"kind"`
	ContentType string    `json:"content_type"` // Sniffed from the bytes, not the declared header
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	Location    string    `json:"-"` // Path on local disk
	CreatedAt   time.Time `json:"created_at"`
}

// supportedTypes is the closed allow-list of content types per kind
var supportedTypes = map[MediaKind][]string{
	KindImage: {"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp", "image/x-ms-bmp", "image/tiff"},
	KindVideo: {"video/mp4", "video/quicktime", "video/x-m4v"},
	KindAudio: {"audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave"},
}

// SupportedTypes returns the content types accepted for kind
func SupportedTypes(kind MediaKind) []string {
	types := supportedTypes[kind]
	out := make([]string, len(types))
	copy(out, types)
	return out
}

// IsSupportedType reports whether contentType (parameters ignored) is accepted for kind
func IsSupportedType(kind MediaKind, contentType string) bool {
	base := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = strings.TrimSpace(base[:idx])
	}
	for _, t := range supportedTypes[kind] {
		if t == base {
			return true
		}
	}
	return false
}
