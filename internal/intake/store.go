package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MediaStore persists uploaded bytes under a fresh identifier
type MediaStore interface {
	Save(id, ext string, data io.Reader) (StoredFile, error)
	Delete(location string) error
	Sweep(olderThan time.Time) (int, error)
}

// StoredFile describes bytes committed to a MediaStore
type StoredFile struct {
	Location string
	Size     int64
	SHA256   string
}

// DiskStore keeps uploads as flat files in one directory
type DiskStore struct {
	dir string
}

// NewDiskStore creates a disk store rooted at dir
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save streams data into <dir>/<id><ext>, hashing it on the way.
// The final name only appears once the bytes are fully written.
func (s *DiskStore) Save(id, ext string, data io.Reader) (StoredFile, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return StoredFile{}, fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return StoredFile{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	contentHash := sha256.New()
	buf := make([]byte, 1*1024*1024)
	size, err := io.CopyBuffer(io.MultiWriter(f, contentHash), data, buf)
	closeErr := f.Close()
	if err != nil {
		return StoredFile{}, fmt.Errorf("write upload: %w", err)
	}
	if closeErr != nil {
		return StoredFile{}, fmt.Errorf("close upload: %w", closeErr)
	}

	finalPath := filepath.Join(s.dir, id+ext)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return StoredFile{}, fmt.Errorf("commit upload: %w", err)
	}

	return StoredFile{
		Location: finalPath,
		Size:     size,
		SHA256:   hex.EncodeToString(contentHash.Sum(nil)),
	}, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *DiskStore) Delete(location string) error {
	if err := os.Remove(location); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// Sweep removes files last modified before olderThan and returns how many were removed
func (s *DiskStore) Sweep(olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		if !strings.HasPrefix(entry.Name(), ".upload-") {
			removed++
		}
	}

	return removed, errors.Join(errs...)
}
