package intake

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ppiankov/deepguard/internal/model"
)

// sniffLen is how many leading bytes are inspected for content detection
const sniffLen = 3072

// Intake validates uploads and commits accepted bytes to a MediaStore
type Intake struct {
	store    MediaStore
	maxBytes int64
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

// New creates an intake bounded to maxBytes per upload
func New(store MediaStore, maxBytes int64, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Accept validates an upload of the given kind and stores it under a fresh identifier.
// Both the declared content type and the type sniffed from the bytes must be accepted for kind.
func (i *Intake) Accept(ctx context.Context, kind model.MediaKind, fileName, declaredType string, r io.Reader) (model.UploadedMedia, error) {
	if !model.IsSupportedType(kind, declaredType) {
		return model.UploadedMedia{}, model.NewValidationError(model.CodeUnsupportedType,
			"unsupported file type %q for %s analysis; allowed: %s",
			declaredType, kind, strings.Join(model.SupportedTypes(kind), ", "))
	}

	br := bufio.NewReaderSize(io.LimitReader(r, i.maxBytes+1), sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return model.UploadedMedia{}, model.NewValidationError(model.CodeMissingFile, "read upload: %v", err)
	}
	if len(head) == 0 {
		return model.UploadedMedia{}, model.NewValidationError(model.CodeEmptyFile, "uploaded file is empty")
	}

	sniffed := mimetype.Detect(head)
	if !acceptsSniffed(kind, sniffed) {
		return model.UploadedMedia{}, model.NewValidationError(model.CodeUnsupportedType,
			"file content is %s, not a supported %s format", sniffed.String(), kind)
	}

	if err := ctx.Err(); err != nil {
		return model.UploadedMedia{}, err
	}

	id := i.newID()
	stored, err := i.store.Save(id, sniffed.Extension(), br)
	if err != nil {
		return model.UploadedMedia{}, &model.StorageError{Op: "save upload", Err: err}
	}

	if stored.Size > i.maxBytes {
		if delErr := i.store.Delete(stored.Location); delErr != nil {
			i.logger.Warn("remove oversize upload failed", "file_id", id, "error", delErr)
		}
		return model.UploadedMedia{}, model.NewValidationError(model.CodeTooLarge,
			"file exceeds the maximum upload size of %d bytes", i.maxBytes)
	}

	media := model.UploadedMedia{
		ID:          id,
		FileName:    cleanFileName(fileName, id+sniffed.Extension()),
		Kind:        kind,
		ContentType: baseType(sniffed.String()),
		Size:        stored.Size,
		SHA256:      stored.SHA256,
		Location:    stored.Location,
		CreatedAt:   i.now().UTC(),
	}

	i.logger.Debug("upload accepted",
		"file_id", media.ID,
		"kind", media.Kind,
		"content_type", media.ContentType,
		"size", media.Size,
	)

	return media, nil
}

// Discard deletes the stored bytes of an upload whose analysis failed
func (i *Intake) Discard(media model.UploadedMedia) error {
	return i.store.Delete(media.Location)
}

// Sweep removes uploads older than cutoff
func (i *Intake) Sweep(cutoff time.Time) (int, error) {
	return i.store.Sweep(cutoff)
}

// acceptsSniffed reports whether the detected type, or one of its aliases, is allowed for kind
func acceptsSniffed(kind model.MediaKind, sniffed *mimetype.MIME) bool {
	for _, t := range model.SupportedTypes(kind) {
		if sniffed.Is(t) {
			return true
		}
	}
	return false
}

func baseType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return contentType
}

// cleanFileName keeps only the base name of a client-supplied file name
func cleanFileName(name, fallback string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}

// ErrUnknownKind is returned by DetectKind when a file matches no media kind
var ErrUnknownKind = fmt.Errorf("unsupported media type")

// DetectKind maps sniffed content to a media kind. Used by the offline CLI commands.
func DetectKind(head []byte) (model.MediaKind, string, error) {
	sniffed := mimetype.Detect(head)
	for _, kind := range model.Kinds {
		if acceptsSniffed(kind, sniffed) {
			return kind, baseType(sniffed.String()), nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnknownKind, sniffed.String())
}
