package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"courtyard/internal/middleware"
	"courtyard/internal/models"
	"courtyard/internal/observability"
	"courtyard/internal/repository"
	"courtyard/internal/storage"

	"github.com/google/uuid"
)

// AttachmentService validates and stores uploads and records their
// descriptors.
type AttachmentService struct {
	attRepo  repository.AttachmentRepository
	store    *storage.TieredStore
	maxBytes int64
}

// NewAttachmentService returns a new AttachmentService. maxBytes is the hard
// size ceiling applied after the type check.
func NewAttachmentService(attRepo repository.AttachmentRepository, store *storage.TieredStore, maxBytes int64) *AttachmentService {
	return &AttachmentService{
		attRepo:  attRepo,
		store:    store,
		maxBytes: maxBytes,
	}
}

// UploadInput is the input for storing an attachment.
type UploadInput struct {
	ActorID  uint
	FileName string
	MimeType string
	Data     []byte
}

// Upload validates the file and writes it to blob storage. The type check
// runs before the size check so an oversized unsupported file reports the
// more actionable error. Which backend ended up holding the blob is invisible
// to the caller.
func (s *AttachmentService) Upload(ctx context.Context, in UploadInput) (*models.Attachment, error) {
	mimeType := models.NormalizeMime(in.MimeType)
	if !models.SupportedMime(mimeType) {
		observability.AttachmentRejections.WithLabelValues("unsupported_type").Inc()
		return nil, models.NewUnsupportedTypeError(in.MimeType)
	}
	if int64(len(in.Data)) > s.maxBytes {
		observability.AttachmentRejections.WithLabelValues("too_large").Inc()
		return nil, models.NewTooLargeError(s.maxBytes)
	}
	if len(in.Data) == 0 {
		observability.AttachmentRejections.WithLabelValues("empty").Inc()
		return nil, models.NewValidationError("Uploaded file is empty")
	}

	category := models.ClassifyMime(mimeType)
	key := storageKey(in.FileName)

	backend, url, err := s.store.Put(ctx, key, in.Data, mimeType)
	if err != nil {
		return nil, models.NewStorageUnavailableError(err)
	}

	att := &models.Attachment{
		Category:     category,
		StorageKey:   key,
		PublicURL:    url,
		Backend:      backend,
		OriginalName: in.FileName,
		SizeBytes:    int64(len(in.Data)),
		MimeType:     mimeType,
		UploadedBy:   in.ActorID,
	}
	if err := s.attRepo.Create(ctx, att); err != nil {
		return nil, models.NewTransientError(err)
	}

	observability.AttachmentUploads.WithLabelValues(string(category), backend).Inc()
	middleware.Logger.InfoContext(ctx, "attachment stored",
		slog.Uint64("attachment_id", uint64(att.ID)),
		slog.String("category", string(category)),
		slog.String("backend", backend),
		slog.Int64("size_bytes", att.SizeBytes),
	)
	return att, nil
}

// Get returns the attachment descriptor.
func (s *AttachmentService) Get(ctx context.Context, id uint) (*models.Attachment, error) {
	return s.attRepo.GetByID(ctx, id)
}

// storageKey derives a collision-free blob key, keeping the original
// extension so static serving sets sensible content types.
func storageKey(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("%s%s", uuid.NewString(), ext)
}
