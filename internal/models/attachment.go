package models

import (
	"strings"
	"time"
)

// AttachmentCategory is a client rendering hint derived from the MIME type.
// It carries no storage semantics.
type AttachmentCategory string

const (
	CategoryImage    AttachmentCategory = "image"
	CategoryVideo    AttachmentCategory = "video"
	CategoryPDF      AttachmentCategory = "pdf"
	CategoryDocument AttachmentCategory = "document"
)

// Attachment is the backend-agnostic descriptor of a stored upload. Backend
// names which store holds the blob; callers only see key and URL.
type Attachment struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	Category     AttachmentCategory `gorm:"size:16;not null" json:"category"`
	StorageKey   string             `gorm:"size:255;not null" json:"storage_key"`
	PublicURL    string             `gorm:"size:512" json:"public_url,omitempty"`
	Backend      string             `gorm:"size:16;not null" json:"-"`
	OriginalName string             `gorm:"size:255" json:"original_name"`
	SizeBytes    int64              `gorm:"not null" json:"size_bytes"`
	MimeType     string             `gorm:"size:128;not null" json:"mime_type"`
	UploadedBy   uint               `gorm:"index" json:"uploaded_by"`
	CreatedAt    time.Time          `json:"created_at"`
}

// mimeCategories is the fixed MIME-to-category table. Membership in this table
// is also the supported-upload set; anything absent is rejected before storage.
var mimeCategories = map[string]AttachmentCategory{
	"image/jpeg":         CategoryImage,
	"image/png":          CategoryImage,
	"image/gif":          CategoryImage,
	"image/webp":         CategoryImage,
	"image/heic":         CategoryImage,
	"video/mp4":          CategoryVideo,
	"video/quicktime":    CategoryVideo,
	"video/webm":         CategoryVideo,
	"application/pdf":    CategoryPDF,
	"application/msword": CategoryDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": CategoryDocument,
	"application/vnd.ms-excel": CategoryDocument,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": CategoryDocument,
	"text/plain": CategoryDocument,
	"text/csv":   CategoryDocument,
}

// NormalizeMime lowercases a MIME type and strips any parameters
// (e.g. "image/JPEG; charset=binary" -> "image/jpeg").
func NormalizeMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// SupportedMime reports whether uploads of the given MIME type are accepted.
func SupportedMime(mimeType string) bool {
	_, ok := mimeCategories[NormalizeMime(mimeType)]
	return ok
}

// ClassifyMime maps a MIME type to its rendering category. Unmapped types fall
// back to document.
func ClassifyMime(mimeType string) AttachmentCategory {
	if cat, ok := mimeCategories[NormalizeMime(mimeType)]; ok {
		return cat
	}
	return CategoryDocument
}
