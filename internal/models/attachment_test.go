package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMime(t *testing.T) {
	// Every mapped type classifies to its table entry, regardless of case
	// or trailing parameters.
	for mime, want := range mimeCategories {
		assert.Equal(t, want, ClassifyMime(mime), mime)
		assert.Equal(t, want, ClassifyMime(" "+mime+" ; charset=binary"), mime)
		assert.True(t, SupportedMime(mime), mime)
	}

	// Unmapped types fall back to document.
	for _, mime := range []string{
		"application/zip",
		"audio/mpeg",
		"image/svg+xml",
		"",
	} {
		assert.Equal(t, CategoryDocument, ClassifyMime(mime), mime)
		assert.False(t, SupportedMime(mime), mime)
	}
}

func TestNormalizeMime(t *testing.T) {
	assert.Equal(t, "image/jpeg", NormalizeMime("image/JPEG; charset=binary"))
	assert.Equal(t, "video/mp4", NormalizeMime("  VIDEO/MP4  "))
	assert.Equal(t, "", NormalizeMime(";"))
}
