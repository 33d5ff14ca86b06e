package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// RefPrefix is the first segment of every stored image reference.
const RefPrefix = "uploads"

var (
	allowedMIME = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	allowedExt  = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}
	// declared types browsers send for the allowed formats
	declaredAliases = map[string]bool{"image/jpg": true, "image/pjpeg": true}
)

// Store persists task images and hands back an opaque reference.
type Store interface {
	Validate(data []byte, declaredMIME, filename string) (Image, error)
	Save(ctx context.Context, ownerID, taskID int64, data []byte, declaredMIME, filename string) (string, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

// InvalidImageError is returned when an upload fails validation.
type InvalidImageError struct {
	Message string
}

func (e *InvalidImageError) Error() string { return e.Message }

// Image is a validated upload.
type Image struct {
	Ext         string
	ContentType string
}

// ValidateImage checks size, sniffed content type, declared type and extension.
func ValidateImage(data []byte, declaredMIME, filename string, maxBytes int64) (Image, error) {
	if len(data) == 0 {
		return Image{}, &InvalidImageError{Message: "image is empty"}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Image{}, &InvalidImageError{Message: fmt.Sprintf("image must not exceed %s", humanSize(maxBytes))}
	}

	detected := mimetype.Detect(data)
	contentType := ""
	for _, m := range allowedMIME {
		if detected.Is(m) {
			contentType = m
			break
		}
	}
	if contentType == "" || !declaredAllowed(declaredMIME) {
		return Image{}, &InvalidImageError{Message: "file type not allowed, only JPG, PNG, GIF, WEBP"}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !allowedExt[ext] {
		return Image{}, &InvalidImageError{Message: "file extension not allowed"}
	}

	return Image{Ext: ext, ContentType: contentType}, nil
}

func declaredAllowed(declared string) bool {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared == "" || declared == "application/octet-stream" || declaredAliases[declared] {
		return true
	}
	for _, m := range allowedMIME {
		if declared == m {
			return true
		}
	}
	return false
}

func objectKey(ownerID, taskID int64, ext string) string {
	return fmt.Sprintf("%s/%d/%d/image.%s", RefPrefix, ownerID, taskID, ext)
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
