package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrMissingFile         = errors.New("no file provided")
	ErrDisallowedExtension = errors.New("file type not allowed")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
	ErrUploadTooLarge      = errors.New("uploaded file is too large")
)

// DefaultExtensions are the media types the upload form accepts.
var DefaultExtensions = []string{".mp4", ".mov", ".mkv", ".mp3", ".wav"}

// UploadPolicy gates uploaded files before any conversion work.
type UploadPolicy struct {
	Extensions []string // lower-case, with leading dot
	MaxBytes   int64    // 0 = unlimited
}

// Check validates an upload's name and size. size < 0 means unknown and
// skips the size checks.
func (p UploadPolicy) Check(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return ErrMissingFile
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !p.allowed(ext) {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrDisallowedExtension, ext, strings.Join(p.extensions(), ", "))
	}
	if size == 0 {
		return ErrEmptyUpload
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrUploadTooLarge, size, p.MaxBytes)
	}
	return nil
}

func (p UploadPolicy) extensions() []string {
	if len(p.Extensions) == 0 {
		return DefaultExtensions
	}
	return p.Extensions
}

func (p UploadPolicy) allowed(ext string) bool {
	if ext == "" {
		return false
	}
	for _, e := range p.extensions() {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
