package pinata

import (
	"errors"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize is the largest upload accepted for pinning.
const MaxFileSize = 10 * 1024 * 1024

var (
	ErrFileTooLarge         = errors.New("File size exceeds 10MB limit")
	ErrFileTypeNotSupported = errors.New("File type not supported")
)

var allowedTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":                   true,
	"image/jpeg":                   true,
	"image/png":                    true,
	"image/gif":                    true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
}

// ValidateFile checks an upload against the size limit and the allowed types.
func ValidateFile(size int64, contentType string) error {
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	if !allowedTypes[baseType(contentType)] {
		return ErrFileTypeNotSupported
	}
	return nil
}

// DetectContentType returns declared unless it is empty or generic, in which
// case the type is sniffed from the leading bytes of the file.
func DetectContentType(head []byte, declared string) string {
	if t := baseType(declared); t != "" && t != "application/octet-stream" {
		return t
	}
	return baseType(mimetype.Detect(head).String())
}

func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	t, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		t, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(t))
}
