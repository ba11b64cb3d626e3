package models

import (
	"io"
	"strings"
	"time"
)

// UploadFile is a local file that can be added to the session registry
type UploadFile struct {
	Name         string
	Size         int64
	LastModified time.Time
	ContentType  string
	// Reader provides the content. It is only read at offsets below Size
	Reader io.ReaderAt
}

// IsImage returns true if the detected content type is an image
func (f UploadFile) IsImage() bool {
	return strings.HasPrefix(f.ContentType, "image/")
}
