package source

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/forceu/rangeupload/internal/models"
	"github.com/gabriel-vasile/mimetype"
)

const sniffLength = 3072

// Open returns an UploadFile for a file on the local filesystem. The returned closer has to be
// called once the upload is no longer needed
func Open(path string) (models.UploadFile, io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.UploadFile{}, nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return models.UploadFile{}, nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return models.UploadFile{}, nil, errors.New(path + " is a directory")
	}
	head := make([]byte, sniffLength)
	n, err := file.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		_ = file.Close()
		return models.UploadFile{}, nil, err
	}
	return models.UploadFile{
		Name:         filepath.Base(path),
		Size:         info.Size(),
		LastModified: info.ModTime(),
		ContentType:  DetectContentType(head[:n]),
		Reader:       file,
	}, file, nil
}

// FromBytes returns an UploadFile that is backed by content
func FromBytes(name string, content []byte, lastModified time.Time) models.UploadFile {
	head := content
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	return models.UploadFile{
		Name:         name,
		Size:         int64(len(content)),
		LastModified: lastModified,
		ContentType:  DetectContentType(head),
		Reader:       bytes.NewReader(content),
	}
}

// DetectContentType returns the MIME type of the first bytes of a file
func DetectContentType(head []byte) string {
	return mimetype.Detect(head).String()
}
