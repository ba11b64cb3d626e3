package fileidentity

import (
	"strings"
	"testing"
	"time"

	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/test"
)

func TestOf(t *testing.T) {
	modified := time.UnixMilli(1700000000123)
	id := Of("report.pdf", 2500000, modified)
	test.IsEqualBool(t, strings.HasPrefix(id, "file_"), true)
	test.IsEqualString(t, Of("report.pdf", 2500000, modified), id)
	test.IsEqualString(t, Of("report.pdf", 2500000, modified.Add(500*time.Microsecond)), id)
	test.IsNotEqualString(t, Of("report.pdf", 2500001, modified), id)
	test.IsNotEqualString(t, Of("report.pdf", 2500000, modified.Add(time.Millisecond)), id)
	test.IsNotEqualString(t, Of("report.pd", 2500000, modified), id)
	test.IsNotEqualString(t, Of("a1", 23, modified), Of("a", 123, modified))
}

func TestFromFile(t *testing.T) {
	modified := time.UnixMilli(1700000000123)
	file := models.UploadFile{Name: "image.png", Size: 10, LastModified: modified}
	test.IsEqualString(t, FromFile(file), Of("image.png", 10, modified))
}

func TestSessionId(t *testing.T) {
	test.IsEqualString(t, SessionId("file_abc"), "session_file_abc")
}
