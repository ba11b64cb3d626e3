package fileidentity

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/forceu/rangeupload/internal/models"
)

const prefixFile = "file_"
const prefixSession = "session_"

// Of returns the identity of a file. The same name, size and modification time always result in
// the same identity
func Of(name string, size int64, lastModified time.Time) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(size, 10)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(lastModified.UnixMilli(), 10)))
	return prefixFile + strconv.FormatUint(h.Sum64(), 36)
}

// FromFile returns the identity of an UploadFile
func FromFile(file models.UploadFile) string {
	return Of(file.Name, file.Size, file.LastModified)
}

// SessionId returns the value of the Session-ID header for an identity
func SessionId(identity string) string {
	return prefixSession + identity
}
