package models

import "fmt"

// ByteRange is an inclusive range of bytes of a file. A range with End < Start is empty
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// IsEmpty returns true if the range does not contain any bytes
func (r ByteRange) IsEmpty() bool {
	return r.End < r.Start
}

// Length returns the amount of bytes in the range
func (r ByteRange) Length() int64 {
	if r.IsEmpty() {
		return 0
	}
	return r.End - r.Start + 1
}

// ContentRange returns the value for the Content-Range header. An empty range is
// written as "bytes */total", which is used for the confirmation call
func (r ByteRange) ContentRange(total int64) string {
	if r.IsEmpty() {
		return fmt.Sprintf("bytes */%d", total)
	}
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

func (r ByteRange) String() string {
	if r.IsEmpty() {
		return "[]"
	}
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}
