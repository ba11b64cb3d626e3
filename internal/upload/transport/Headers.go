package transport

import (
	"regexp"
	"strconv"
	"strings"
)

const hexUpper = "0123456789ABCDEF"

// EncodeRFC5987 percent-encodes a value for an extended header parameter such as
// the filename* parameter of Content-Disposition. Only attr-chars of RFC 5987 are kept
func EncodeRFC5987(value string) string {
	var result strings.Builder
	for _, b := range []byte(value) {
		if isAttrChar(b) {
			result.WriteByte(b)
			continue
		}
		result.WriteByte('%')
		result.WriteByte(hexUpper[b>>4])
		result.WriteByte(hexUpper[b&0x0F])
	}
	return result.String()
}

func isAttrChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", b) != -1
}

// ContentDisposition returns the Content-Disposition header for a file name
func ContentDisposition(fileName string) string {
	return "attachment; filename*=UTF-8''" + EncodeRFC5987(fileName)
}

var rangePattern = regexp.MustCompile(`(\d+)-(\d+)`)

// ParseRangeHeader returns the next offset announced by a Range response header, e.g.
// "0-1048575" or "bytes=0-1048575" results in 1048576
func ParseRangeHeader(value string) (int64, bool) {
	match := rangePattern.FindStringSubmatch(value)
	if match == nil {
		return 0, false
	}
	start, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	end, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil || end < start {
		return 0, false
	}
	return end + 1, true
}
