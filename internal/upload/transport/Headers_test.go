package transport

import (
	"mime"
	"testing"

	"github.com/forceu/rangeupload/internal/test"
)

func TestEncodeRFC5987(t *testing.T) {
	test.IsEqualString(t, EncodeRFC5987("report.pdf"), "report.pdf")
	test.IsEqualString(t, EncodeRFC5987("report (1).pdf"), "report%20%281%29.pdf")
	test.IsEqualString(t, EncodeRFC5987("äb"), "%C3%A4b")
	test.IsEqualString(t, EncodeRFC5987("a'b*c;d=e"), "a%27b%2Ac%3Bd%3De")
	test.IsEqualString(t, EncodeRFC5987(""), "")
}

func TestContentDispositionRoundTrip(t *testing.T) {
	for _, name := range []string{"report.pdf", "photo (1) ä.jpg", "a;b=c\"d'.txt", "日本語.txt"} {
		disposition, params, err := mime.ParseMediaType(ContentDisposition(name))
		test.IsNil(t, err)
		test.IsEqualString(t, disposition, "attachment")
		test.IsEqualString(t, params["filename"], name)
	}
}

func TestParseRangeHeader(t *testing.T) {
	offset, ok := ParseRangeHeader("0-1048575")
	test.IsEqualBool(t, ok, true)
	test.IsEqualInt64(t, offset, 1048576)
	offset, ok = ParseRangeHeader("bytes=0-2097151")
	test.IsEqualBool(t, ok, true)
	test.IsEqualInt64(t, offset, 2097152)
	_, ok = ParseRangeHeader("")
	test.IsEqualBool(t, ok, false)
	_, ok = ParseRangeHeader("invalid")
	test.IsEqualBool(t, ok, false)
	_, ok = ParseRangeHeader("10-5")
	test.IsEqualBool(t, ok, false)
	_, ok = ParseRangeHeader("0-99999999999999999999")
	test.IsEqualBool(t, ok, false)
}
