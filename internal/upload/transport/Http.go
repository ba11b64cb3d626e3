package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/forceu/rangeupload/internal/logging"
	"github.com/forceu/rangeupload/internal/models"
)

const maxResponseBytes = 10 * 1024 * 1024

// HeaderSessionId carries the session correlation id
const HeaderSessionId = "Session-ID"

// HeaderDescription carries the percent-encoded description of the upload
const HeaderDescription = "X-Upload-Description"

// Http sends chunks as POST requests with raw range bodies
type Http struct {
	endpoint string
	client   *http.Client
}

// NewHttp returns a transport for the given upload url. A timeout of 0 disables the timeout
func NewHttp(endpoint string, timeout time.Duration) *Http {
	return NewHttpWithClient(endpoint, &http.Client{Timeout: timeout})
}

// NewHttpWithClient returns a transport that uses the passed client
func NewHttpWithClient(endpoint string, client *http.Client) *Http {
	return &Http{endpoint: endpoint, client: client}
}

// Send posts the range of the request and interprets the response
func (h *Http) Send(ctx context.Context, request Request) Outcome {
	body := request.Body
	length := request.Range.Length()
	if request.Final || body == nil || length == 0 {
		body = http.NoBody
		length = 0
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return Failed(err)
	}
	req.ContentLength = length
	req.Header.Set("Authorization", request.Credential)
	req.Header.Set("Content-Disposition", ContentDisposition(request.FileName))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Range", contentRange(request))
	req.Header.Set(HeaderSessionId, request.SessionId)
	if request.Description != "" {
		req.Header.Set(HeaderDescription, EncodeRFC5987(request.Description))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Aborted()
		}
		return Failed(err)
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return Aborted()
		}
		return Failed(err)
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
		return ContinueAt(nextOffset(request, resp.Header.Get("Range")))
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Complete(models.NewUploadResult(resp.StatusCode, content))
	default:
		return Failed(&StatusError{StatusCode: resp.StatusCode, Body: string(content)})
	}
}

func contentRange(request Request) string {
	if request.Final {
		return models.ByteRange{Start: request.TotalSize, End: request.TotalSize - 1}.ContentRange(request.TotalSize)
	}
	return request.Range.ContentRange(request.TotalSize)
}

// nextOffset returns the offset announced by the Range header or, if missing or invalid,
// the end of the sent range clipped to the file size
func nextOffset(request Request, header string) int64 {
	if offset, ok := ParseRangeHeader(header); ok {
		return offset
	}
	inferred := request.TotalSize
	if !request.Final && !request.Range.IsEmpty() && request.Range.End+1 < request.TotalSize {
		inferred = request.Range.End + 1
	}
	if header != "" {
		logging.LogRangeFallback(request.SessionId, header, inferred)
	}
	return inferred
}
