package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/forceu/rangeupload/internal/models"
)

// ErrUnauthorised is matched by a StatusError for 401 and 403 responses
var ErrUnauthorised = errors.New("unauthorised")

// Request is a single chunk of a file or, if Final is set, the confirmation call after the
// last chunk has been acknowledged
type Request struct {
	SessionId   string
	Credential  string
	Description string
	FileName    string
	Range       models.ByteRange
	// Body provides exactly Range.Length() bytes. Nil for the confirmation call
	Body      io.Reader
	TotalSize int64
	Final     bool
}

// OutcomeKind is the interpretation of a response
type OutcomeKind int

const (
	// KindContinue means the range was stored and the next range starts at NextOffset
	KindContinue OutcomeKind = iota
	// KindComplete means the backend assembled the file
	KindComplete
	// KindAborted means the context was cancelled during the call
	KindAborted
	// KindFailed means a network or protocol error occurred
	KindFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindComplete:
		return "complete"
	case KindAborted:
		return "aborted"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of Transport.Send
type Outcome struct {
	Kind       OutcomeKind
	NextOffset int64
	Result     models.UploadResult
	Err        error
}

// ContinueAt returns an outcome that continues the upload at offset
func ContinueAt(offset int64) Outcome {
	return Outcome{Kind: KindContinue, NextOffset: offset}
}

// Complete returns an outcome carrying the payload of the backend
func Complete(result models.UploadResult) Outcome {
	return Outcome{Kind: KindComplete, Result: result}
}

// Aborted returns the outcome for a cancelled call
func Aborted() Outcome {
	return Outcome{Kind: KindAborted}
}

// Failed returns an outcome for a failed call
func Failed(err error) Outcome {
	return Outcome{Kind: KindFailed, Err: err}
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindContinue:
		return fmt.Sprintf("continue at %d", o.NextOffset)
	case KindFailed:
		return "failed: " + o.Err.Error()
	default:
		return o.Kind.String()
	}
}

// Transport sends one request to the upload backend. The context is the cancellation token of
// the session; if it is cancelled during the call, Aborted is returned
type Transport interface {
	Send(ctx context.Context, request Request) Outcome
}

// Func is an adapter to use a function as a Transport
type Func func(ctx context.Context, request Request) Outcome

// Send calls f
func (f Func) Send(ctx context.Context, request Request) Outcome {
	return f(ctx, request)
}

// StatusError is returned for responses with a status that is neither 201 nor 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Is returns true for ErrUnauthorised if the backend rejected the credential
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorised &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
