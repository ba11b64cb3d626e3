package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/forceu/rangeupload/internal/logging"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/upload/chunkplanner"
	"github.com/forceu/rangeupload/internal/upload/fileidentity"
	"github.com/forceu/rangeupload/internal/upload/progress"
	"github.com/forceu/rangeupload/internal/upload/transport"
	"github.com/jinzhu/copier"
)

// ErrPrecondition is returned by Start and Resume if credential or description are missing
var ErrPrecondition = errors.New("credential and description are required")

// ErrInvalidTransition is returned if an operation is not allowed in the current status
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrDeleted is returned for operations on a deleted session
var ErrDeleted = errors.New("session has been deleted")

// ErrNotConfirmed is the failure reason if the confirmation call was not answered with a
// completed file
var ErrNotConfirmed = errors.New("server did not confirm completion")

// ErrNoTransport is the failure reason if no transport has been configured
var ErrNoTransport = errors.New("no transport configured")

// Session uploads a single file chunk by chunk
type Session struct {
	config    Config
	id        string
	sessionId string
	file      models.UploadFile

	mu          sync.Mutex
	status      models.SessionStatus
	offset      int64
	retryCount  int
	credential  string
	description string
	result      *models.UploadResult
	lastError   string
	tracker     *progress.Tracker
	ctx         context.Context
	cancel      context.CancelFunc
	// epoch is increased by Cancel and Delete. A loop only applies outcomes of its own epoch
	epoch    uint64
	running  bool
	loopDone chan struct{}
	deleted  bool

	pending  []models.SessionEvent
	flushing bool
}

// New returns a pending session for file
func New(file models.UploadFile, config Config) *Session {
	id := fileidentity.FromFile(file)
	config = config.withDefaults()
	return &Session{
		config:    config,
		id:        id,
		sessionId: fileidentity.SessionId(id),
		file:      file,
		status:    models.StatusPending,
		tracker:   progress.New(config.MinSampleInterval),
	}
}

// Id returns the file identity of the session
func (s *Session) Id() string {
	return s.id
}

// Info returns a snapshot of the session
func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Status returns the current status
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start begins uploading a pending or failed session
func (s *Session) Start(credential, description string) error {
	return s.begin(credential, description, models.StatusPending, models.StatusFailed)
}

// Resume continues a paused session at its current offset. Pending and failed sessions are
// started
func (s *Session) Resume(credential, description string) error {
	return s.begin(credential, description, models.StatusPaused, models.StatusPending, models.StatusFailed)
}

func (s *Session) begin(credential, description string, allowed ...models.SessionStatus) error {
	if credential == "" || description == "" {
		return fmt.Errorf("%w: session %s", ErrPrecondition, s.id)
	}
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return ErrDeleted
	}
	if !isOneOf(s.status, allowed) {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start %s session", ErrInvalidTransition, status)
	}
	previous := s.status
	if s.ctx == nil || s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.credential = credential
	s.description = description
	s.retryCount = 0
	s.lastError = ""
	s.status = models.StatusUploading
	s.tracker.Restart(s.offset, s.config.Clock.Now())

	startLoop := !s.running
	var previousLoop chan struct{}
	if startLoop {
		s.running = true
		previousLoop = s.loopDone
		s.loopDone = make(chan struct{})
	}
	ctx, epoch, done := s.ctx, s.epoch, s.loopDone
	s.transition(previous, models.EventStatus)
	s.mu.Unlock()
	s.flush()

	if startLoop {
		go s.run(ctx, epoch, previousLoop, done)
	}
	return nil
}

// Pause stops the upload at the next chunk boundary. A chunk that is in flight is allowed to
// finish and its acknowledgement is kept
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return ErrDeleted
	}
	if s.status != models.StatusUploading {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot pause %s session", ErrInvalidTransition, status)
	}
	s.status = models.StatusPaused
	s.transition(models.StatusUploading, models.EventStatus)
	s.mu.Unlock()
	s.flush()
	return nil
}

// Cancel aborts a chunk in flight and resets the session to pending at offset 0
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return ErrDeleted
	}
	if s.status != models.StatusUploading && s.status != models.StatusPaused {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel %s session", ErrInvalidTransition, status)
	}
	previous := s.status
	s.stopLoop()
	s.offset = 0
	s.retryCount = 0
	s.lastError = ""
	s.tracker.Reset()
	s.status = models.StatusPending
	s.transition(previous, models.EventStatus)
	s.mu.Unlock()
	s.flush()
	return nil
}

// Delete aborts a chunk in flight. The session cannot be used afterwards
func (s *Session) Delete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return
	}
	s.stopLoop()
	s.deleted = true
	s.pending = nil
}

// Wait blocks until no chunk loop of the session is active
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		done := s.loopDone
		s.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
			s.mu.Lock()
			isSame := s.loopDone == done
			s.mu.Unlock()
			if isSame {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// stopLoop triggers the cancellation token. Outcomes of the current loop are discarded from now on
func (s *Session) stopLoop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.epoch++
	s.running = false
}

func (s *Session) run(ctx context.Context, epoch uint64, previousLoop, done chan struct{}) {
	defer close(done)
	if previousLoop != nil {
		select {
		case <-previousLoop:
		case <-ctx.Done():
			return
		}
	}
	for {
		request, ok := s.nextRequest(epoch)
		if !ok {
			return
		}
		outcome := s.config.Transport.Send(ctx, request)
		if outcome.Kind == transport.KindAborted && ctx.Err() == nil {
			outcome = transport.Failed(errors.New("transport aborted without cancellation"))
		}
		delay, ok := s.apply(epoch, request, outcome)
		if !ok {
			return
		}
		if !s.config.Clock.Sleep(ctx, delay) {
			return
		}
	}
}

// nextRequest returns the request for the current offset or false, if the loop has to stop
func (s *Session) nextRequest(epoch uint64) (transport.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.status != models.StatusUploading {
		if s.epoch == epoch {
			s.running = false
		}
		return transport.Request{}, false
	}
	byteRange := chunkplanner.NextRange(s.offset, s.file.Size, s.config.ChunkSize)
	request := transport.Request{
		SessionId:   s.sessionId,
		Credential:  s.credential,
		Description: s.description,
		FileName:    s.file.Name,
		Range:       byteRange,
		TotalSize:   s.file.Size,
	}
	if byteRange.IsEmpty() {
		request.Final = true
	} else {
		request.Body = io.NewSectionReader(s.file.Reader, byteRange.Start, byteRange.Length())
	}
	return request, true
}

// apply interprets an outcome. Returns the delay before the next request and false if
// the loop has to stop
func (s *Session) apply(epoch uint64, request transport.Request, outcome transport.Outcome) (delay time.Duration, ok bool) {
	s.mu.Lock()
	if s.epoch != epoch || s.deleted {
		s.mu.Unlock()
		logging.LogDiscardedOutcome(s.id, outcome.String())
		return 0, false
	}
	if outcome.Kind == transport.KindContinue && request.Final {
		outcome = transport.Failed(fmt.Errorf("%w: expected completion, got %s", ErrNotConfirmed, outcome))
	}

	switch outcome.Kind {
	case transport.KindContinue:
		s.offset = clamp(outcome.NextOffset, 0, s.file.Size)
		s.retryCount = 0
		s.lastError = ""
		s.tracker.Observe(s.offset, s.config.Clock.Now())
		s.queue(models.EventProgress)
		logging.LogChunkAcknowledged(s.snapshot(), request.Range)
		if s.status == models.StatusUploading {
			delay = s.config.InterChunkDelay
		}
		s.mu.Unlock()
		s.flush()
		return delay, true

	case transport.KindComplete:
		previous := s.status
		result := outcome.Result
		s.offset = s.file.Size
		s.result = &result
		s.status = models.StatusCompleted
		s.running = false
		if s.cancel != nil {
			s.cancel()
		}
		s.transition(previous, models.EventCompleted)
		logging.LogSessionCompleted(s.snapshot())
		s.mu.Unlock()
		s.flush()
		return 0, false

	case transport.KindAborted:
		s.running = false
		s.mu.Unlock()
		return 0, false

	default:
		reason := "unknown error"
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
		if s.status != models.StatusUploading {
			// paused while in flight, the same range is sent again after Resume
			s.running = false
			s.mu.Unlock()
			return 0, false
		}
		if s.config.RetryPolicy.ShouldRetry(s.retryCount, s.config.MaxRetries) {
			s.retryCount++
			delay = s.config.RetryPolicy.DelayBeforeRetry(s.retryCount)
			s.lastError = reason
			s.queue(models.EventRetry)
			logging.LogRetry(s.snapshot(), reason)
			s.mu.Unlock()
			s.flush()
			return delay, true
		}
		s.lastError = reason
		s.status = models.StatusFailed
		s.running = false
		s.transition(models.StatusUploading, models.EventFailed)
		logging.LogSessionFailed(s.snapshot(), reason)
		s.mu.Unlock()
		s.flush()
		return 0, false
	}
}

// transition queues an event for a status change. Requires s.mu
func (s *Session) transition(previous models.SessionStatus, eventType models.EventType) {
	logging.LogTransition(s.snapshot(), previous)
	s.queue(eventType)
}

// queue adds an event to be delivered by flush. Requires s.mu
func (s *Session) queue(eventType models.EventType) {
	if s.deleted {
		return
	}
	s.pending = append(s.pending, models.SessionEvent{Type: eventType, Session: s.snapshot()})
}

// flush delivers queued events in order. Only one goroutine delivers at a time, events queued
// by a sink during delivery are delivered by the same goroutine. Must not be called with s.mu held
func (s *Session) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.pending) > 0 {
		events := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, event := range events {
			s.config.Sink.Notify(event)
		}
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}

// snapshot returns the SessionInfo of the session. Requires s.mu
func (s *Session) snapshot() models.SessionInfo {
	sample := s.tracker.Sample(s.status, s.offset, s.file.Size)
	info := models.SessionInfo{
		Id:             s.id,
		SessionId:      s.sessionId,
		FileName:       s.file.Name,
		ContentType:    s.file.ContentType,
		IsImage:        s.file.IsImage(),
		Status:         s.status,
		Offset:         s.offset,
		TotalSize:      s.file.Size,
		RetryCount:     s.retryCount,
		MaxRetries:     s.config.MaxRetries,
		Percent:        sample.Percent,
		BytesPerSecond: sample.BytesPerSecond,
		SpeedState:     sample.State,
		Error:          s.lastError,
	}
	if s.result != nil {
		info.Result = &models.UploadResult{}
		_ = copier.CopyWithOption(info.Result, s.result, copier.Option{DeepCopy: true})
	}
	return info
}

func isOneOf(status models.SessionStatus, allowed []models.SessionStatus) bool {
	for _, candidate := range allowed {
		if status == candidate {
			return true
		}
	}
	return false
}

func clamp(value, min, max int64) int64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
