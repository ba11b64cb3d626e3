package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/test"
	"github.com/forceu/rangeupload/internal/upload/retrypolicy"
	"github.com/forceu/rangeupload/internal/upload/source"
	"github.com/forceu/rangeupload/internal/upload/transport"
)

const (
	credential  = "Bearer token"
	description = "test upload"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) bool {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err() == nil
}

func (c *fakeClock) getSleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration{}, c.sleeps...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (s *recordingSink) Notify(event models.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []models.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.EventType, 0, len(s.events))
	for _, event := range s.events {
		result = append(result, event.Type)
	}
	return result
}

func (s *recordingSink) get() []models.SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SessionEvent{}, s.events...)
}

type scriptedTransport struct {
	mu       sync.Mutex
	requests []transport.Request
	bodies   []int
	respond  func(call int, ctx context.Context, request transport.Request) transport.Outcome
}

func (s *scriptedTransport) Send(ctx context.Context, request transport.Request) transport.Outcome {
	length := 0
	if request.Body != nil {
		content, _ := io.ReadAll(request.Body)
		length = len(content)
	}
	s.mu.Lock()
	s.requests = append(s.requests, request)
	s.bodies = append(s.bodies, length)
	call := len(s.requests)
	respond := s.respond
	s.mu.Unlock()
	return respond(call, ctx, request)
}

func (s *scriptedTransport) getRequests() []transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Request{}, s.requests...)
}

// acknowledge stores every chunk and confirms the file on the final call
func acknowledge(call int, ctx context.Context, request transport.Request) transport.Outcome {
	if request.Final {
		return transport.Complete(models.NewUploadResult(200, []byte(`{"Result":"OK"}`)))
	}
	return transport.ContinueAt(request.Range.End + 1)
}

func newTestSession(size int, chunkSize int64, respond func(int, context.Context, transport.Request) transport.Outcome) (*Session, *scriptedTransport, *recordingSink, *fakeClock) {
	scripted := &scriptedTransport{respond: respond}
	sink := &recordingSink{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	config := DefaultConfig(scripted)
	config.ChunkSize = chunkSize
	config.Sink = sink
	config.Clock = clock
	config.RetryPolicy = retrypolicy.Fixed{Delay: time.Second}
	file := source.FromBytes("test.bin", make([]byte, size), time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	return New(file, config), scripted, sink, clock
}

func waitFor(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	test.IsNil(t, s.Wait(ctx))
}

func TestNewSession(t *testing.T) {
	s, _, sink, _ := newTestSession(10, 5, acknowledge)
	info := s.Info()
	test.IsEqual(t, info.Status, models.StatusPending)
	test.IsEqualString(t, info.Id, s.Id())
	test.IsEqualString(t, info.SessionId, "session_"+s.Id())
	test.IsEqualString(t, info.FileName, "test.bin")
	test.IsEqualInt64(t, info.TotalSize, 10)
	test.IsEqualInt(t, info.MaxRetries, 3)
	test.IsEqual(t, info.SpeedState, models.SpeedIdle)
	test.IsEqualInt(t, len(sink.types()), 0)
	test.IsNil(t, s.Wait(context.Background()))
}

func TestUploadInChunks(t *testing.T) {
	s, scripted, sink, clock := newTestSession(2500000, 1048576, acknowledge)
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)

	requests := scripted.getRequests()
	test.IsEqualInt(t, len(requests), 4)
	test.IsEqual(t, requests[0].Range, models.ByteRange{Start: 0, End: 1048575})
	test.IsEqual(t, requests[1].Range, models.ByteRange{Start: 1048576, End: 2097151})
	test.IsEqual(t, requests[2].Range, models.ByteRange{Start: 2097152, End: 2499999})
	test.IsEqualBool(t, requests[3].Final, true)
	test.IsEqualBool(t, requests[3].Body == nil, true)
	test.IsEqual(t, scripted.bodies, []int{1048576, 1048576, 402848, 0})
	for _, request := range requests {
		test.IsEqualString(t, request.Credential, credential)
		test.IsEqualString(t, request.Description, description)
		test.IsEqualString(t, request.SessionId, "session_"+s.Id())
		test.IsEqualInt64(t, request.TotalSize, 2500000)
	}

	info := s.Info()
	test.IsEqual(t, info.Status, models.StatusCompleted)
	test.IsEqualInt64(t, info.Offset, 2500000)
	test.IsEqualFloat(t, info.Percent, 100, 0.0001)
	test.IsEqualBool(t, info.Result != nil, true)
	test.IsEqualInt(t, info.Result.StatusCode, 200)

	test.IsEqual(t, sink.types(), []models.EventType{
		models.EventStatus, models.EventProgress, models.EventProgress, models.EventProgress, models.EventCompleted})
	events := sink.get()
	test.IsEqual(t, events[0].Session.Status, models.StatusUploading)
	test.IsEqualInt64(t, events[1].Session.Offset, 1048576)
	test.IsEqualInt64(t, events[2].Session.Offset, 2097152)
	test.IsEqualInt64(t, events[3].Session.Offset, 2500000)
	test.IsEqual(t, events[3].Session.Status, models.StatusUploading)
	test.IsEqual(t, events[4].Session.Status, models.StatusCompleted)
	test.IsEqual(t, clock.getSleeps(), []time.Duration{DefaultInterChunkDelay, DefaultInterChunkDelay, DefaultInterChunkDelay})
}

func TestInfoReturnsCopy(t *testing.T) {
	s, _, _, _ := newTestSession(4, 4, acknowledge)
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	info := s.Info()
	info.Result.StatusCode = 500
	test.IsEqualInt(t, s.Info().Result.StatusCode, 200)
}

func TestEmptyFile(t *testing.T) {
	s, scripted, sink, _ := newTestSession(0, 5, acknowledge)
	test.IsEqualFloat(t, s.Info().Percent, 0, 0.0001)
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	requests := scripted.getRequests()
	test.IsEqualInt(t, len(requests), 1)
	test.IsEqualBool(t, requests[0].Final, true)
	test.IsEqual(t, sink.types(), []models.EventType{models.EventStatus, models.EventCompleted})
	test.IsEqualFloat(t, s.Info().Percent, 100, 0.0001)
}

func TestRetryThenSuccess(t *testing.T) {
	s, scripted, sink, clock := newTestSession(10, 10, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		if call <= 2 {
			return transport.Failed(&transport.StatusError{StatusCode: 503})
		}
		return acknowledge(call, ctx, request)
	})
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)

	test.IsEqualInt(t, len(scripted.getRequests()), 4)
	test.IsEqual(t, sink.types(), []models.EventType{
		models.EventStatus, models.EventRetry, models.EventRetry, models.EventProgress, models.EventCompleted})
	events := sink.get()
	test.IsEqualInt(t, events[1].Session.RetryCount, 1)
	test.IsEqualInt(t, events[2].Session.RetryCount, 2)
	test.IsEqualString(t, events[2].Session.Error, "HTTP 503")
	test.IsEqualInt(t, events[3].Session.RetryCount, 0)
	test.IsEqualInt64(t, events[3].Session.Offset, 10)
	test.IsEqual(t, clock.getSleeps(), []time.Duration{time.Second, time.Second, DefaultInterChunkDelay})
	test.IsEqual(t, s.Info().Status, models.StatusCompleted)
}

func TestRetriesExhausted(t *testing.T) {
	s, scripted, sink, _ := newTestSession(10, 10, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		return transport.Failed(&transport.StatusError{StatusCode: 503})
	})
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)

	test.IsEqualInt(t, len(scripted.getRequests()), 4)
	for _, request := range scripted.getRequests() {
		test.IsEqual(t, request.Range, models.ByteRange{Start: 0, End: 9})
	}
	test.IsEqual(t, sink.types(), []models.EventType{
		models.EventStatus, models.EventRetry, models.EventRetry, models.EventRetry, models.EventFailed})
	info := s.Info()
	test.IsEqual(t, info.Status, models.StatusFailed)
	test.IsEqualString(t, info.Error, "HTTP 503")
	test.IsEqualInt64(t, info.Offset, 0)

	// a failed session can be started again and keeps its offset
	scripted.mu.Lock()
	scripted.respond = acknowledge
	scripted.mu.Unlock()
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	info = s.Info()
	test.IsEqual(t, info.Status, models.StatusCompleted)
	test.IsEmpty(t, info.Error)
}

func TestNoRetriesConfigured(t *testing.T) {
	scripted := &scriptedTransport{respond: func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		return transport.Failed(errors.New("connection refused"))
	}}
	config := DefaultConfig(scripted)
	config.MaxRetries = 0
	config.Clock = &fakeClock{}
	s := New(source.FromBytes("a.txt", []byte("abc"), time.Time{}), config)
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	test.IsEqualInt(t, len(scripted.getRequests()), 1)
	test.IsEqual(t, s.Info().Status, models.StatusFailed)
	test.IsEqualString(t, s.Info().Error, "connection refused")
}

func TestFinalCallNotConfirmed(t *testing.T) {
	s, scripted, sink, _ := newTestSession(4, 4, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		return transport.ContinueAt(request.Range.End + 1)
	})
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	// one chunk, then the confirmation call and its three retries
	test.IsEqualInt(t, len(scripted.getRequests()), 5)
	test.IsEqual(t, sink.types()[len(sink.types())-1], models.EventFailed)
	info := s.Info()
	test.IsEqual(t, info.Status, models.StatusFailed)
	test.Contains(t, info.Error, ErrNotConfirmed.Error())
	test.IsEqualInt64(t, info.Offset, 4)
}

func TestServerOffsetIsClamped(t *testing.T) {
	s, scripted, _, _ := newTestSession(10, 4, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		if request.Final {
			return acknowledge(call, ctx, request)
		}
		return transport.ContinueAt(1 << 40)
	})
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	requests := scripted.getRequests()
	test.IsEqualInt(t, len(requests), 2)
	test.IsEqualBool(t, requests[1].Final, true)
	test.IsEqual(t, s.Info().Status, models.StatusCompleted)
}

func TestServerOffsetIsAuthoritative(t *testing.T) {
	s, scripted, _, _ := newTestSession(10, 4, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		if request.Final {
			return acknowledge(call, ctx, request)
		}
		if call == 2 {
			// backend only stored the first two bytes
			return transport.ContinueAt(2)
		}
		return transport.ContinueAt(request.Range.End + 1)
	})
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	requests := scripted.getRequests()
	test.IsEqual(t, requests[0].Range, models.ByteRange{Start: 0, End: 3})
	test.IsEqual(t, requests[1].Range, models.ByteRange{Start: 4, End: 7})
	test.IsEqual(t, requests[2].Range, models.ByteRange{Start: 2, End: 5})
	test.IsEqual(t, s.Info().Status, models.StatusCompleted)
}

func blockingTransport(started chan<- struct{}) func(int, context.Context, transport.Request) transport.Outcome {
	return func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		if call == 1 {
			started <- struct{}{}
			<-ctx.Done()
			return transport.Aborted()
		}
		return acknowledge(call, ctx, request)
	}
}

func TestCancelWhileInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	s, scripted, sink, _ := newTestSession(10, 5, blockingTransport(started))
	test.IsNil(t, s.Start(credential, description))
	<-started
	test.IsNil(t, s.Cancel())
	waitFor(t, s)

	info := s.Info()
	test.IsEqual(t, info.Status, models.StatusPending)
	test.IsEqualInt64(t, info.Offset, 0)
	test.IsEqualInt(t, len(scripted.getRequests()), 1)
	test.IsEqual(t, sink.types(), []models.EventType{models.EventStatus, models.EventStatus})
	test.IsEqual(t, sink.get()[1].Session.Status, models.StatusPending)

	// a new start uses a new cancellation token
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	test.IsEqual(t, s.Info().Status, models.StatusCompleted)
	test.IsEqualInt(t, len(scripted.getRequests()), 4)
}

func TestCancelResetsOffset(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s, _, _, _ := newTestSession(10, 5, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		if call == 2 {
			started <- struct{}{}
			<-release
		}
		return acknowledge(call, ctx, request)
	})
	test.IsNil(t, s.Start(credential, description))
	<-started
	test.IsNil(t, s.Pause())
	close(release)
	waitFor(t, s)
	test.IsEqualInt64(t, s.Info().Offset, 10)
	test.IsNil(t, s.Cancel())
	info := s.Info()
	test.IsEqual(t, info.Status, models.StatusPending)
	test.IsEqualInt64(t, info.Offset, 0)
	test.IsEqualFloat(t, info.Percent, 0, 0.0001)
}

func TestPauseResume(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s, scripted, sink, _ := newTestSession(10, 5, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		if call == 1 {
			started <- struct{}{}
			<-release
		}
		return acknowledge(call, ctx, request)
	})
	test.IsNil(t, s.Start(credential, description))
	<-started
	test.IsNil(t, s.Pause())
	test.IsEqual(t, s.Info().SpeedState, models.SpeedPaused)
	close(release)
	waitFor(t, s)

	info := s.Info()
	test.IsEqual(t, info.Status, models.StatusPaused)
	test.IsEqualInt64(t, info.Offset, 5)
	test.IsEqualInt(t, len(scripted.getRequests()), 1)
	test.IsEqual(t, sink.types(), []models.EventType{models.EventStatus, models.EventStatus, models.EventProgress})
	test.IsEqual(t, sink.get()[2].Session.Status, models.StatusPaused)

	test.IsNil(t, s.Resume(credential, description))
	waitFor(t, s)
	requests := scripted.getRequests()
	test.IsEqualInt(t, len(requests), 3)
	test.IsEqual(t, requests[1].Range, models.ByteRange{Start: 5, End: 9})
	test.IsEqualBool(t, requests[2].Final, true)
	test.IsEqual(t, s.Info().Status, models.StatusCompleted)
}

func TestFailureWhilePaused(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s, scripted, sink, _ := newTestSession(10, 5, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		if call == 1 {
			started <- struct{}{}
			<-release
			return transport.Failed(errors.New("connection reset"))
		}
		return acknowledge(call, ctx, request)
	})
	test.IsNil(t, s.Start(credential, description))
	<-started
	test.IsNil(t, s.Pause())
	close(release)
	waitFor(t, s)

	info := s.Info()
	test.IsEqual(t, info.Status, models.StatusPaused)
	test.IsEqualInt(t, info.RetryCount, 0)
	test.IsEqualInt64(t, info.Offset, 0)
	test.IsEqual(t, sink.types(), []models.EventType{models.EventStatus, models.EventStatus})

	test.IsNil(t, s.Resume(credential, description))
	waitFor(t, s)
	requests := scripted.getRequests()
	test.IsEqual(t, requests[1].Range, models.ByteRange{Start: 0, End: 4})
	test.IsEqual(t, s.Info().Status, models.StatusCompleted)
}

func TestPreconditions(t *testing.T) {
	s, scripted, sink, _ := newTestSession(10, 5, acknowledge)
	test.IsErrorIs(t, s.Start("", description), ErrPrecondition)
	test.IsErrorIs(t, s.Start(credential, ""), ErrPrecondition)
	test.IsErrorIs(t, s.Resume("", ""), ErrPrecondition)
	test.IsEqual(t, s.Info().Status, models.StatusPending)
	test.IsEqualInt(t, len(sink.types()), 0)
	test.IsEqualInt(t, len(scripted.getRequests()), 0)
}

func TestInvalidTransitions(t *testing.T) {
	s, _, _, _ := newTestSession(10, 5, acknowledge)
	test.IsErrorIs(t, s.Pause(), ErrInvalidTransition)
	test.IsErrorIs(t, s.Cancel(), ErrInvalidTransition)

	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	test.IsEqual(t, s.Info().Status, models.StatusCompleted)
	test.IsErrorIs(t, s.Start(credential, description), ErrInvalidTransition)
	test.IsErrorIs(t, s.Resume(credential, description), ErrInvalidTransition)
	test.IsErrorIs(t, s.Pause(), ErrInvalidTransition)
	test.IsErrorIs(t, s.Cancel(), ErrInvalidTransition)
}

func TestDeleteWhileInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	s, scripted, sink, _ := newTestSession(10, 5, blockingTransport(started))
	test.IsNil(t, s.Start(credential, description))
	<-started
	s.Delete()
	s.Delete()
	waitFor(t, s)
	test.IsEqualInt(t, len(scripted.getRequests()), 1)
	test.IsEqual(t, sink.types(), []models.EventType{models.EventStatus})
	test.IsErrorIs(t, s.Start(credential, description), ErrDeleted)
	test.IsErrorIs(t, s.Resume(credential, description), ErrDeleted)
	test.IsErrorIs(t, s.Pause(), ErrDeleted)
	test.IsErrorIs(t, s.Cancel(), ErrDeleted)
}

func TestAbortWithoutCancellationIsFailure(t *testing.T) {
	s, scripted, _, _ := newTestSession(10, 10, func(call int, ctx context.Context, request transport.Request) transport.Outcome {
		if call == 1 {
			return transport.Aborted()
		}
		return acknowledge(call, ctx, request)
	})
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	test.IsEqualInt(t, len(scripted.getRequests()), 3)
	test.IsEqual(t, s.Info().Status, models.StatusCompleted)
}

func TestMissingTransport(t *testing.T) {
	config := DefaultConfig(nil)
	config.MaxRetries = 0
	config.Clock = &fakeClock{}
	s := New(source.FromBytes("a.txt", []byte("abc"), time.Time{}), config)
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	test.IsEqualString(t, s.Info().Error, ErrNoTransport.Error())
}

func TestSinkCanReadSession(t *testing.T) {
	var s *Session
	var statuses []models.SessionStatus
	scripted := &scriptedTransport{respond: acknowledge}
	config := DefaultConfig(scripted)
	config.Clock = &fakeClock{}
	config.Sink = SinkFunc(func(event models.SessionEvent) {
		statuses = append(statuses, s.Status())
	})
	s = New(source.FromBytes("a.txt", []byte("abc"), time.Time{}), config)
	test.IsNil(t, s.Start(credential, description))
	waitFor(t, s)
	test.IsEqual(t, statuses[len(statuses)-1], models.StatusCompleted)
}

func TestMultiSink(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	MultiSink{first, nil, second}.Notify(models.SessionEvent{Type: models.EventAdded})
	test.IsEqualInt(t, len(first.types()), 1)
	test.IsEqualInt(t, len(second.types()), 1)
}

func TestRealClock(t *testing.T) {
	clock := RealClock()
	test.IsEqualBool(t, clock.Sleep(context.Background(), 0), true)
	test.IsEqualBool(t, clock.Sleep(context.Background(), time.Millisecond), true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.IsEqualBool(t, clock.Sleep(ctx, time.Hour), false)
	test.IsEqualBool(t, clock.Sleep(ctx, 0), false)
	test.IsEqualBool(t, clock.Now().IsZero(), false)
}

func TestConfigDefaults(t *testing.T) {
	config := Config{ChunkSize: -1, MaxRetries: -5, InterChunkDelay: -time.Second}.withDefaults()
	test.IsEqualInt64(t, config.ChunkSize, 1048576)
	test.IsEqualInt(t, config.MaxRetries, 0)
	test.IsEqual(t, config.InterChunkDelay, time.Duration(0))
	test.IsEqualBool(t, config.RetryPolicy != nil, true)
	test.IsEqualBool(t, config.Clock != nil, true)
	test.IsEqualBool(t, config.Sink != nil, true)
	test.IsEqualBool(t, config.Transport != nil, true)
}
