package session

import (
	"context"
	"time"

	"github.com/forceu/rangeupload/internal/environment"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/upload/progress"
	"github.com/forceu/rangeupload/internal/upload/retrypolicy"
	"github.com/forceu/rangeupload/internal/upload/transport"
)

// DefaultInterChunkDelay is the pause between two acknowledged chunks
const DefaultInterChunkDelay = 100 * time.Millisecond

// Config contains the settings shared by all sessions of a registry
type Config struct {
	ChunkSize         int64
	MaxRetries        int
	InterChunkDelay   time.Duration
	RetryPolicy       retrypolicy.Policy
	MinSampleInterval time.Duration
	Transport         transport.Transport
	Sink              Sink
	Clock             Clock
}

// DefaultConfig returns the default settings for the passed transport
func DefaultConfig(t transport.Transport) Config {
	return Config{
		ChunkSize:         environment.DefaultChunkSize,
		MaxRetries:        retrypolicy.DefaultMaxRetries,
		InterChunkDelay:   DefaultInterChunkDelay,
		RetryPolicy:       retrypolicy.Fixed{Delay: retrypolicy.DefaultDelay},
		MinSampleInterval: progress.DefaultMinSampleInterval,
		Transport:         t,
		Clock:             RealClock(),
	}
}

// ConfigFromEnvironment returns the settings read from the RANGEUPLOAD_ env variables
func ConfigFromEnvironment(env environment.Environment, t transport.Transport) Config {
	return Config{
		ChunkSize:         env.ChunkSize,
		MaxRetries:        env.MaxRetries,
		InterChunkDelay:   env.InterChunkDelay(),
		RetryPolicy:       retrypolicy.FromEnvironment(env),
		MinSampleInterval: env.MinSampleInterval(),
		Transport:         t,
		Clock:             RealClock(),
	}
}

func (c Config) withDefaults() Config {
	if c.ChunkSize < 1 {
		c.ChunkSize = environment.DefaultChunkSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InterChunkDelay < 0 {
		c.InterChunkDelay = 0
	}
	if c.RetryPolicy == nil {
		c.RetryPolicy = retrypolicy.Fixed{Delay: retrypolicy.DefaultDelay}
	}
	if c.Clock == nil {
		c.Clock = RealClock()
	}
	if c.Sink == nil {
		c.Sink = SinkFunc(func(models.SessionEvent) {})
	}
	if c.Transport == nil {
		c.Transport = transport.Func(func(ctx context.Context, request transport.Request) transport.Outcome {
			return transport.Failed(ErrNoTransport)
		})
	}
	return c
}

// Clock provides the time and the suspension points of the chunk loop
type Clock interface {
	Now() time.Time
	// Sleep waits for d and returns false if ctx was cancelled before
	Sleep(ctx context.Context, d time.Duration) bool
}

type realClock struct{}

// RealClock returns a clock backed by the time package
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Sink receives a notification for every status change and every acknowledged chunk.
// Notify is never called concurrently for the same session
type Sink interface {
	Notify(event models.SessionEvent)
}

// SinkFunc is an adapter to use a function as a Sink
type SinkFunc func(event models.SessionEvent)

// Notify calls f
func (f SinkFunc) Notify(event models.SessionEvent) {
	f(event)
}

// MultiSink forwards every event to all sinks in order
type MultiSink []Sink

// Notify forwards the event
func (m MultiSink) Notify(event models.SessionEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(event)
		}
	}
}
