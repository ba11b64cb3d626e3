package progress

import (
	"time"

	"github.com/forceu/rangeupload/internal/models"
)

// DefaultMinSampleInterval is the minimum time between two speed measurements
const DefaultMinSampleInterval = 500 * time.Millisecond

// Tracker derives the transfer speed from acknowledged offsets. It is not safe for concurrent
// use, the owning session serialises access
type Tracker struct {
	minInterval    time.Duration
	hasBaseline    bool
	baseOffset     int64
	baseTime       time.Time
	bytesPerSecond float64
	isMeasured     bool
}

// New returns a tracker that measures at most once per minInterval
func New(minInterval time.Duration) *Tracker {
	if minInterval < 0 {
		minInterval = 0
	}
	return &Tracker{minInterval: minInterval}
}

// Restart begins a new run at offset. The speed is idle until the next measurement
func (t *Tracker) Restart(offset int64, now time.Time) {
	t.setBaseline(offset, now)
	t.bytesPerSecond = 0
	t.isMeasured = false
}

// Reset forgets all measurements
func (t *Tracker) Reset() {
	*t = Tracker{minInterval: t.minInterval}
}

// Observe records an acknowledged offset. A new speed is only calculated if at least the
// minimum interval has passed and the offset changed since the last measurement, otherwise
// the previous speed is kept
func (t *Tracker) Observe(offset int64, now time.Time) {
	if !t.hasBaseline || offset < t.baseOffset {
		t.setBaseline(offset, now)
		return
	}
	elapsed := now.Sub(t.baseTime)
	if elapsed <= 0 || elapsed < t.minInterval || offset == t.baseOffset {
		return
	}
	t.bytesPerSecond = float64(offset-t.baseOffset) / elapsed.Seconds()
	t.isMeasured = true
	t.setBaseline(offset, now)
}

func (t *Tracker) setBaseline(offset int64, now time.Time) {
	t.hasBaseline = true
	t.baseOffset = offset
	t.baseTime = now
}

// Sample is the derived progress of a session
type Sample struct {
	Percent        float64
	BytesPerSecond float64
	State          models.SpeedState
}

// Sample returns percentage and speed for the given session values. A file with 0 bytes
// is at 0% until it is completed
func (t *Tracker) Sample(status models.SessionStatus, offset, totalSize int64) Sample {
	result := Sample{Percent: Percent(status, offset, totalSize), State: models.SpeedIdle}
	switch {
	case status == models.StatusPaused:
		result.State = models.SpeedPaused
	case t.isMeasured:
		result.State = models.SpeedActive
		result.BytesPerSecond = t.bytesPerSecond
	}
	return result
}

// Percent returns offset/totalSize in percent
func Percent(status models.SessionStatus, offset, totalSize int64) float64 {
	if totalSize <= 0 {
		if status == models.StatusCompleted {
			return 100
		}
		return 0
	}
	if offset >= totalSize {
		return 100
	}
	return float64(offset) / float64(totalSize) * 100
}
