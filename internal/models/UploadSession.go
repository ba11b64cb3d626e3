package models

// SessionStatus is the lifecycle state of an upload session
type SessionStatus string

const (
	// StatusPending is set for new sessions and after a cancellation
	StatusPending SessionStatus = "pending"
	// StatusUploading is set while the chunk loop is allowed to send
	StatusUploading SessionStatus = "uploading"
	// StatusPaused is set by Pause, the loop stops at the next chunk boundary
	StatusPaused SessionStatus = "paused"
	// StatusCompleted is terminal, the backend confirmed the assembled file
	StatusCompleted SessionStatus = "completed"
	// StatusFailed is set once all retries for a chunk have been used up
	StatusFailed SessionStatus = "failed"
)

// IsTerminal returns true if no further automatic transition can happen
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SpeedState tells how the speed value of a SessionInfo has to be read
type SpeedState string

const (
	// SpeedIdle is reported until the first measurement of the current run
	SpeedIdle SpeedState = "idle"
	// SpeedActive is reported when BytesPerSecond holds a measurement
	SpeedActive SpeedState = "active"
	// SpeedPaused is reported while the session is paused
	SpeedPaused SpeedState = "paused"
)

// SessionInfo is an immutable snapshot of an upload session
type SessionInfo struct {
	Id             string        `json:"id"`
	SessionId      string        `json:"session_id"`
	FileName       string        `json:"file_name"`
	ContentType    string        `json:"content_type"`
	IsImage        bool          `json:"is_image"`
	Status         SessionStatus `json:"status"`
	Offset         int64         `json:"offset"`
	TotalSize      int64         `json:"total_size"`
	RetryCount     int           `json:"retry_count"`
	MaxRetries     int           `json:"max_retries"`
	Percent        float64       `json:"percent"`
	BytesPerSecond float64       `json:"bytes_per_second"`
	SpeedState     SpeedState    `json:"speed_state"`
	Result         *UploadResult `json:"result,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// EventType describes why a SessionEvent was emitted
type EventType string

const (
	// EventAdded is emitted once a session has been created by the registry
	EventAdded EventType = "added"
	// EventStatus is emitted on every status transition
	EventStatus EventType = "status"
	// EventProgress is emitted after every acknowledged chunk
	EventProgress EventType = "progress"
	// EventRetry is emitted before a failed chunk is sent again
	EventRetry EventType = "retry"
	// EventCompleted is emitted once, carrying the result payload
	EventCompleted EventType = "completed"
	// EventFailed is emitted once all retries were used, carrying the reason
	EventFailed EventType = "failed"
	// EventRemoved is emitted after a session has been deleted from the registry
	EventRemoved EventType = "removed"
)

// SessionEvent is a notification sent to a session sink
type SessionEvent struct {
	Type    EventType   `json:"type"`
	Session SessionInfo `json:"session"`
}
