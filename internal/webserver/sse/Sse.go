package sse

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/logging"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/google/uuid"
)

var maxConnection = 2 * time.Hour
var pingInterval = 15 * time.Second

const listenerBuffer = 128

type listener struct {
	Reply    func(reply string)
	Shutdown func()
}

// Broadcaster forwards session events to all connected SSE listeners. It implements session.Sink
type Broadcaster struct {
	mutex     sync.RWMutex
	listeners map[string]listener
	snapshot  func() []models.SessionInfo
}

// New returns a Broadcaster. snapshot is called for every new listener to send the current
// status of all sessions, it may be nil
func New(snapshot func() []models.SessionInfo) *Broadcaster {
	return &Broadcaster{
		listeners: make(map[string]listener),
		snapshot:  snapshot,
	}
}

func (b *Broadcaster) addListener(id string, channel listener) {
	b.mutex.Lock()
	b.listeners[id] = channel
	b.mutex.Unlock()
}

func (b *Broadcaster) removeListener(id string) {
	b.mutex.Lock()
	delete(b.listeners, id)
	b.mutex.Unlock()
}

type eventUploadStatus struct {
	Event          string               `json:"event"`
	Type           models.EventType     `json:"type"`
	Id             string               `json:"id"`
	FileName       string               `json:"file_name"`
	Status         models.SessionStatus `json:"status"`
	Offset         int64                `json:"offset"`
	TotalSize      int64                `json:"total_size"`
	Percent        float64              `json:"percent"`
	BytesPerSecond float64              `json:"bytes_per_second"`
	Speed          string               `json:"speed"`
	RetryCount     int                  `json:"retry_count"`
	MaxRetries     int                  `json:"max_retries"`
	IsImage        bool                 `json:"is_image"`
	ErrorMessage   string               `json:"error_message"`
	Result         *models.UploadResult `json:"result,omitempty"`
}

func toEvent(event models.SessionEvent) eventUploadStatus {
	info := event.Session
	return eventUploadStatus{
		Event:          "uploadStatus",
		Type:           event.Type,
		Id:             info.Id,
		FileName:       info.FileName,
		Status:         info.Status,
		Offset:         info.Offset,
		TotalSize:      info.TotalSize,
		Percent:        info.Percent,
		BytesPerSecond: info.BytesPerSecond,
		Speed:          helper.SpeedString(info),
		RetryCount:     info.RetryCount,
		MaxRetries:     info.MaxRetries,
		IsImage:        info.IsImage,
		ErrorMessage:   info.Error,
		Result:         info.Result,
	}
}

// Notify sends the event to all listeners
func (b *Broadcaster) Notify(event models.SessionEvent) {
	b.publishMessage(toEvent(event))
}

func (b *Broadcaster) publishMessage(data eventUploadStatus) {
	message, err := json.Marshal(data)
	helper.Check(err)

	b.mutex.RLock()
	for _, channel := range b.listeners {
		channel.Reply("event: message\ndata: " + string(message) + "\n\n")
	}
	b.mutex.RUnlock()
}

// ListenerCount returns the number of connected listeners
func (b *Broadcaster) ListenerCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.listeners)
}

// Shutdown stops the SSE and closes the connection to all listeners
func (b *Broadcaster) Shutdown() {
	b.mutex.RLock()
	for _, channel := range b.listeners {
		channel.Shutdown()
	}
	b.mutex.RUnlock()
}

// GetStatusSSE sends the status of all sessions and new updates to a new listener
func (b *Broadcaster) GetStatusSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Expose-Headers", "Content-Type")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Keep-Alive", "timeout=20, max=20")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	creationTime := time.Now()

	replyChannel := make(chan string, listenerBuffer)
	shutdownChannel := make(chan struct{})
	var shutdownOnce sync.Once
	channelId := uuid.NewString()
	channel := listener{
		Reply: func(reply string) {
			select {
			case replyChannel <- reply:
			default:
				logging.LogError("SSE listener "+channelId+" is too slow, dropping message", nil)
			}
		},
		Shutdown: func() {
			shutdownOnce.Do(func() { close(shutdownChannel) })
		},
	}
	b.addListener(channelId, channel)
	defer b.removeListener(channelId)

	if b.snapshot != nil {
		for _, info := range b.snapshot() {
			message, err := json.Marshal(toEvent(models.SessionEvent{Type: models.EventStatus, Session: info}))
			helper.Check(err)
			_, _ = io.WriteString(w, "event: message\ndata: "+string(message)+"\n\n")
		}
	}
	w.(http.Flusher).Flush()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		if time.Now().After(creationTime.Add(maxConnection)) {
			w.(http.Flusher).Flush()
			return
		}
		select {
		case reply := <-replyChannel:
			_, _ = io.WriteString(w, reply)
		case <-ping.C:
			_, _ = io.WriteString(w, "event: ping\n\n")
		case <-ctx.Done():
			return
		case <-shutdownChannel:
			return
		}
		w.(http.Flusher).Flush()
	}
}
