package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/forceu/rangeupload/internal/logging"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/upload/fileidentity"
	"github.com/forceu/rangeupload/internal/upload/session"
	"golang.org/x/sync/errgroup"
)

// ErrSessionNotFound is returned if no session exists for an id
var ErrSessionNotFound = errors.New("session not found")

// Registry holds all upload sessions, keyed by file identity
type Registry struct {
	config session.Config
	sink   session.Sink

	mu       sync.RWMutex
	sessions map[string]*session.Session
	order    []string
}

// AddResult lists the sessions created by Add and the number of skipped duplicates
type AddResult struct {
	Added      []models.SessionInfo
	Duplicates int
}

// BatchResult lists the affected session ids of a batch operation. A failing session does not
// stop the batch, its error is stored in Errors
type BatchResult struct {
	Affected []string
	Errors   map[string]error
}

// Stats are the number of sessions per status
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Uploading int `json:"uploading"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// New returns an empty registry. Every session created by the registry uses config; the
// registry also publishes EventAdded and EventRemoved to config.Sink
func New(config session.Config) *Registry {
	sink := config.Sink
	if sink == nil {
		sink = session.SinkFunc(func(models.SessionEvent) {})
	}
	config.Sink = sink
	return &Registry{
		config:   config,
		sink:     sink,
		sessions: make(map[string]*session.Session),
	}
}

// Add creates a pending session for every file that is not registered yet
func (r *Registry) Add(files ...models.UploadFile) AddResult {
	var result AddResult
	var added []*session.Session
	r.mu.Lock()
	for _, file := range files {
		id := fileidentity.FromFile(file)
		if _, exists := r.sessions[id]; exists {
			result.Duplicates++
			logging.LogDuplicate(id, file.Name)
			continue
		}
		newSession := session.New(file, r.config)
		r.sessions[id] = newSession
		r.order = append(r.order, id)
		added = append(added, newSession)
	}
	r.mu.Unlock()

	for _, newSession := range added {
		info := newSession.Info()
		result.Added = append(result.Added, info)
		logging.LogSessionAdded(info)
		r.sink.Notify(models.SessionEvent{Type: models.EventAdded, Session: info})
	}
	return result
}

// Get returns the session for id
func (r *Registry) Get(id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return result, nil
}

// Info returns a snapshot of the session for id
func (r *Registry) Info(id string) (models.SessionInfo, error) {
	s, err := r.Get(id)
	if err != nil {
		return models.SessionInfo{}, err
	}
	return s.Info(), nil
}

// Start starts the session for id
func (r *Registry) Start(id, credential, description string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.Start(credential, description)
}

// Resume resumes the session for id
func (r *Registry) Resume(id, credential, description string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.Resume(credential, description)
}

// Pause pauses the session for id
func (r *Registry) Pause(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.Pause()
}

// Cancel cancels the session for id
func (r *Registry) Cancel(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.Cancel()
}

// Delete aborts the session for id and removes it from the registry
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	r.removeFromOrder(id)
	r.mu.Unlock()

	info := s.Info()
	s.Delete()
	r.sink.Notify(models.SessionEvent{Type: models.EventRemoved, Session: info})
	return nil
}

// StartAll starts every pending or failed session
func (r *Registry) StartAll(credential, description string) BatchResult {
	return r.batch(func(s *session.Session) (bool, error) {
		status := s.Status()
		if status != models.StatusPending && status != models.StatusFailed {
			return false, nil
		}
		return true, s.Start(credential, description)
	})
}

// PauseAll pauses every uploading session
func (r *Registry) PauseAll() BatchResult {
	return r.batch(func(s *session.Session) (bool, error) {
		if s.Status() != models.StatusUploading {
			return false, nil
		}
		return true, s.Pause()
	})
}

// ResumeAll resumes every paused session
func (r *Registry) ResumeAll(credential, description string) BatchResult {
	return r.batch(func(s *session.Session) (bool, error) {
		if s.Status() != models.StatusPaused {
			return false, nil
		}
		return true, s.Resume(credential, description)
	})
}

// ClearAll aborts and removes every session
func (r *Registry) ClearAll() BatchResult {
	result := BatchResult{Errors: make(map[string]error)}
	for _, id := range r.ids() {
		err := r.Delete(id)
		if err != nil {
			result.Errors[id] = err
			continue
		}
		result.Affected = append(result.Affected, id)
	}
	return result
}

func (r *Registry) batch(operation func(s *session.Session) (bool, error)) BatchResult {
	result := BatchResult{Errors: make(map[string]error)}
	for _, s := range r.list() {
		isAffected, err := operation(s)
		if !isAffected {
			continue
		}
		if err != nil {
			result.Errors[s.Id()] = err
			continue
		}
		result.Affected = append(result.Affected, s.Id())
	}
	return result
}

// List returns snapshots of all sessions in the order they were added
func (r *Registry) List() []models.SessionInfo {
	sessions := r.list()
	result := make([]models.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, s.Info())
	}
	return result
}

// Stats returns the number of sessions per status
func (r *Registry) Stats() Stats {
	var result Stats
	for _, info := range r.List() {
		result.Total++
		switch info.Status {
		case models.StatusPending:
			result.Pending++
		case models.StatusUploading:
			result.Uploading++
		case models.StatusPaused:
			result.Paused++
		case models.StatusCompleted:
			result.Completed++
		case models.StatusFailed:
			result.Failed++
		}
	}
	return result
}

// Wait blocks until no session has an active chunk loop or ctx is done
func (r *Registry) Wait(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, s := range r.list() {
		group.Go(func() error {
			return s.Wait(groupCtx)
		})
	}
	return group.Wait()
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

func (r *Registry) list() []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*session.Session, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.sessions[id])
	}
	return result
}

// removeFromOrder requires r.mu
func (r *Registry) removeFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
