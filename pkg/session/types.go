// Package session tracks in-flight and finished deliberation requests in
// memory: status, cancellation handle, and the final analysis state. The
// registry is the API layer's view of the pipeline; the pipeline itself never
// touches it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Status represents the current state of a deliberation request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusTimedOut   Status = "timed_out"
)

// Session is one deliberation request from submission to terminal state.
type Session struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`

	// State is the pipeline output, attached on completion.
	State *models.AnalysisState `json:"state,omitempty"`

	mu         sync.RWMutex
	cancelFunc context.CancelFunc
}

// SetStatus updates the session status (thread-safe).
func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.UpdatedAt = time.Now()
}

// SetError records a failure and marks the session failed (thread-safe).
func (s *Session) SetError(err string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Error = err
	s.Status = StatusFailed
	s.UpdatedAt = time.Now()
}

// SetState attaches the final analysis state and marks the session completed
// (thread-safe).
func (s *Session) SetState(state *models.AnalysisState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.Status = StatusCompleted
	s.UpdatedAt = time.Now()
}

// SetCancelFunc stores the request-scope cancel function (thread-safe).
func (s *Session) SetCancelFunc(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFunc = cancel
}

// Cancel cancels the request scope if it is still running (thread-safe).
// Returns false when there is nothing to cancel.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelFunc == nil || terminalStatus(s.Status) {
		return false
	}
	s.cancelFunc()
	s.Status = StatusCancelled
	s.UpdatedAt = time.Now()
	return true
}

// SetTimedOut marks the session as having hit the transport ceiling
// (thread-safe).
func (s *Session) SetTimedOut(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Error = message
	s.Status = StatusTimedOut
	s.UpdatedAt = time.Now()
}

// Clone creates a safe copy of the session for reading.
func (s *Session) Clone() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		ID:        s.ID,
		Question:  s.Question,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Error:     s.Error,
		State:     s.State,
	}
}

func terminalStatus(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}
