package estimator

import (
	"strings"
	"sync"
	"time"

	"github.com/gfearing/fearings-services/internal/model"
)

// Status is the lifecycle state of one estimate cycle
type Status string

const (
	StatusIdle    Status = "idle"    // nothing requested yet
	StatusLoading Status = "loading" // one request outstanding
	StatusSuccess Status = "success" // last request produced an estimate (declines included)
	StatusFailed  Status = "failed"  // last request failed
)

// Snapshot is a copy of a session's state, safe to render or serialise
type Snapshot struct {
	SessionID       string          `json:"session_id,omitempty"`
	Status          Status          `json:"status"`
	Estimate        *model.Estimate `json:"estimate,omitempty"`
	Error           string          `json:"error,omitempty"`
	ValidationError string          `json:"validation_error,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Loading reports whether a request is outstanding
func (s Snapshot) Loading() bool {
	return s.Status == StatusLoading
}

// Session holds the estimate state of one visitor.
// Only the latest estimate or error is kept.
type Session struct {
	id string

	mu              sync.Mutex
	status          Status
	estimate        *model.Estimate
	errMessage      string
	validationError string
	updatedAt       time.Time

	onChange func(Snapshot)
}

// NewSession creates an idle session
func NewSession(id string) *Session {
	return &Session{
		id:        id,
		status:    StatusIdle,
		updatedAt: time.Now(),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// OnChange registers fn to receive a snapshot after every state change
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Begin starts a new estimate cycle.
//
// An empty description keeps the current state, records the validation
// message and returns model.ErrEmptyDescription. While loading it returns
// model.ErrEstimateInFlight. Otherwise the session moves to loading and any
// previous estimate or error is discarded.
func (s *Session) Begin(jobDescription string) error {
	s.mu.Lock()

	if strings.TrimSpace(jobDescription) == "" {
		s.validationError = model.ValidationMessage
		s.updatedAt = time.Now()
		s.unlockAndNotify()
		return model.ErrEmptyDescription
	}

	if s.status == StatusLoading {
		s.mu.Unlock()
		return model.ErrEstimateInFlight
	}

	s.status = StatusLoading
	s.estimate = nil
	s.errMessage = ""
	s.validationError = ""
	s.updatedAt = time.Now()
	s.unlockAndNotify()
	return nil
}

// Succeed moves a loading session to success. Returns false outside loading.
func (s *Session) Succeed(est *model.Estimate) bool {
	s.mu.Lock()
	if s.status != StatusLoading || est == nil {
		s.mu.Unlock()
		return false
	}

	s.status = StatusSuccess
	s.estimate = est.Clone()
	s.errMessage = ""
	s.updatedAt = time.Now()
	s.unlockAndNotify()
	return true
}

// Fail moves a loading session to failed with the generic message.
// The cause is never stored. Returns false outside loading.
func (s *Session) Fail() bool {
	s.mu.Lock()
	if s.status != StatusLoading {
		s.mu.Unlock()
		return false
	}

	s.status = StatusFailed
	s.estimate = nil
	s.errMessage = model.GenericFailureMessage
	s.updatedAt = time.Now()
	s.unlockAndNotify()
	return true
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:       s.id,
		Status:          s.status,
		Estimate:        s.estimate.Clone(),
		Error:           s.errMessage,
		ValidationError: s.validationError,
		UpdatedAt:       s.updatedAt,
	}
}

// unlockAndNotify releases the lock, then calls the observer outside it
func (s *Session) unlockAndNotify() {
	snap := s.snapshotLocked()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
