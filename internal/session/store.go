package session

import (
	"sync"
	"time"

	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/gfearing/fearings-services/internal/metrics"
)

// Store keeps estimator sessions in memory with a sliding TTL
type Store struct {
	mu       sync.RWMutex
	items    map[string]*entry
	ttl      time.Duration
	stopChan chan struct{}
	stopOnce sync.Once

	onCreate func(*estimator.Session)
}

type entry struct {
	session  *estimator.Session
	lastSeen time.Time
}

// NewStore creates a store and starts its janitor
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		items:    make(map[string]*entry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	go s.cleanup(janitorInterval(ttl))

	return s
}

// janitorInterval sweeps once a minute, more often for short TTLs
func janitorInterval(ttl time.Duration) time.Duration {
	if half := ttl / 2; half > 0 && half < time.Minute {
		return half
	}
	return time.Minute
}

// OnCreate registers fn to run for every newly created session
func (s *Store) OnCreate(fn func(*estimator.Session)) {
	s.mu.Lock()
	s.onCreate = fn
	s.mu.Unlock()
}

// GetOrCreate returns the session for id, creating an idle one if needed
func (s *Store) GetOrCreate(id string) *estimator.Session {
	s.mu.Lock()

	now := time.Now()
	if e, ok := s.items[id]; ok && !s.expired(e, now) {
		e.lastSeen = now
		s.mu.Unlock()
		return e.session
	}

	sess := estimator.NewSession(id)
	s.items[id] = &entry{session: sess, lastSeen: now}
	fn := s.onCreate
	s.mu.Unlock()

	metrics.Get().IncrementSessionCreated()
	if fn != nil {
		fn(sess)
	}
	return sess
}

// Get retrieves a live session and refreshes its TTL
func (s *Store) Get(id string) (*estimator.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok || s.expired(e, time.Now()) {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.session, true
}

// Delete removes a session
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
}

// expired reports whether e is past its TTL; loading sessions never expire
func (s *Store) expired(e *entry, now time.Time) bool {
	if e.session.Snapshot().Loading() {
		return false
	}
	return now.Sub(e.lastSeen) > s.ttl
}

// cleanup periodically removes expired sessions
func (s *Store) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopChan:
			return
		}
	}
}

// removeExpired removes all expired sessions and returns how many went
func (s *Store) removeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, e := range s.items {
		if s.expired(e, now) {
			delete(s.items, id)
			removed++
		}
	}
	if removed > 0 {
		metrics.Get().IncrementSessionExpired(removed)
	}
	return removed
}

// Stop stops the janitor; safe to call more than once
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Size returns the number of sessions held
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
