/*
sessions.go - Admin console sessions and their expiry sweeper

PURPOSE:
  Keeps the opaque tokens handed out by POST /admin/login. A token is a
  random UUID stored in the admin_session cookie and remembered here with
  an expiry time. This is a demo gate, not an authentication system.

SWEEPER:
  A background goroutine with a configurable interval drops expired
  tokens so the map does not grow without bound.

USAGE:
  sessions := NewSessionStore(12 * time.Hour, logger)
  sessions.StartSweeper(10 * time.Minute)
  // ... later
  sessions.StopSweeper()

SEE ALSO:
  - pages.go: Login, logout and the requireAdmin middleware
*/
package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStore holds live admin session tokens.
type SessionStore struct {
	TTL time.Duration
	Now func() time.Time

	logger   *zap.Logger
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewSessionStore creates an empty store. A zero TTL means 12 hours.
func NewSessionStore(ttl time.Duration, logger *zap.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		TTL:      ttl,
		Now:      time.Now,
		logger:   logger,
		sessions: make(map[string]time.Time),
	}
}

// Create issues a new token.
func (s *SessionStore) Create() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = s.Now().Add(s.TTL)
	s.mu.Unlock()
	return token
}

// Valid reports whether token exists and has not expired.
func (s *SessionStore) Valid(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.sessions[token]
	return ok && s.Now().Before(expiry)
}

// Revoke forgets token.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Len returns the number of stored tokens, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes expired tokens and returns how many were dropped.
func (s *SessionStore) Sweep() int {
	now := s.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for token, expiry := range s.sessions {
		if !now.Before(expiry) {
			delete(s.sessions, token)
			dropped++
		}
	}
	return dropped
}

// =============================================================================
// SWEEPER
// =============================================================================

// StartSweeper runs Sweep every interval until StopSweeper is called.
func (s *SessionStore) StartSweeper(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.logger.Info("session sweeper started", zap.Duration("interval", interval))
}

// StopSweeper stops the background sweeper and waits for it to exit.
func (s *SessionStore) StopSweeper() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker, s.stop = nil, nil
	s.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	s.wg.Wait()
	s.logger.Info("session sweeper stopped")
}

func (s *SessionStore) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired admin sessions dropped", zap.Int("count", n))
			}
		case <-stop:
			return
		}
	}
}
