package chat

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikrogrup/itbot/backend/internal/model/chat"
	"github.com/mikrogrup/itbot/backend/internal/model/identity"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotSignedIn     = errors.New("not signed in")
)

// loginTTL bounds how long an authorize redirect may take to come back.
const loginTTL = 10 * time.Minute

// PendingLogin holds the single-use values of an authorize redirect in flight.
type PendingLogin struct {
	State     string
	Verifier  string
	CreatedAt time.Time
}

// Session is the in-memory state of one browser: its Principal and its transcript.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	lastSeen    time.Time
	principal   *identity.Principal
	coordinator *Coordinator
	login       *PendingLogin
	flash       string
}

// Principal returns the signed-in user, if any.
func (s *Session) Principal() (identity.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return identity.Principal{}, false
	}
	return *s.principal, true
}

// Coordinator returns the transcript owner of the signed-in user, or ErrNotSignedIn.
func (s *Session) Coordinator() (*Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil || s.coordinator == nil {
		return nil, ErrNotSignedIn
	}
	return s.coordinator, nil
}

// SignIn replaces the Principal and the transcript wholesale.
func (s *Session) SignIn(principal identity.Principal, coordinator *Coordinator) {
	s.mu.Lock()
	previous := s.coordinator
	s.principal = &principal
	s.coordinator = coordinator
	s.login = nil
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// SignOut destroys the Principal and the transcript.
func (s *Session) SignOut() {
	s.mu.Lock()
	previous := s.coordinator
	s.principal = nil
	s.coordinator = nil
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// BeginLogin records the state and PKCE verifier of a new authorize redirect.
func (s *Session) BeginLogin(state, verifier string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login = &PendingLogin{State: state, Verifier: verifier, CreatedAt: now}
}

// TakeLogin consumes the pending login if state matches and it has not expired.
func (s *Session) TakeLogin(state string, now time.Time) (PendingLogin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.login
	s.login = nil
	if pending == nil || state == "" || pending.State != state {
		return PendingLogin{}, false
	}
	if now.Sub(pending.CreatedAt) > loginTTL {
		return PendingLogin{}, false
	}
	return *pending, true
}

// SetFlash stores a one-shot alert for the next page render.
func (s *Session) SetFlash(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = message
}

// TakeFlash returns and clears the pending alert.
func (s *Session) TakeFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flash
	s.flash = ""
	return msg
}

// Info summarises the session for the API.
func (s *Session) Info() chat.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.SessionInfo{ID: s.ID, SignedIn: s.principal != nil, CreatedAt: s.CreatedAt}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Service keeps browser sessions in memory. Nothing survives a restart.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
}

// NewService creates the registry. idleTTL <= 0 disables expiry.
func NewService(idleTTL time.Duration) *Service {
	return &Service{
		sessions: make(map[string]*Session),
		idleTTL:  idleTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions an anonymous session.
func (s *Service) CreateSession(_ context.Context) (*Session, error) {
	now := s.now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a live session and marks it as used.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	if s.expired(session, now) {
		s.remove(sessionID)
		return nil, ErrSessionNotFound
	}

	session.touch(now)
	return session, nil
}

// EndSession signs the session out and forgets it.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	session := s.remove(sessionID)
	if session == nil {
		return ErrSessionNotFound
	}
	return nil
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepIdle drops sessions idle for longer than the TTL and returns how many were removed.
func (s *Service) SweepIdle() int {
	if s.idleTTL <= 0 {
		return 0
	}

	now := s.now()
	s.mu.RLock()
	stale := make([]string, 0)
	for id, session := range s.sessions {
		if s.expired(session, now) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.remove(id)
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if s.idleTTL <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.SweepIdle(); removed > 0 {
				log.Printf("[session] swept %d idle sessions", removed)
			}
		}
	}
}

func (s *Service) expired(session *Session, now time.Time) bool {
	return s.idleTTL > 0 && session.idleSince(now) > s.idleTTL
}

func (s *Service) remove(sessionID string) *Session {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	session.SignOut()
	return session
}
