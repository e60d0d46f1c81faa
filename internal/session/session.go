// Package session holds the per-browser-session state: the authenticated
// principal, their preference snapshot, per-question timers, verdicts, and
// pending error-cause diagnoses. Nothing here is persisted; logout or
// process end destroys it, and it is trivially reconstructible.
package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshuadr04/lms-sistema/internal/model"
)

// PendingDiagnosis is a response record held back between an incorrect
// grading and the student picking an error cause. Elapsed time and
// confidence were fixed at grading time; only the cause is still open.
type PendingDiagnosis struct {
	Record model.ResponseRecord
}

// Session is the state owned by one logged-in browser session.
type Session struct {
	Token       string
	StudentID   string
	DisplayName string
	TestMode    bool // roster was unreachable or empty at login

	mu         sync.Mutex
	prefs      model.Preferences
	firstShown map[string]time.Time
	pending    map[string]*PendingDiagnosis
	verdicts   map[string]model.Verdict
	flash      string
	expiresAt  time.Time
}

// Prefs returns the session's preference snapshot.
func (s *Session) Prefs() model.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetPref advances the cached snapshot for one flag. Called only after the
// store confirmed the write, so the UI reflects the new state without an
// extra read.
func (s *Session) SetPref(flag model.PrefFlag, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.SetFlag(flag, v)
}

// MarkShown records when a question was first rendered. Subsequent renders
// keep the original timestamp until the timer is reset.
func (s *Session) MarkShown(questionID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.firstShown[questionID]; !ok {
		s.firstShown[questionID] = now
	}
}

// Elapsed returns the fractional seconds since the question was first
// shown (or last reset), rounded to two decimals. Zero when never shown.
func (s *Session) Elapsed(questionID string, now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	shown, ok := s.firstShown[questionID]
	if !ok {
		return 0
	}
	return round2(now.Sub(shown).Seconds())
}

// ResetTimer restarts the question's timer, allowing a fresh re-attempt.
func (s *Session) ResetTimer(questionID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstShown[questionID] = now
}

// SetPending parks a deferred record until a cause is chosen.
func (s *Session) SetPending(questionID string, p *PendingDiagnosis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[questionID] = p
}

// Pending returns the deferred record for a question, or nil.
func (s *Session) Pending(questionID string) *PendingDiagnosis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[questionID]
}

// ClearPending removes the pending marker after the record was written.
func (s *Session) ClearPending(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, questionID)
}

// SetVerdict stores the last grading outcome for redisplay after redirect.
func (s *Session) SetVerdict(questionID string, v model.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[questionID] = v
}

// Verdict returns the last grading outcome, if any.
func (s *Session) Verdict(questionID string) (model.Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verdicts[questionID]
	return v, ok
}

// SetFlash stores a one-shot message for the next page render.
func (s *Session) SetFlash(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = msg
}

// PopFlash returns and clears the one-shot message.
func (s *Session) PopFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flash
	s.flash = ""
	return msg
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Manager owns all live sessions, keyed by token.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewManager creates a session manager. Sessions idle past ttl are dropped;
// ttl <= 0 means sessions live until logout or process end.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create establishes a session for an authenticated student and returns it.
func (m *Manager) Create(student model.Student, testMode bool) *Session {
	s := &Session{
		Token:       uuid.NewString(),
		StudentID:   student.ID,
		DisplayName: student.DisplayName,
		TestMode:    testMode,
		prefs:       student.Prefs,
		firstShown:  make(map[string]time.Time),
		pending:     make(map[string]*PendingDiagnosis),
		verdicts:    make(map[string]model.Verdict),
	}
	if m.ttl > 0 {
		s.expiresAt = time.Now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return s
}

// Get returns the session for a token, or nil when missing or expired.
// Expired sessions are removed on access.
func (m *Manager) Get(token string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil
	}
	if m.ttl > 0 && time.Now().After(s.expiresAt) {
		delete(m.sessions, token)
		return nil
	}
	return s
}

// Delete destroys a session and all its per-question state.
func (m *Manager) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

type sessionCtxKey struct{}

// ContextWith stores the active session in the request context.
func ContextWith(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// FromContext retrieves the active session from context, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*Session)
	return s
}
