package memory

import (
	"sync"

	"quizpool-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// keyed by (quiz, participant).
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(quizID, participantID string) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(quizID, participantID)
	if session, ok := s.sessions[key]; ok {
		return session, false
	}
	session := app.NewSession(quizID, participantID)
	s.sessions[key] = session
	return session, true
}

func (s *SessionStore) Get(quizID, participantID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionKey(quizID, participantID)]
	return session, ok
}

func (s *SessionStore) Delete(quizID, participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(quizID, participantID))
}

func sessionKey(quizID, participantID string) string {
	return quizID + "/" + participantID
}
