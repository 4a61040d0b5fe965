package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizpool-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in a local in-process map: the session clock
//     and submission latch are single-instance by design (one worker owns a
//     session for its lifetime).
//   - Redis marks session liveness with a TTL key, which lets operators see
//     active attempts and lets a supervisor reap orphaned ones.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(quizID, participantID string) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := quizID + "/" + participantID
	if session, ok := s.sessions[key]; ok {
		return session, false
	}
	session := app.NewSession(quizID, participantID)
	s.sessions[key] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(quizID, participantID), "1", s.ttl).Err()
	return session, true
}

func (s *SessionStore) Get(quizID, participantID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[quizID+"/"+participantID]
	return session, ok
}

func (s *SessionStore) Delete(quizID, participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, quizID+"/"+participantID)
	_ = s.client.Del(context.Background(), s.key(quizID, participantID)).Err()
}

func (s *SessionStore) key(quizID, participantID string) string {
	return "quiz:session:" + quizID + ":" + participantID
}
