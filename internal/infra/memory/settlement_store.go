package memory

import (
	"context"
	"sync"

	"quizpool-service/internal/domain"
)

// SettlementStore keeps settlement audit state and the per-quiz
// distribution latch in memory.
type SettlementStore struct {
	mu      sync.Mutex
	states  map[string]domain.SettlementState
	latches map[string]bool
}

func NewSettlementStore() *SettlementStore {
	return &SettlementStore{
		states:  make(map[string]domain.SettlementState),
		latches: make(map[string]bool),
	}
}

func (s *SettlementStore) Save(_ context.Context, state domain.SettlementState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.QuizID] = state
	return nil
}

func (s *SettlementStore) Load(_ context.Context, quizID string) (domain.SettlementState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[quizID]
	return state, ok, nil
}

// TryLatch flips the quiz's distribution latch; only the first caller ever
// wins it.
func (s *SettlementStore) TryLatch(_ context.Context, quizID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latches[quizID] {
		return false, nil
	}
	s.latches[quizID] = true
	return true, nil
}
