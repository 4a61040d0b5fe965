package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizpool-service/internal/domain"
)

// SettlementStore persists settlement state as JSON and implements the
// distribution latch with SETNX, so the latch holds across service
// instances: exactly one instance ever wins it for a quiz.
type SettlementStore struct {
	client *redis.Client
}

func NewSettlementStore(client *redis.Client) *SettlementStore {
	return &SettlementStore{client: client}
}

func (s *SettlementStore) Save(ctx context.Context, state domain.SettlementState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal settlement state: %w", err)
	}
	// Audit state never expires.
	return s.client.Set(ctx, s.stateKey(state.QuizID), raw, 0).Err()
}

func (s *SettlementStore) Load(ctx context.Context, quizID string) (domain.SettlementState, bool, error) {
	raw, err := s.client.Get(ctx, s.stateKey(quizID)).Bytes()
	if err == redis.Nil {
		return domain.SettlementState{}, false, nil
	}
	if err != nil {
		return domain.SettlementState{}, false, fmt.Errorf("load settlement state: %w", err)
	}
	var state domain.SettlementState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SettlementState{}, false, fmt.Errorf("unmarshal settlement state: %w", err)
	}
	return state, true, nil
}

func (s *SettlementStore) TryLatch(ctx context.Context, quizID string) (bool, error) {
	won, err := s.client.SetNX(ctx, s.latchKey(quizID), "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("settlement latch: %w", err)
	}
	return won, nil
}

func (s *SettlementStore) stateKey(quizID string) string {
	return "quiz:settlement:" + quizID
}

func (s *SettlementStore) latchKey(quizID string) string {
	return "quiz:settlement:" + quizID + ":latch"
}
