package memory

import (
	"context"
	"sync"

	"quizpool-service/internal/domain"
)

// Distribution is one recorded payout call.
type Distribution struct {
	Participants []string
	Amounts      []int64
}

// Ledger is an in-memory ledger seeded with static quiz data. It records
// submissions and distributions, which makes it the default backing for
// tests and demo runs without Postgres.
type Ledger struct {
	mu            sync.RWMutex
	quizzes       map[string]domain.Quiz
	order         map[string][]string
	results       map[string]map[string]domain.Result
	distributions map[string][]Distribution
}

func NewLedger(quizzes map[string]domain.Quiz) *Ledger {
	return &Ledger{
		quizzes:       quizzes,
		order:         make(map[string][]string),
		results:       make(map[string]map[string]domain.Result),
		distributions: make(map[string][]Distribution),
	}
}

func (l *Ledger) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	meta := quiz
	meta.Questions = nil
	return meta, nil
}

func (l *Ledger) GetQuizQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	quiz, ok := l.quizzes[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return quiz.Questions, nil
}

func (l *Ledger) SubmitResult(_ context.Context, quizID, participantID string, result domain.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	byParticipant, ok := l.results[quizID]
	if !ok {
		byParticipant = make(map[string]domain.Result)
		l.results[quizID] = byParticipant
	}
	if _, seen := byParticipant[participantID]; !seen {
		l.order[quizID] = append(l.order[quizID], participantID)
	}
	byParticipant[participantID] = result
	return nil
}

func (l *Ledger) ParticipantCount(_ context.Context, quizID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order[quizID]), nil
}

func (l *Ledger) Participant(_ context.Context, quizID string, index int) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	order := l.order[quizID]
	if index < 0 || index >= len(order) {
		return "", domain.ErrDataUnavailable
	}
	return order[index], nil
}

func (l *Ledger) ParticipantResult(_ context.Context, quizID, participantID string) (domain.Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result, ok := l.results[quizID][participantID]
	if !ok {
		return domain.Result{}, domain.ErrDataUnavailable
	}
	return result, nil
}

func (l *Ledger) Distribute(_ context.Context, quizID string, participants []string, amounts []int64) error {
	if len(participants) != len(amounts) {
		return domain.ErrDistributionFailed
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.distributions[quizID] = append(l.distributions[quizID], Distribution{
		Participants: participants,
		Amounts:      amounts,
	})
	return nil
}

// Distributions returns the recorded payout calls for a quiz.
func (l *Ledger) Distributions(quizID string) []Distribution {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Distribution(nil), l.distributions[quizID]...)
}
