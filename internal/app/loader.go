package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizpool-service/internal/domain"
)

// SetLoader is the question set loader: it composes the ledger's metadata
// and question-bank calls into one Quiz and validates the reward tier
// configuration before either engine can observe the quiz.
type SetLoader struct {
	ledger  Ledger
	timeout time.Duration
}

func NewSetLoader(ledger Ledger, timeout time.Duration) *SetLoader {
	return &SetLoader{ledger: ledger, timeout: timeout}
}

// LoadQuiz fetches metadata plus questions for one session start. A quiz
// that cannot be fully loaded is reported as data-unavailable so the caller
// can retry; it is never returned partially.
func (l *SetLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	quiz, err := l.ledger.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, fmt.Errorf("quiz %s metadata: %v: %w", quizID, err, domain.ErrDataUnavailable)
	}

	questions, err := l.ledger.GetQuizQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("quiz %s questions: %v: %w", quizID, err, domain.ErrDataUnavailable)
	}
	quiz.Questions = questions

	if err := domain.ValidateTiers(quiz.Tiers); err != nil {
		return domain.Quiz{}, fmt.Errorf("quiz %s: %w", quizID, err)
	}
	return quiz, nil
}
