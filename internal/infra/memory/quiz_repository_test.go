package memory

import (
	"context"
	"testing"
	"time"

	"quizpool-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{quiz: sampleQuiz()}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryPropagatesNotFound(t *testing.T) {
	loader := &countingLoader{quiz: sampleQuiz()}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

type countingLoader struct {
	quiz  domain.Quiz
	calls int
}

func (l *countingLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	if quizID != l.quiz.ID {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return l.quiz, nil
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              "quiz-1",
		Title:           "Sample",
		TotalPool:       100,
		DurationSeconds: 60,
		Tiers: []domain.RewardTier{
			{Label: "60%-100%", Low: 60, High: 100, Amount: 50},
		},
		Questions: []domain.Question{
			{Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectOption: 1},
		},
	}
}
