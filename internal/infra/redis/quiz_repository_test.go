package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizpool-service/internal/domain"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{quiz: sampleQuiz()}
	repo := NewQuizRepository(client, loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 1 || len(quiz.Tiers) != 1 {
		t.Fatalf("expected full quiz document, got %+v", quiz)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:quiz-1:data") {
		t.Fatalf("expected cached quiz key")
	}

	// Second call should hit cache, loader not incremented.
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestQuizRepositoryReloadsAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{quiz: sampleQuiz()}
	repo := NewQuizRepository(client, loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls)
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

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
