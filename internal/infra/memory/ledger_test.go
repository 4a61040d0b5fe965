package memory

import (
	"context"
	"testing"

	"quizpool-service/internal/domain"
)

func TestLedgerMetadataOmitsQuestions(t *testing.T) {
	ledger := NewLedger(map[string]domain.Quiz{"quiz-1": sampleQuiz()})

	quiz, err := ledger.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 0 {
		t.Fatalf("metadata must not carry questions, got %d", len(quiz.Questions))
	}

	questions, err := ledger.GetQuizQuestions(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected question bank, got %d", len(questions))
	}
}

func TestLedgerKeepsSubmissionOrder(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(map[string]domain.Quiz{"quiz-1": sampleQuiz()})

	for _, p := range []string{"p3", "p1", "p2"} {
		if err := ledger.SubmitResult(ctx, "quiz-1", p, domain.NewResult(1, 1)); err != nil {
			t.Fatalf("submit %s: %v", p, err)
		}
	}
	// Overwriting an existing participant must not re-append it.
	if err := ledger.SubmitResult(ctx, "quiz-1", "p3", domain.NewResult(0, 1)); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	count, err := ledger.ParticipantCount(ctx, "quiz-1")
	if err != nil || count != 3 {
		t.Fatalf("expected 3 participants, got %d err=%v", count, err)
	}
	want := []string{"p3", "p1", "p2"}
	for i, expected := range want {
		got, err := ledger.Participant(ctx, "quiz-1", i)
		if err != nil || got != expected {
			t.Fatalf("index %d: expected %s, got %s err=%v", i, expected, got, err)
		}
	}

	res, err := ledger.ParticipantResult(ctx, "quiz-1", "p3")
	if err != nil {
		t.Fatalf("result lookup: %v", err)
	}
	if res.Passed != 0 {
		t.Fatalf("expected overwritten result, got %+v", res)
	}
}
