package app

import (
	"context"

	"quizpool-service/internal/domain"
)

// Ledger is the external system of record for quiz data, submissions and
// fund transfers. All calls are network-bound and fallible; the core wraps
// each one with a configured timeout and never blocks on it indefinitely.
type Ledger interface {
	// GetQuiz returns quiz metadata including reward tiers, without questions.
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// GetQuizQuestions returns the quiz's ordered question bank.
	GetQuizQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	// SubmitResult records one participant's graded result.
	SubmitResult(ctx context.Context, quizID, participantID string, result domain.Result) error
	// ParticipantCount returns how many results have been submitted so far.
	ParticipantCount(ctx context.Context, quizID string) (int, error)
	// Participant returns the participant id at the given submission index.
	Participant(ctx context.Context, quizID string, index int) (string, error)
	// ParticipantResult returns the stored result for one participant.
	ParticipantResult(ctx context.Context, quizID, participantID string) (domain.Result, error)
	// Distribute transfers the awarded amounts; participants and amounts
	// must have equal length. Irreversible once acknowledged.
	Distribute(ctx context.Context, quizID string, participants []string, amounts []int64) error
}
