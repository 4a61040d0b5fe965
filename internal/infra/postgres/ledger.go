package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizpool-service/internal/domain"
)

// Ledger is a Postgres-backed implementation of app.Ledger used as the
// development system of record. Quiz documents live as JSONB; results keep
// their submission order through an ordinal sequence; distributions are
// recorded append-only.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := l.loadQuizDoc(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Questions = nil
	return quiz, nil
}

func (l *Ledger) GetQuizQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	quiz, err := l.loadQuizDoc(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return quiz.Questions, nil
}

func (l *Ledger) loadQuizDoc(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (l *Ledger) SubmitResult(ctx context.Context, quizID, participantID string, result domain.Result) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO results (quiz_id, participant_id, passed, failed, points, grade)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (quiz_id, participant_id) DO NOTHING`,
		quizID, participantID, result.Passed, result.Failed, result.Points, result.Grade)
	if err != nil {
		return fmt.Errorf("submit result: %w", err)
	}
	return nil
}

func (l *Ledger) ParticipantCount(ctx context.Context, quizID string) (int, error) {
	var count int
	if err := l.pool.QueryRow(ctx, `SELECT count(*) FROM results WHERE quiz_id=$1`, quizID).Scan(&count); err != nil {
		return 0, fmt.Errorf("participant count: %w", err)
	}
	return count, nil
}

func (l *Ledger) Participant(ctx context.Context, quizID string, index int) (string, error) {
	var participantID string
	err := l.pool.QueryRow(ctx, `
		SELECT participant_id FROM results
		WHERE quiz_id=$1 ORDER BY ordinal OFFSET $2 LIMIT 1`,
		quizID, index).Scan(&participantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("participant %d: %w", index, domain.ErrDataUnavailable)
	}
	if err != nil {
		return "", fmt.Errorf("participant %d: %w", index, err)
	}
	return participantID, nil
}

func (l *Ledger) ParticipantResult(ctx context.Context, quizID, participantID string) (domain.Result, error) {
	var result domain.Result
	err := l.pool.QueryRow(ctx, `
		SELECT passed, failed, points, grade FROM results
		WHERE quiz_id=$1 AND participant_id=$2`,
		quizID, participantID).Scan(&result.Passed, &result.Failed, &result.Points, &result.Grade)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, fmt.Errorf("result for %s: %w", participantID, domain.ErrDataUnavailable)
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("result for %s: %w", participantID, err)
	}
	return result, nil
}

func (l *Ledger) Distribute(ctx context.Context, quizID string, participants []string, amounts []int64) error {
	if len(participants) != len(amounts) {
		return fmt.Errorf("participants/amounts length mismatch: %w", domain.ErrDistributionFailed)
	}
	rawParticipants, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	rawAmounts, err := json.Marshal(amounts)
	if err != nil {
		return fmt.Errorf("marshal amounts: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO distributions (quiz_id, participants, amounts)
		VALUES ($1, $2::jsonb, $3::jsonb)`,
		quizID, string(rawParticipants), string(rawAmounts))
	if err != nil {
		return fmt.Errorf("record distribution: %w", err)
	}
	return nil
}
