package app

import (
	"context"
	"fmt"
	"time"

	"quizpool-service/internal/domain"
)

// Dispatcher sends graded results to the ledger. The session engine
// guarantees at most one Dispatch per session; the dispatcher's own job is
// bounding the call and classifying failures as retryable.
type Dispatcher struct {
	ledger  Ledger
	timeout time.Duration
}

func NewDispatcher(ledger Ledger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{ledger: ledger, timeout: timeout}
}

// Dispatch submits one result. On failure the caller keeps the graded
// result and may retry without re-grading.
func (d *Dispatcher) Dispatch(ctx context.Context, quizID, participantID string, result domain.Result) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.ledger.SubmitResult(ctx, quizID, participantID, result); err != nil {
		return fmt.Errorf("quiz %s participant %s: %v: %w", quizID, participantID, err, domain.ErrSubmissionFailed)
	}
	return nil
}
