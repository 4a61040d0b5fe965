package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"quizpool-service/internal/domain"
)

// aggregatorFanOut bounds concurrent ledger reads per snapshot.
const aggregatorFanOut = 8

// Aggregator pulls all participant results for a quiz from the ledger. Each
// call takes a fresh snapshot; ordering follows the ledger's participant
// index order regardless of fetch concurrency.
type Aggregator struct {
	ledger  Ledger
	timeout time.Duration
}

func NewAggregator(ledger Ledger, timeout time.Duration) *Aggregator {
	return &Aggregator{ledger: ledger, timeout: timeout}
}

// Snapshot returns the results submitted so far, tagged with participant
// identity. The list can grow between calls as new submissions arrive.
func (a *Aggregator) Snapshot(ctx context.Context, quizID string) ([]domain.ParticipantResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	count, err := a.ledger.ParticipantCount(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("quiz %s participant count: %v: %w", quizID, err, domain.ErrDataUnavailable)
	}

	results := make([]domain.ParticipantResult, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregatorFanOut)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			participantID, err := a.ledger.Participant(gctx, quizID, i)
			if err != nil {
				return fmt.Errorf("quiz %s participant %d: %v: %w", quizID, i, err, domain.ErrDataUnavailable)
			}
			res, err := a.ledger.ParticipantResult(gctx, quizID, participantID)
			if err != nil {
				return fmt.Errorf("quiz %s result for %s: %v: %w", quizID, participantID, err, domain.ErrDataUnavailable)
			}
			results[i] = domain.ParticipantResult{ParticipantID: participantID, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
