package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quizpool-service/internal/domain"
)

// SettlementStore persists per-quiz settlement state and owns the
// distribution latch. TryLatch must be atomic: exactly one caller per quiz
// ever wins it, across every recomputation.
type SettlementStore interface {
	Save(ctx context.Context, state domain.SettlementState) error
	Load(ctx context.Context, quizID string) (domain.SettlementState, bool, error)
	TryLatch(ctx context.Context, quizID string) (bool, error)
}

// SettlementEngine computes tiered rewards over aggregator snapshots,
// tracks the remaining pool and decides the irreversible payout. All
// snapshot-compute-decide-trigger sequences for one quiz run under a
// per-quiz mutex; quizzes are settled independently and in parallel.
type SettlementEngine struct {
	aggregator *Aggregator
	store      SettlementStore
	ledger     Ledger
	timeout    time.Duration
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	// distributed records ledger-acknowledged payouts, so a retry after a
	// failed phase save never pays the same quiz twice.
	distributed map[string]bool
}

func NewSettlementEngine(aggregator *Aggregator, store SettlementStore, ledger Ledger, timeout time.Duration) *SettlementEngine {
	return &SettlementEngine{
		aggregator:  aggregator,
		store:       store,
		ledger:      ledger,
		timeout:     timeout,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
		distributed: make(map[string]bool),
	}
}

func (e *SettlementEngine) quizLock(quizID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[quizID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[quizID] = lock
	}
	return lock
}

// Settle runs one settlement pass for the quiz: snapshot the results,
// resolve each grade against the tiers, persist winners and remaining pool,
// then trigger distribution iff the remaining pool no longer covers another
// top-tier winner and the latch has not been won before.
//
// The returned state is valid even when the error is non-nil: a failed
// distribute call leaves the quiz distribution-pending, never rolls the
// latch back. Phase saves after the latch is won are load-bearing and their
// failures are returned, never swallowed: a pending-phase save failure keeps
// the payout owed (the next pass resumes it), and a done-phase save failure
// is finished by RetryDistribution without paying again.
func (e *SettlementEngine) Settle(ctx context.Context, quiz domain.Quiz) (domain.SettlementState, error) {
	if err := domain.ValidateTiers(quiz.Tiers); err != nil {
		return domain.SettlementState{}, fmt.Errorf("quiz %s: %w", quiz.ID, err)
	}

	lock := e.quizLock(quiz.ID)
	lock.Lock()
	defer lock.Unlock()

	snapshot, err := e.aggregator.Snapshot(ctx, quiz.ID)
	if err != nil {
		return domain.SettlementState{}, err
	}

	state := computeSettlement(quiz, snapshot)
	state.ComputedAt = e.now()

	if prev, ok, err := e.store.Load(ctx, quiz.ID); err != nil {
		return state, fmt.Errorf("quiz %s settlement state: %v: %w", quiz.ID, err, domain.ErrDataUnavailable)
	} else if ok {
		state.Distribution = prev.Distribution
	}

	// Audit record first: winners and remaining survive even when the
	// distribution decision below is skipped or fails.
	if err := e.store.Save(ctx, state); err != nil {
		return state, fmt.Errorf("quiz %s settlement save: %v: %w", quiz.ID, err, domain.ErrDataUnavailable)
	}

	if state.Distribution != domain.DistributionNone {
		return state, nil
	}
	if state.Remaining > domain.TopTierAmount(quiz.Tiers) {
		return state, nil
	}

	// A lost latch with the phase still none means an earlier pass failed
	// between winning the latch and persisting the pending phase: the payout
	// is owed, and this pass resumes it. Any pass that got further than that
	// left the phase pending or done and was caught above.
	if _, err := e.store.TryLatch(ctx, quiz.ID); err != nil {
		return state, fmt.Errorf("quiz %s latch: %v: %w", quiz.ID, err, domain.ErrDataUnavailable)
	}

	state.Distribution = domain.DistributionPending
	if err := e.store.Save(ctx, state); err != nil {
		// Latch set, phase still none; the next pass re-enters here.
		return state, fmt.Errorf("quiz %s settlement save: %v: %w", quiz.ID, err, domain.ErrDataUnavailable)
	}

	if err := e.distribute(ctx, quiz.ID, state.Winners); err != nil {
		// Latch stays set: the quiz is distribution-owed, not eligible again.
		return state, err
	}
	e.markDistributed(quiz.ID)

	state.Distribution = domain.DistributionDone
	if err := e.store.Save(ctx, state); err != nil {
		// Paid but still recorded pending; RetryDistribution finishes the
		// phase without paying again.
		return state, fmt.Errorf("quiz %s settlement save: %v: %w", quiz.ID, err, domain.ErrDataUnavailable)
	}
	log.Printf("settlement quiz %s: distributed %d rewards, remaining pool %d", quiz.ID, len(state.Winners), state.Remaining)
	return state, nil
}

// RetryDistribution re-triggers a payout that failed after the latch was
// set. It resumes as "distribution owed": the persisted winners list is
// replayed as-is, never recomputed.
func (e *SettlementEngine) RetryDistribution(ctx context.Context, quizID string) (domain.SettlementState, error) {
	lock := e.quizLock(quizID)
	lock.Lock()
	defer lock.Unlock()

	state, ok, err := e.store.Load(ctx, quizID)
	if err != nil {
		return domain.SettlementState{}, fmt.Errorf("quiz %s settlement state: %v: %w", quizID, err, domain.ErrDataUnavailable)
	}
	if !ok || state.Distribution != domain.DistributionPending {
		return state, domain.ErrDistributionNotPending
	}

	// Skip the transfer if the ledger already acknowledged it and only the
	// done-phase save is outstanding.
	if !e.alreadyDistributed(quizID) {
		if err := e.distribute(ctx, quizID, state.Winners); err != nil {
			return state, err
		}
		e.markDistributed(quizID)
	}

	state.Distribution = domain.DistributionDone
	if err := e.store.Save(ctx, state); err != nil {
		return state, fmt.Errorf("quiz %s settlement save: %v: %w", quizID, err, domain.ErrDataUnavailable)
	}
	return state, nil
}

func (e *SettlementEngine) markDistributed(quizID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.distributed[quizID] = true
}

func (e *SettlementEngine) alreadyDistributed(quizID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.distributed[quizID]
}

// State returns the last persisted settlement state for observability.
func (e *SettlementEngine) State(ctx context.Context, quizID string) (domain.SettlementState, bool, error) {
	return e.store.Load(ctx, quizID)
}

func (e *SettlementEngine) distribute(ctx context.Context, quizID string, winners []domain.Winner) error {
	participants := make([]string, len(winners))
	amounts := make([]int64, len(winners))
	for i, w := range winners {
		participants[i] = w.ParticipantID
		amounts[i] = w.Amount
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.ledger.Distribute(ctx, quizID, participants, amounts); err != nil {
		return fmt.Errorf("quiz %s: %v: %w", quizID, err, domain.ErrDistributionFailed)
	}
	return nil
}

// computeSettlement resolves each result against the tier list in snapshot
// order. Grades below the lowest tier match nothing and leave the pool
// untouched. The computation is pure: the same snapshot always yields the
// same winners and remaining value.
func computeSettlement(quiz domain.Quiz, snapshot []domain.ParticipantResult) domain.SettlementState {
	state := domain.SettlementState{
		QuizID:       quiz.ID,
		TotalPool:    quiz.TotalPool,
		Remaining:    quiz.TotalPool,
		Winners:      make([]domain.Winner, 0, len(snapshot)),
		Distribution: domain.DistributionNone,
	}
	for _, r := range snapshot {
		tier, ok := domain.ResolveTier(quiz.Tiers, r.Grade)
		if !ok {
			continue
		}
		state.Winners = append(state.Winners, domain.Winner{ParticipantID: r.ParticipantID, Amount: tier.Amount})
		state.Remaining -= tier.Amount
	}
	return state
}
