package domain

import "errors"

var (
	// ErrQuizNotFound indicates the ledger has no quiz under the given id.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a participant acts before entering a quiz.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrDataUnavailable indicates the ledger could not be reached; the
	// session stays in Loading and the call may be retried.
	ErrDataUnavailable = errors.New("ledger data unavailable")
	// ErrSessionNotStarted is returned for answer/move/submit calls while a
	// session is still Loading.
	ErrSessionNotStarted = errors.New("session not started")
	// ErrAlreadySubmitted is returned when a session has already passed its
	// one-way submission transition.
	ErrAlreadySubmitted = errors.New("session already submitted")
	// ErrSubmissionFailed indicates the result dispatch failed after
	// grading; the graded result is kept and the dispatch may be retried.
	ErrSubmissionFailed = errors.New("result submission failed")
	// ErrDistributionFailed indicates the distribute call failed after the
	// payout latch was set; the quiz is left distribution-pending.
	ErrDistributionFailed = errors.New("reward distribution failed")
	// ErrDistributionNotPending is returned when a distribution retry is
	// requested but no distribution is owed.
	ErrDistributionNotPending = errors.New("no pending distribution")
	// ErrInvalidTierConfig indicates overlapping or non-monotonic reward
	// tiers; fatal at load time, before settlement can run.
	ErrInvalidTierConfig = errors.New("invalid reward tier configuration")
)
