package app

import (
	"context"
	"log"
	"math/rand"
	"time"

	"quizpool-service/internal/domain"
)

// SessionRepository abstracts how sessions are stored, keyed by
// (quiz, participant). The created flag distinguishes a fresh session from
// a resumed one.
type SessionRepository interface {
	GetOrCreate(quizID, participantID string) (*Session, bool)
	Get(quizID, participantID string) (*Session, bool)
	Delete(quizID, participantID string)
}

// QuizRepository loads quiz content, usually through a cache in front of
// the question set loader.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionService owns the quiz session engine use cases: entering a quiz,
// moving the cursor, answering, and the two submission paths.
type SessionService struct {
	sessions   SessionRepository
	quizzes    QuizRepository
	dispatcher *Dispatcher
	perm       func(n int) []int
	newTicker  func() (<-chan time.Time, func())
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository, dispatcher *Dispatcher) *SessionService {
	return &SessionService{
		sessions:   sessions,
		quizzes:    quizzes,
		dispatcher: dispatcher,
		perm:       rand.Perm,
		newTicker: func() (<-chan time.Time, func()) {
			t := time.NewTicker(time.Second)
			return t.C, t.Stop
		},
	}
}

// NewSessionServiceWithClock is test-only: it allows a deterministic
// shuffle permutation and a manual tick source.
func NewSessionServiceWithClock(sessions SessionRepository, quizzes QuizRepository, dispatcher *Dispatcher,
	perm func(n int) []int, newTicker func() (<-chan time.Time, func())) *SessionService {
	svc := NewSessionService(sessions, quizzes, dispatcher)
	if perm != nil {
		svc.perm = perm
	}
	if newTicker != nil {
		svc.newTicker = newTicker
	}
	return svc
}

// Enter creates or resumes the participant's session. On the first
// successful load the question order is shuffled once and the countdown
// starts; a resumed session never reshuffles. A ledger failure leaves the
// session in Loading and returns a retryable error.
func (svc *SessionService) Enter(ctx context.Context, quizID, participantID string) (*Session, error) {
	session, _ := svc.sessions.GetOrCreate(quizID, participantID)
	if session.State() != StateLoading {
		return session, nil
	}

	quiz, err := svc.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return session, err
	}

	if session.start(quiz, svc.perm) {
		go svc.runClock(session)
	}
	return session, nil
}

// Current returns the question under the participant's cursor.
func (svc *SessionService) Current(quizID, participantID string) (QuestionView, error) {
	session, ok := svc.sessions.Get(quizID, participantID)
	if !ok {
		return QuestionView{}, domain.ErrSessionNotFound
	}
	return session.Current()
}

// Move shifts the cursor forward or backward, clamped at the ends.
func (svc *SessionService) Move(quizID, participantID string, delta int) (QuestionView, error) {
	session, ok := svc.sessions.Get(quizID, participantID)
	if !ok {
		return QuestionView{}, domain.ErrSessionNotFound
	}
	return session.Move(delta)
}

// Answer records the option selected for the current question.
func (svc *SessionService) Answer(quizID, participantID, option string) (QuestionView, error) {
	session, ok := svc.sessions.Get(quizID, participantID)
	if !ok {
		return QuestionView{}, domain.ErrSessionNotFound
	}
	return session.SetAnswer(option)
}

// Submit is the explicit submission path. It races the timer-expiry path
// on the session's submission flag; whichever wins runs the single
// submission routine, the loser observes already-submitted.
func (svc *SessionService) Submit(ctx context.Context, quizID, participantID string) (domain.Result, error) {
	session, ok := svc.sessions.Get(quizID, participantID)
	if !ok {
		return domain.Result{}, domain.ErrSessionNotFound
	}
	if session.State() == StateLoading {
		return domain.Result{}, domain.ErrSessionNotStarted
	}
	if !session.beginSubmit() {
		if res, ok := session.Result(); ok {
			return res, domain.ErrAlreadySubmitted
		}
		return domain.Result{}, domain.ErrAlreadySubmitted
	}
	return svc.finish(ctx, session)
}

// RetrySubmit re-dispatches a graded result after a submission failure.
// The result is never re-graded.
func (svc *SessionService) RetrySubmit(ctx context.Context, quizID, participantID string) error {
	session, ok := svc.sessions.Get(quizID, participantID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !session.needsDispatch() {
		if _, graded := session.Result(); graded {
			return nil
		}
		return domain.ErrSessionNotStarted
	}
	res, _ := session.Result()
	if err := svc.dispatcher.Dispatch(ctx, quizID, participantID, res); err != nil {
		return err
	}
	session.markDispatched()
	return nil
}

// Subscribe returns a channel of session updates (ticks and transitions).
func (svc *SessionService) Subscribe(quizID, participantID string) (<-chan SessionUpdate, func(), error) {
	session, ok := svc.sessions.Get(quizID, participantID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Abandon tears the session down without submitting, e.g. when an
// organizer cancels a quiz. Outstanding clock work is stopped, not awaited.
func (svc *SessionService) Abandon(quizID, participantID string) {
	session, ok := svc.sessions.Get(quizID, participantID)
	if !ok {
		return
	}
	session.stop()
	svc.sessions.Delete(quizID, participantID)
}

// runClock drives the countdown at a fixed one-second cadence and forces
// submission through the same routine the explicit path uses.
func (svc *SessionService) runClock(session *Session) {
	ticks, stop := svc.newTicker()
	defer stop()
	for {
		select {
		case <-session.done:
			return
		case <-ticks:
			if session.tick() {
				if session.beginSubmit() {
					if _, err := svc.finish(context.Background(), session); err != nil {
						log.Printf("session %s/%s: timer submission: %v",
							session.QuizID(), session.ParticipantID(), err)
					}
				}
				return
			}
		}
	}
}

// finish is the single submission routine both trigger paths converge on.
// The caller must have won beginSubmit. Grading happens exactly once; the
// dispatcher is called at most once, and a failed dispatch keeps the graded
// result for retry.
func (svc *SessionService) finish(ctx context.Context, session *Session) (domain.Result, error) {
	res := session.grade()
	if err := svc.dispatcher.Dispatch(ctx, session.QuizID(), session.ParticipantID(), res); err != nil {
		return res, err
	}
	session.markDispatched()
	return res, nil
}
