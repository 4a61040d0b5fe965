package app

import (
	"sync"
	"time"

	"quizpool-service/internal/domain"
)

// SessionState is the lifecycle phase of one participant's attempt.
type SessionState string

const (
	StateLoading    SessionState = "loading"
	StateInProgress SessionState = "in_progress"
	StateSubmitted  SessionState = "submitted"
	StateGraded     SessionState = "graded"
)

// SessionUpdate is the snapshot pushed to subscribers on every clock tick
// and state transition.
type SessionUpdate struct {
	State     SessionState `json:"state"`
	Cursor    int          `json:"cursor"`
	Remaining int          `json:"remaining"`
	Answered  int          `json:"answered"`
}

// QuestionView is the current question as shown to the participant: the
// correct option is never exposed.
type QuestionView struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Text    string   `json:"text"`
	Image   string   `json:"image"`
	Options []string `json:"options"`
	// Selected is the option text previously chosen for this question, if any.
	Selected string `json:"selected,omitempty"`
}

// Session is one participant's attempt at one quiz. The question order is a
// permutation computed once when the session starts and fixed for its
// lifetime; re-reads never reshuffle. The submission flag is a one-way
// latch: once set, no answer mutation or retiming is permitted.
type Session struct {
	quizID        string
	participantID string
	now           func() time.Time

	mu          sync.Mutex
	state       SessionState
	quiz        domain.Quiz
	order       []int
	answers     map[int]string
	cursor      int
	remaining   int
	submitted   bool
	dispatched  bool
	result      *domain.Result
	subscribers map[chan SessionUpdate]struct{}
	done        chan struct{}
}

// NewSession is exported for stores that need to seed sessions.
func NewSession(quizID, participantID string) *Session {
	return NewSessionWithClock(quizID, participantID, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(quizID, participantID string, now func() time.Time) *Session {
	return &Session{
		quizID:        quizID,
		participantID: participantID,
		now:           now,
		state:         StateLoading,
		answers:       make(map[int]string),
		subscribers:   make(map[chan SessionUpdate]struct{}),
		done:          make(chan struct{}),
	}
}

func (s *Session) QuizID() string        { return s.quizID }
func (s *Session) ParticipantID() string { return s.participantID }

// State returns the current lifecycle phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Quiz returns the loaded quiz definition.
func (s *Session) Quiz() domain.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz
}

// Remaining returns the countdown value in seconds.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Result returns the graded result once the session has been graded.
func (s *Session) Result() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.Result{}, false
	}
	return *s.result, true
}

// start transitions Loading -> InProgress with a fixed shuffle permutation.
// A second call is a no-op so re-entry resumes the existing attempt.
func (s *Session) start(quiz domain.Quiz, perm func(n int) []int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading {
		return false
	}
	s.quiz = quiz
	s.order = perm(len(quiz.Questions))
	s.remaining = quiz.DurationSeconds
	s.state = StateInProgress
	s.broadcastLocked()
	return true
}

// Current returns the question under the cursor in shuffled order.
func (s *Session) Current() (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading {
		return QuestionView{}, domain.ErrSessionNotStarted
	}
	return s.viewLocked(s.cursor), nil
}

func (s *Session) viewLocked(idx int) QuestionView {
	q := s.quiz.Questions[s.order[idx]]
	return QuestionView{
		Index:    idx,
		Total:    len(s.order),
		Text:     q.Text,
		Image:    q.Image,
		Options:  q.Options,
		Selected: s.answers[idx],
	}
}

// Move shifts the cursor by delta, clamped to [0, questionCount-1].
func (s *Session) Move(delta int) (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading {
		return QuestionView{}, domain.ErrSessionNotStarted
	}
	if s.submitted {
		return QuestionView{}, domain.ErrAlreadySubmitted
	}
	next := s.cursor + delta
	if next < 0 {
		next = 0
	}
	if max := len(s.order) - 1; next > max {
		next = max
	}
	s.cursor = next
	return s.viewLocked(s.cursor), nil
}

// SetAnswer records or overwrites the answer for the current question by
// the option value actually shown.
func (s *Session) SetAnswer(option string) (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading {
		return QuestionView{}, domain.ErrSessionNotStarted
	}
	if s.submitted {
		return QuestionView{}, domain.ErrAlreadySubmitted
	}
	s.answers[s.cursor] = option
	return s.viewLocked(s.cursor), nil
}

// tick decrements the countdown by one second and reports whether it
// reached zero. Ticks after submission are ignored.
func (s *Session) tick() (expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress || s.submitted {
		return false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	s.broadcastLocked()
	return s.remaining == 0
}

// beginSubmit is the single atomic check-and-set on the submission flag.
// The explicit-submit and timer-expiry paths both call it; the first caller
// wins, the second observes already-submitted and performs no further action.
func (s *Session) beginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading || s.submitted {
		return false
	}
	s.submitted = true
	s.state = StateSubmitted
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.broadcastLocked()
	return true
}

// grade computes the result from the fixed shuffled order and the answer
// mapping. Unanswered questions count as failed; comparison is by the
// option value shown, never by a stale index.
func (s *Session) grade() domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	passed := 0
	for idx := range s.order {
		q := s.quiz.Questions[s.order[idx]]
		if sel, ok := s.answers[idx]; ok && sel == q.CorrectText() {
			passed++
		}
	}
	res := domain.NewResult(passed, len(s.order))
	s.result = &res
	s.state = StateGraded
	s.broadcastLocked()
	return res
}

// markDispatched records that the graded result reached the ledger, so a
// retry is a no-op instead of a second submission.
func (s *Session) markDispatched() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched = true
}

func (s *Session) needsDispatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil && !s.dispatched
}

// stop abandons the session clock without submitting, for teardown.
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Subscribe returns a channel receiving session updates. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan SessionUpdate, func()) {
	ch := make(chan SessionUpdate, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.updateLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	update := s.updateLocked()
	for ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			// Drop the stale update so a slow client never blocks the clock.
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

func (s *Session) updateLocked() SessionUpdate {
	return SessionUpdate{
		State:     s.state,
		Cursor:    s.cursor,
		Remaining: s.remaining,
		Answered:  len(s.answers),
	}
}
