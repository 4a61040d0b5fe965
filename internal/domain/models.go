package domain

import "time"

// PointsPerQuestion is the fixed point value awarded per correct answer.
const PointsPerQuestion = 10

// Quiz is the immutable quiz definition read from the ledger: metadata,
// prize pool, entrance fee, duration and the ordered reward tiers.
// Amounts are in the smallest ledger unit.
type Quiz struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Image           string       `json:"image"`
	EntranceFee     int64        `json:"entranceFee"`
	TotalPool       int64        `json:"totalPool"`
	DurationSeconds int          `json:"durationSeconds"`
	Tiers           []RewardTier `json:"tiers"`
	Questions       []Question   `json:"questions,omitempty"`
}

// Question is an MCQ with one designated correct option. Never mutated
// after creation.
type Question struct {
	Text          string   `json:"text"`
	Image         string   `json:"image"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
}

// CorrectText returns the text of the designated correct option. Grading
// compares against this value, not against a display index.
func (q Question) CorrectText() string {
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectOption]
}

// RewardTier maps the grade range [Low, High) to a fixed payout. The top
// tier is closed at 100.
type RewardTier struct {
	Label  string  `json:"label"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Amount int64   `json:"amount"`
}

// Matches reports whether grade falls inside the tier. top marks the last
// tier, whose upper bound is inclusive.
func (t RewardTier) Matches(grade float64, top bool) bool {
	if grade < t.Low {
		return false
	}
	if top {
		return grade <= t.High
	}
	return grade < t.High
}

// ValidateTiers checks that tiers are contiguous, non-overlapping and
// monotonic, with the top tier closed at 100. A quiz with an invalid tier
// configuration must never reach the settlement engine.
func ValidateTiers(tiers []RewardTier) error {
	if len(tiers) == 0 {
		return ErrInvalidTierConfig
	}
	for i, t := range tiers {
		if t.Low < 0 || t.High > 100 || t.Low >= t.High {
			return ErrInvalidTierConfig
		}
		if t.Amount <= 0 {
			return ErrInvalidTierConfig
		}
		if i > 0 && tiers[i-1].High != t.Low {
			return ErrInvalidTierConfig
		}
	}
	if tiers[len(tiers)-1].High != 100 {
		return ErrInvalidTierConfig
	}
	return nil
}

// ResolveTier returns the first tier matching grade, or ok=false when the
// grade is below the lowest bound.
func ResolveTier(tiers []RewardTier, grade float64) (RewardTier, bool) {
	for i, t := range tiers {
		if t.Matches(grade, i == len(tiers)-1) {
			return t, true
		}
	}
	return RewardTier{}, false
}

// TopTierAmount returns the payout of the highest tier; the distribution
// threshold compares the remaining pool against it.
func TopTierAmount(tiers []RewardTier) int64 {
	if len(tiers) == 0 {
		return 0
	}
	return tiers[len(tiers)-1].Amount
}

// Result is the graded outcome of one session, produced exactly once at
// submission and immutable thereafter.
type Result struct {
	Passed int     `json:"passed"`
	Failed int     `json:"failed"`
	Points int     `json:"points"`
	Grade  float64 `json:"grade"`
}

// NewResult derives the result from the pass/total counts.
// passed + failed == total and grade == passed/total*100 hold exactly.
func NewResult(passed, total int) Result {
	grade := 0.0
	if total > 0 {
		grade = float64(passed) / float64(total) * 100
	}
	return Result{
		Passed: passed,
		Failed: total - passed,
		Points: passed * PointsPerQuestion,
		Grade:  grade,
	}
}

// ParticipantResult tags a submitted Result with participant identity, in
// the order the ledger reports participants.
type ParticipantResult struct {
	ParticipantID string `json:"participantId"`
	Result
}

// Winner is one (participant, awarded amount) settlement record.
type Winner struct {
	ParticipantID string `json:"participantId"`
	Amount        int64  `json:"amount"`
}

// DistributionPhase tracks the one-way payout latch. Pending means the
// latch is set but the distribute call has not been acknowledged; it never
// rolls back to None.
type DistributionPhase string

const (
	DistributionNone    DistributionPhase = "none"
	DistributionPending DistributionPhase = "pending"
	DistributionDone    DistributionPhase = "done"
)

// SettlementState is the per-quiz audit record: winners, remaining pool and
// the distribution phase. It is persisted on every recomputation, before
// any distribution decision.
type SettlementState struct {
	QuizID       string            `json:"quizId"`
	TotalPool    int64             `json:"totalPool"`
	Remaining    int64             `json:"remaining"`
	Winners      []Winner          `json:"winners"`
	Distribution DistributionPhase `json:"distribution"`
	ComputedAt   time.Time         `json:"computedAt"`
}
