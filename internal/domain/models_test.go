package domain

import "testing"

func validTiers() []RewardTier {
	return []RewardTier{
		{Label: "60%-69%", Low: 60, High: 70, Amount: 10},
		{Label: "70%-79%", Low: 70, High: 80, Amount: 20},
		{Label: "80%-100%", Low: 80, High: 100, Amount: 50},
	}
}

func TestResolveTierBoundaries(t *testing.T) {
	tiers := validTiers()

	cases := []struct {
		grade  float64
		amount int64
		ok     bool
	}{
		{0, 0, false},
		{59.99, 0, false},
		{60, 10, true},
		{69.99, 10, true},
		{70, 20, true},
		{75, 20, true},
		{80, 50, true},
		{99.99, 50, true},
		{100, 50, true},
	}
	for _, c := range cases {
		tier, ok := ResolveTier(tiers, c.grade)
		if ok != c.ok {
			t.Fatalf("grade %v: expected ok=%v, got %v", c.grade, c.ok, ok)
		}
		if ok && tier.Amount != c.amount {
			t.Fatalf("grade %v: expected amount %d, got %d", c.grade, c.amount, tier.Amount)
		}
	}
}

func TestValidateTiers(t *testing.T) {
	if err := ValidateTiers(validTiers()); err != nil {
		t.Fatalf("valid tiers rejected: %v", err)
	}

	bad := [][]RewardTier{
		nil,
		{{Low: 60, High: 70, Amount: 10}}, // top tier not closed at 100
		{{Low: 60, High: 70, Amount: 10}, {Low: 75, High: 100, Amount: 20}}, // gap
		{{Low: 60, High: 65, Amount: 10}, {Low: 63, High: 100, Amount: 20}}, // overlap
		{{Low: 70, High: 60, Amount: 10}},                                   // inverted range
		{{Low: 60, High: 100, Amount: 0}},                                   // zero payout
		{{Low: -5, High: 100, Amount: 10}},                                  // negative bound
	}
	for i, tiers := range bad {
		if err := ValidateTiers(tiers); err != ErrInvalidTierConfig {
			t.Fatalf("case %d: expected ErrInvalidTierConfig, got %v", i, err)
		}
	}
}

func TestNewResultInvariants(t *testing.T) {
	res := NewResult(3, 4)
	if res.Passed != 3 || res.Failed != 1 {
		t.Fatalf("expected 3 passed 1 failed, got %+v", res)
	}
	if res.Points != 3*PointsPerQuestion {
		t.Fatalf("expected %d points, got %d", 3*PointsPerQuestion, res.Points)
	}
	if res.Grade != 75.0 {
		t.Fatalf("expected grade 75.0, got %v", res.Grade)
	}

	zero := NewResult(0, 0)
	if zero.Grade != 0 || zero.Points != 0 {
		t.Fatalf("empty quiz should grade zero, got %+v", zero)
	}

	perfect := NewResult(4, 4)
	if perfect.Grade != 100.0 || perfect.Failed != 0 {
		t.Fatalf("expected perfect grade, got %+v", perfect)
	}
}

func TestCorrectTextOutOfRange(t *testing.T) {
	q := Question{Options: []string{"a", "b"}, CorrectOption: 5}
	if got := q.CorrectText(); got != "" {
		t.Fatalf("expected empty correct text, got %q", got)
	}
}

func TestTopTierAmount(t *testing.T) {
	if got := TopTierAmount(validTiers()); got != 50 {
		t.Fatalf("expected top tier 50, got %d", got)
	}
	if got := TopTierAmount(nil); got != 0 {
		t.Fatalf("expected 0 for empty tiers, got %d", got)
	}
}
