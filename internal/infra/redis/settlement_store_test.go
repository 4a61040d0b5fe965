package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizpool-service/internal/domain"
)

func TestSettlementStoreSaveLoad(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSettlementStore(client)
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "quiz-1"); ok || err != nil {
		t.Fatalf("expected no state yet, ok=%v err=%v", ok, err)
	}

	state := domain.SettlementState{
		QuizID:       "quiz-1",
		TotalPool:    100,
		Remaining:    10,
		Winners:      []domain.Winner{{ParticipantID: "p1", Amount: 20}, {ParticipantID: "p2", Amount: 50}},
		Distribution: domain.DistributionDone,
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, ok, err := store.Load(ctx, "quiz-1")
	if err != nil || !ok {
		t.Fatalf("load failed, ok=%v err=%v", ok, err)
	}
	if loaded.Remaining != 10 || loaded.Distribution != domain.DistributionDone {
		t.Fatalf("unexpected state %+v", loaded)
	}
	if len(loaded.Winners) != 2 || loaded.Winners[1].Amount != 50 {
		t.Fatalf("unexpected winners %+v", loaded.Winners)
	}
}

func TestSettlementStoreLatchAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	// Two store instances share the same latch key.
	first := NewSettlementStore(client)
	second := NewSettlementStore(client)

	won, err := first.TryLatch(ctx, "quiz-1")
	if err != nil || !won {
		t.Fatalf("expected first instance to win, won=%v err=%v", won, err)
	}
	won, err = second.TryLatch(ctx, "quiz-1")
	if err != nil || won {
		t.Fatalf("expected second instance to lose, won=%v err=%v", won, err)
	}
}
