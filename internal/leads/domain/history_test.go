package domain

import (
	"testing"
	"time"
)

func TestPushScoreHistoryAppends(t *testing.T) {
	now := time.Now()
	history := PushScoreHistory(nil, ScoreHistoryEntry{Score: 40, Reason: "initial", RecordedAt: now})

	if len(history) != 1 {
		t.Fatalf("len = %d, want 1", len(history))
	}
	if history[0].Score != 40 || history[0].Reason != "initial" {
		t.Errorf("unexpected entry %+v", history[0])
	}
}

func TestPushScoreHistoryDropsOldestBeyondBound(t *testing.T) {
	now := time.Now()

	var history []ScoreHistoryEntry
	for i := 0; i < ScoreHistoryDepth+1; i++ {
		history = PushScoreHistory(history, ScoreHistoryEntry{Score: i, RecordedAt: now})
	}

	if len(history) != ScoreHistoryDepth {
		t.Fatalf("len = %d, want %d", len(history), ScoreHistoryDepth)
	}
	// Entry 0 was the oldest and must be gone; entry 1 is now first.
	if history[0].Score != 1 {
		t.Errorf("oldest retained score = %d, want 1", history[0].Score)
	}
	if history[len(history)-1].Score != ScoreHistoryDepth {
		t.Errorf("newest score = %d, want %d", history[len(history)-1].Score, ScoreHistoryDepth)
	}
}

func TestPushScoreHistoryDoesNotMutateInput(t *testing.T) {
	now := time.Now()
	original := []ScoreHistoryEntry{{Score: 10, RecordedAt: now}}

	_ = PushScoreHistory(original, ScoreHistoryEntry{Score: 20, RecordedAt: now})

	if len(original) != 1 || original[0].Score != 10 {
		t.Errorf("input slice mutated: %+v", original)
	}
}
