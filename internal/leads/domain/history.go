package domain

import "time"

// ScoreHistoryDepth bounds the per-lead AI score history. Pushing beyond the
// bound silently drops the oldest entries.
const ScoreHistoryDepth = 10

// ScoreHistoryEntry records one prior AI score with the reason it changed.
type ScoreHistoryEntry struct {
	Score      int       `json:"score"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recordedAt"`
}

// PushScoreHistory appends an entry and trims to the newest ScoreHistoryDepth
// entries. The input slice is not mutated.
func PushScoreHistory(history []ScoreHistoryEntry, entry ScoreHistoryEntry) []ScoreHistoryEntry {
	out := make([]ScoreHistoryEntry, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, entry)

	if len(out) > ScoreHistoryDepth {
		out = out[len(out)-ScoreHistoryDepth:]
	}
	return out
}
