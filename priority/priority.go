// Package priority scores task text by keyword and suggests where a new task belongs.
// It is the local ordering used when the remote model cannot be reached.
package priority

import (
	"strings"

	"github.com/GoCodeAlone/ranked/task"
)

// Tiers are checked highest first; the first tier with a matching keyword wins.
var tiers = []struct {
	score    int
	keywords []string
}{
	{3, []string{"urgent", "important", "asap", "deadline", "critical", "must", "immediate", "now"}},
	{2, []string{"meeting", "call", "appointment", "schedule", "tomorrow", "follow up", "email"}},
	{1, []string{"optional", "later", "research", "read", "plan", "think about", "consider"}},
}

// ScoreText returns 3, 2, 1 or 0 by case-insensitive substring match.
func ScoreText(text string) int {
	lower := strings.ToLower(text)
	for _, tier := range tiers {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return tier.score
			}
		}
	}
	return 0
}

// SuggestInsertionPoint returns the index of the first existing task that scores
// strictly lower than newTask, or len(existing) when none does.
func SuggestInsertionPoint(newTask task.Task, existing task.List) int {
	score := ScoreText(newTask.Text)
	for i, t := range existing {
		if score > ScoreText(t.Text) {
			return i
		}
	}
	return len(existing)
}
