package priority

import (
	"testing"

	"github.com/GoCodeAlone/ranked/task"
)

func TestScoreText(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Submit report ASAP", 3},
		{"CRITICAL bug", 3},
		{"Schedule meeting with Ann", 2},
		{"Follow up with vendor", 2},
		{"Read the RFC", 1},
		{"Think about vacation", 1},
		{"Wash dishes", 0},
		{"", 0},
		// tier 3 wins even when a lower tier also matches
		{"Urgent: call the plumber", 3},
		// substring containment, not word match: "know" contains "now"
		{"Get to know the team", 3},
	}
	for _, tt := range tests {
		if got := ScoreText(tt.text); got != tt.want {
			t.Errorf("ScoreText(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSuggestInsertionPoint(t *testing.T) {
	existing := task.List{
		{ID: "1", Text: "Deadline for taxes"}, // 3
		{ID: "2", Text: "Call mom"},           // 2
		{ID: "3", Text: "Read a novel"},       // 1
		{ID: "4", Text: "Wash dishes"},        // 0
	}
	tests := []struct {
		text string
		want int
	}{
		{"Urgent fix", 1},
		{"Email Bob", 2},
		{"Plan trip", 3},
		{"Buy socks", 4},
	}
	for _, tt := range tests {
		got := SuggestInsertionPoint(task.Task{Text: tt.text}, existing)
		if got != tt.want {
			t.Errorf("SuggestInsertionPoint(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSuggestInsertionPoint_Empty(t *testing.T) {
	if got := SuggestInsertionPoint(task.Task{Text: "anything urgent"}, nil); got != 0 {
		t.Errorf("empty list = %d, want 0", got)
	}
}
