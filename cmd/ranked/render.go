package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/GoCodeAlone/ranked/comms"
	"github.com/GoCodeAlone/ranked/task"
)

var (
	indexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5B8DEF")).
			Width(4).
			Align(lipgloss.Right)
	openStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE"))
	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777")).
			Strikethrough(true)
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))
)

// renderList draws tasks one per line, numbered from 1.
func renderList(tasks task.List) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("no tasks") + "\n"
	}
	var b strings.Builder
	for i, t := range tasks {
		box, style := "[ ]", openStyle
		if t.Completed {
			box, style = "[x]", doneStyle
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			indexStyle.Render(fmt.Sprintf("%d.", i+1)),
			" ", box, " ",
			style.Render(t.Text),
		))
		b.WriteString("\n")
	}
	return b.String()
}

func renderNotice(msg string) string {
	return noticeStyle.Render(msg)
}

// renderHistory draws one line per outcome.
func renderHistory(outcomes []comms.Outcome) string {
	if len(outcomes) == 0 {
		return mutedStyle.Render("no reorders yet") + "\n"
	}
	var b strings.Builder
	for _, o := range outcomes {
		result := "ok"
		switch {
		case o.UpstreamError != "":
			result = "upstream error"
		case o.Report.Fallback:
			result = "fallback"
		case len(o.Report.Omitted) > 0 || len(o.Report.Unrecognized) > 0:
			result = fmt.Sprintf("repaired (%d omitted, %d unrecognized)", len(o.Report.Omitted), len(o.Report.Unrecognized))
		}
		fmt.Fprintf(&b, "%s  %-7s %-9s %3d tasks  %5dms  %s\n",
			mutedStyle.Render(o.Timestamp.Local().Format(time.DateTime)),
			o.Kind, o.Provider, o.TaskCount, o.ElapsedMS, result)
	}
	return b.String()
}
