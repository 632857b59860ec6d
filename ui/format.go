package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"djrag/api"
)

const excerptLen = 160

// FormatMetrics renders the answer cost line, e.g.
// "⏱ 1.2s  🪙 350 tokens  💰 $0.0004".
func FormatMetrics(m *api.Metrics) string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("⏱ %ss  🪙 %d tokens  💰 $%s",
		strconv.FormatFloat(m.Time, 'f', -1, 64),
		m.TotalTokens,
		strconv.FormatFloat(m.Cost, 'f', -1, 64),
	)
}

// FormatCitation renders "[n] title"; n is 1-based.
func FormatCitation(n int, src api.Source) string {
	title := strings.TrimSpace(src.Title)
	if title == "" {
		title = "Untitled source"
	}
	return fmt.Sprintf("[%d] %s", n, title)
}

// Excerpt flattens content to one line of at most excerptLen runes.
func Excerpt(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= excerptLen {
		return flat
	}
	return strings.TrimSpace(string(runes[:excerptLen])) + "…"
}

func formatClock(ts api.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format("[15:04]")
}

func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}
