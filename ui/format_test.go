package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djrag/api"
	"djrag/health"
)

func TestFormatMetrics(t *testing.T) {
	tests := []struct {
		name    string
		metrics *api.Metrics
		want    string
	}{
		{"nil", nil, ""},
		{"fractional", &api.Metrics{Time: 1.2, TotalTokens: 350, Cost: 0.0004}, "⏱ 1.2s  🪙 350 tokens  💰 $0.0004"},
		{"whole numbers", &api.Metrics{Time: 3, TotalTokens: 10, Cost: 1}, "⏱ 3s  🪙 10 tokens  💰 $1"},
		{"zero", &api.Metrics{}, "⏱ 0s  🪙 0 tokens  💰 $0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMetrics(tt.metrics))
		})
	}
}

func TestFormatCitation(t *testing.T) {
	assert.Equal(t, "[1] report.pdf", FormatCitation(1, api.Source{Title: "report.pdf"}))
	assert.Equal(t, "[3] Untitled source", FormatCitation(3, api.Source{Title: "  "}))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "line one line two", Excerpt("line one\n\n  line two "))

	long := strings.Repeat("é", 200)
	got := Excerpt(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, excerptLen+1, len([]rune(got)))
}

func TestWordWrap(t *testing.T) {
	assert.Equal(t, "the quick\nbrown fox", wordWrap("the quick brown fox", 10))
	assert.Equal(t, "a\n\nb", wordWrap("a\n\nb", 10))
	assert.Equal(t, "unchanged text", wordWrap("unchanged text", 0))

	// A word longer than the width gets a line of its own.
	assert.Equal(t, "x\nsupercalifragilistic\ny", wordWrap("x supercalifragilistic y", 8))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "", truncate("abc", 0))
}

func TestFilterSessions(t *testing.T) {
	file := "q3-financials.xlsx"
	sessions := []api.Session{
		{ID: "1", Title: "Marketing plan"},
		{ID: "2", Title: "Spreadsheet review", FileName: &file},
		{ID: "3", Title: "Holiday schedule"},
	}

	assert.Len(t, filterSessions(sessions, ""), 3)

	got := filterSessions(sessions, "financials")
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	assert.Empty(t, filterSessions(sessions, "zzz"))
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		name                 string
		n, selected, maxRows int
		start, end           int
	}{
		{"fits", 5, 4, 10, 0, 5},
		{"top", 20, 2, 10, 0, 10},
		{"bottom", 20, 18, 10, 10, 20},
		{"middle", 20, 10, 10, 5, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := visibleWindow(tt.n, tt.selected, tt.maxRows)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestAddAttachment(t *testing.T) {
	var list []string
	list = addAttachment(list, "/a.pdf")
	list = addAttachment(list, "/b.txt")
	list = addAttachment(list, "/a.pdf")
	list = addAttachment(list, "")

	assert.Equal(t, []string{"/a.pdf", "/b.txt"}, list)
}

func TestHealthIndicator(t *testing.T) {
	assert.Contains(t, healthIndicator(health.Healthy, false), "online")
	assert.Contains(t, healthIndicator(health.Unreachable, false), "offline")
	assert.Contains(t, healthIndicator(health.Unknown, false), "checking")
	assert.Contains(t, healthIndicator(health.Healthy, true), "checking")
}

func TestFrameCodeBlocks(t *testing.T) {
	in := strings.Join([]string{
		"intro",
		"  " + codeBar + " fmt.Println(1)",
		"  " + codeBar + " return",
		"outro",
	}, "\n")

	out := stripANSI(frameCodeBlocks(in, 30))

	assert.NotContains(t, out, codeBar)
	assert.Contains(t, out, "[code]")
	assert.Contains(t, out, "fmt.Println(1)\nreturn")
	assert.True(t, strings.HasPrefix(out, "intro\n"))
	assert.True(t, strings.HasSuffix(out, "outro"))
}

func TestRenderMarkdown(t *testing.T) {
	out := stripANSI(RenderMarkdown("# Title\n\nSome **bold** text.", 60))

	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
}
