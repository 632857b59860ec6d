package ui

import (
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"djrag/logger"
)

const codeBar = "┃"

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// RenderMarkdown renders content for a terminal of the given width.
func RenderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}

	// Links become bare URLs so the terminal can make them clickable.
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	return postProcessMarkdown(strings.TrimRight(string(rendered), "\n"), width)
}

func (a AppView) renderMarkdownAsync(id int64, content string, width int) tea.Cmd {
	return func() tea.Msg {
		rendered := RenderMarkdown(content, width)
		logger.With("ui").Debug().Int64("message", id).Int("chars", len(content)).Msg("markdown rendered")
		return markdownRenderedMsg{MessageID: id, Width: width, Content: content, Rendered: rendered}
	}
}

func postProcessMarkdown(rendered string, width int) string {
	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
	rendered = colorURLs(rendered)
	return frameCodeBlocks(rendered, width)
}

func colorURLs(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}

// frameCodeBlocks swaps the renderer's left bar on code blocks for a rule
// above and below, which keeps copied code free of bar characters.
func frameCodeBlocks(s string, width int) string {
	const (
		darkGray = "\x1b[90m"
		reset    = "\x1b[0m"
	)
	ruleLen := width - 4
	if ruleLen < 10 {
		ruleLen = 10
	}

	openRule := func() string {
		label := "[code]"
		left := (ruleLen - len(label)) / 2
		right := ruleLen - len(label) - left
		return darkGray + strings.Repeat("━", left) + reset + label + darkGray + strings.Repeat("━", right) + reset
	}
	closeRule := darkGray + strings.Repeat("━", ruleLen) + reset

	var out []string
	inBlock := false
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, codeBar) {
			if !inBlock {
				inBlock = true
				out = append(out, "", openRule(), "")
			}
			out = append(out, stripCodeBar(line))
			continue
		}
		if inBlock {
			inBlock = false
			out = append(out, "", closeRule, "")
		}
		out = append(out, line)
	}
	if inBlock {
		out = append(out, "", closeRule, "")
	}

	return strings.Join(out, "\n")
}

func stripCodeBar(line string) string {
	idx := strings.Index(line, codeBar)
	if idx < 0 {
		return line
	}
	rest := line[idx+len(codeBar):]
	return strings.TrimPrefix(rest, " ")
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
