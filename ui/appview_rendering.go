package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"djrag/api"
)

const (
	greenBold = "\x1b[32;1m"
	ansiReset = "\x1b[0m"
	userBar   = greenBold + "┃" + ansiReset
)

func (a AppView) markdownWidth() int {
	w := a.viewport.Width - 2
	if w < 20 {
		w = 20
	}
	return w
}

// updateViewportContent rebuilds the transcript. It returns commands for
// any assistant messages whose markdown is not rendered at this width yet.
func (a *AppView) updateViewportContent(gotoBottom bool) tea.Cmd {
	sessionID := a.dataModel.CurrentSessionID()
	if sessionID == "" {
		a.viewport.SetContent("")
		return nil
	}

	state := a.dataModel.Messages.State(sessionID)
	msgs := state.Data

	if !state.Valid && len(msgs) == 0 {
		if state.Err != nil {
			a.viewport.SetContent(ErrorStyle.Render("Could not load messages: " + state.Err.Error()))
		} else {
			a.viewport.SetContent(renderMessageSkeleton(a.viewport.Width))
		}
		return nil
	}

	if len(msgs) == 0 && !a.sending {
		a.viewport.SetContent(renderEmptyChat(a.viewport.Width, a.viewport.Height))
		return nil
	}

	width := a.markdownWidth()
	var cmds []tea.Cmd
	var content strings.Builder

	for _, msg := range msgs {
		if msg.Role == api.RoleUser {
			content.WriteString(formatUserMessage(formatClock(msg.CreatedAt), msg.Content, width))
			continue
		}

		body, cmd := a.assistantBody(msg, width)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		content.WriteString(formatAssistantMessage(formatClock(msg.CreatedAt), body, msg, width))
	}

	if a.sending {
		content.WriteString(a.renderTypingIndicator())
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
	return tea.Batch(cmds...)
}

// assistantBody returns the rendered markdown for msg, falling back to
// wrapped plain text while a render is pending.
func (a *AppView) assistantBody(msg api.Message, width int) (string, tea.Cmd) {
	if r, ok := a.rendered[msg.ID]; ok && r.width == width && r.content == msg.Content {
		return r.out, nil
	}

	plain := wordWrap(msg.Content, width)
	k := renderKey{id: msg.ID, width: width}
	if a.rendering[k] {
		return plain, nil
	}
	a.rendering[k] = true
	return plain, a.renderMarkdownAsync(msg.ID, msg.Content, width)
}

func formatUserMessage(timestamp, content string, width int) string {
	var result strings.Builder
	header := UserStyle.Render("You")
	if timestamp != "" {
		header = DimStyle.Render(timestamp) + " " + header
	}
	result.WriteString(fmt.Sprintf("%s %s\n", userBar, header))

	for _, line := range strings.Split(wordWrap(content, width-2), "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", userBar, line))
	}

	result.WriteString("\n")
	return result.String()
}

func formatAssistantMessage(timestamp, body string, msg api.Message, width int) string {
	var result strings.Builder

	header := AssistantStyle.Render("Assistant")
	if timestamp != "" {
		header = DimStyle.Render(timestamp) + " " + header
	}
	result.WriteString(header + "\n")
	result.WriteString(body + "\n")

	if len(msg.Sources) > 0 {
		result.WriteString("\n" + renderCitations(msg.Sources, width))
	}

	if metrics := FormatMetrics(msg.Metrics); metrics != "" {
		result.WriteString(MetricsStyle.Render(metrics) + "\n")
	}

	result.WriteString("\n")
	return result.String()
}

func renderCitations(sources []api.Source, width int) string {
	var b strings.Builder
	b.WriteString(DimStyle.Render("Sources") + "\n")
	for i, src := range sources {
		b.WriteString(CitationStyle.Render(truncate(FormatCitation(i+1, src), width)) + "\n")
		if excerpt := Excerpt(src.Content); excerpt != "" {
			wrapped := wordWrap(excerpt, width-4)
			for _, line := range strings.Split(wrapped, "\n") {
				b.WriteString(DimStyle.Render("    "+line) + "\n")
			}
		}
	}
	return b.String()
}

func (a AppView) renderTypingIndicator() string {
	label := "Thinking..."
	if a.uploading > 0 {
		label = fmt.Sprintf("Uploading %d file(s)...", a.uploading)
	}
	return AssistantStyle.Render("Assistant") + "\n" +
		a.typingSpinner.View() + " " + DimStyle.Render(label) + "\n"
}

func renderMessageSkeleton(width int) string {
	w := width - 4
	if w < 10 {
		w = 10
	}
	bar := func(n int) string {
		return SkeletonStyle.Render(strings.Repeat("░", n))
	}

	var lines []string
	for i := 0; i < 3; i++ {
		lines = append(lines, bar(w/5), bar(w*3/4), bar(w/2), "")
	}
	return strings.Join(lines, "\n")
}

func renderEmptyChat(width, height int) string {
	title := TitleStyle.Foreground(successColor).Render("How can I help you today?")
	intro := DimStyle.Render(wordWrap("I can help you analyze your documents. Upload a file or start typing to begin.", width-4))

	files := lipgloss.JoinVertical(lipgloss.Left,
		AssistantStyle.Bold(true).Render("Supported Files"),
		"• PDF Documents (.pdf)",
		"• Word Documents (.docx)",
		"• Excel Spreadsheets (.xlsx)",
		"• CSV Files (.csv)",
		"• PowerPoint (.pptx)",
		"• Plain Text (.txt)",
	)
	caps := lipgloss.JoinVertical(lipgloss.Left,
		AssistantStyle.Bold(true).Render("Capabilities"),
		"• Answer questions from docs",
		"• Provide citations",
		"• Summarize content",
		"• Analyze data",
	)

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(faintColor).
		Padding(0, 2).
		Width(34)

	cards := lipgloss.JoinHorizontal(lipgloss.Top, card.Render(files), "  ", card.Render(caps))
	if lipgloss.Width(cards) > width {
		cards = lipgloss.JoinVertical(lipgloss.Left, card.Render(files), card.Render(caps))
	}

	content := lipgloss.JoinVertical(lipgloss.Center, title, "", intro, "", cards)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
