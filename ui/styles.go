package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimColor       = lipgloss.Color("7")
	faintColor     = lipgloss.Color("8")
	accentColor    = lipgloss.Color("12")
	successColor   = lipgloss.Color("10")
	warningColor   = lipgloss.Color("11")
	dangerColor    = lipgloss.Color("9")
	highlightColor = lipgloss.Color("13")

	UserStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	AssistantStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Bold(true)

	// Offline banner spans the full width.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(dangerColor).
			Bold(true).
			Padding(0, 1)

	ChipStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(faintColor).
			Padding(0, 1)

	CitationStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	MetricsStyle = lipgloss.NewStyle().
			Foreground(faintColor)

	SkeletonStyle = lipgloss.NewStyle().
			Foreground(faintColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)
)

// FormatFooter formats alternating key/description pairs.
// FormatFooter("j/k", "Navigate", "Esc", "Close") renders "j/k Navigate  Esc Close"
// with the descriptions in bold accent.
func FormatFooter(parts ...string) string {
	descStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	var result []string
	for i := 0; i+1 < len(parts); i += 2 {
		result = append(result, parts[i]+" "+descStyle.Render(parts[i+1]))
	}
	return strings.Join(result, "  ")
}
