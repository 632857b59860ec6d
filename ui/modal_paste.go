package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"djrag/api"
)

type pasteField int

const (
	pasteFieldTitle pasteField = iota
	pasteFieldContent
	pasteFieldSubmit
)

// PasteState backs the modal that ingests pasted text into the current
// session.
type PasteState struct {
	Active    bool
	Title     textinput.Model
	Content   textarea.Model
	Focus     pasteField
	Ingesting bool
	Err       string
}

func NewPasteState() PasteState {
	title := textinput.New()
	title.Placeholder = api.DefaultIngestTitle
	title.CharLimit = 120
	title.Width = 56
	title.Prompt = ""

	content := textarea.New()
	content.Placeholder = "Paste your text here..."
	content.CharLimit = 0
	content.ShowLineNumbers = false
	content.SetWidth(60)
	content.SetHeight(10)

	return PasteState{
		Title:   title,
		Content: content,
	}
}

func (p *PasteState) Open() tea.Cmd {
	p.Active = true
	p.Ingesting = false
	p.Err = ""
	p.Title.SetValue("")
	p.Content.Reset()
	return p.focus(pasteFieldContent)
}

func (p *PasteState) Close() {
	p.Active = false
	p.Ingesting = false
	p.Err = ""
	p.Title.Blur()
	p.Content.Blur()
}

// CanSubmit reports whether the submit button is enabled.
func (p PasteState) CanSubmit() bool {
	return !p.Ingesting && strings.TrimSpace(p.Content.Value()) != ""
}

func (p *PasteState) focus(f pasteField) tea.Cmd {
	p.Focus = f
	p.Title.Blur()
	p.Content.Blur()
	switch f {
	case pasteFieldTitle:
		return p.Title.Focus()
	case pasteFieldContent:
		return p.Content.Focus()
	}
	return nil
}

func (p *PasteState) nextField(step int) tea.Cmd {
	f := (int(p.Focus) + step + 3) % 3
	return p.focus(pasteField(f))
}

func (a AppView) openPasteModal() (AppView, tea.Cmd) {
	if !a.dataModel.HasSession() {
		a.showInfo("Paste Text", "Start a chat before adding text to it.")
		return a, nil
	}
	a.closeAllModals()
	a.textarea.Blur()
	a.paste.Content.SetWidth(modalWidthFor(70, a.width) - 4)
	cmd := a.paste.Open()
	return a, cmd
}

func (a AppView) handlePasteUpdate(msg tea.KeyMsg) (AppView, tea.Cmd) {
	if a.paste.Ingesting {
		return a, nil
	}

	switch msg.String() {
	case "esc":
		a.paste.Close()
		a.textarea.Focus()
		return a, nil
	case "tab":
		cmd := a.paste.nextField(1)
		return a, cmd
	case "shift+tab":
		cmd := a.paste.nextField(-1)
		return a, cmd
	case "ctrl+s":
		return a.submitPaste()
	case "enter":
		if a.paste.Focus == pasteFieldSubmit {
			return a.submitPaste()
		}
		if a.paste.Focus == pasteFieldTitle {
			cmd := a.paste.focus(pasteFieldContent)
			return a, cmd
		}
	}

	var cmd tea.Cmd
	switch a.paste.Focus {
	case pasteFieldTitle:
		a.paste.Title, cmd = a.paste.Title.Update(msg)
	case pasteFieldContent:
		a.paste.Content, cmd = a.paste.Content.Update(msg)
	}
	if a.paste.Err != "" && msg.Type != tea.KeyEnter {
		a.paste.Err = ""
	}
	return a, cmd
}

func (a AppView) submitPaste() (AppView, tea.Cmd) {
	if !a.paste.CanSubmit() {
		return a, nil
	}
	a.paste.Ingesting = true
	a.paste.Err = ""
	title := strings.TrimSpace(a.paste.Title.Value())
	return a, tea.Batch(
		a.dataModel.IngestPastedText(a.paste.Content.Value(), title),
		a.busySpinner.Tick,
	)
}

func RenderPasteModal(state PasteState, spinnerView string, width, height int) string {
	modalWidth := modalWidthFor(70, width)

	label := func(text string, focused bool) string {
		if focused {
			return lipgloss.NewStyle().Foreground(accentColor).Bold(true).Render(text)
		}
		return DimStyle.Render(text)
	}

	field := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(faintColor).
		Padding(0, 1)
	focusedField := field.BorderForeground(accentColor)

	titleBox := field
	contentBox := field
	switch state.Focus {
	case pasteFieldTitle:
		titleBox = focusedField
	case pasteFieldContent:
		contentBox = focusedField
	}

	var button string
	switch {
	case state.Ingesting:
		button = spinnerView + " Ingesting..."
	case !state.CanSubmit():
		button = buttonStyle.Foreground(faintColor).Render("Add to Chat")
	case state.Focus == pasteFieldSubmit:
		button = selectedButtonStyle.Render("Add to Chat")
	default:
		button = buttonStyle.Render("Add to Chat")
	}

	lines := []string{
		label("Title (optional)", state.Focus == pasteFieldTitle),
		titleBox.Width(modalWidth - 2).Render(state.Title.View()),
		"",
		label("Content", state.Focus == pasteFieldContent),
		contentBox.Width(modalWidth - 2).Render(state.Content.View()),
		"",
		lipgloss.NewStyle().Width(modalWidth).Align(lipgloss.Center).Render(button),
	}
	if state.Err != "" {
		lines = append(lines, "", lipgloss.NewStyle().Width(modalWidth).Align(lipgloss.Center).Render(ErrorStyle.Render(state.Err)))
	}

	footer := FormatFooter("Tab", "Next Field", "Ctrl+S", "Submit", "Esc", "Cancel")
	if state.Ingesting {
		footer = "Ingesting text..."
	}

	return RenderThreeSectionModal("Paste Text", lines, footer, ModalTypeInfo, modalWidth, width, height)
}
