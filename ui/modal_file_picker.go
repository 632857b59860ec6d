package ui

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"djrag/api"
	"djrag/config"
)

type FilePickerConfig struct {
	Title          string
	AllowedTypes   []string
	StartDirectory string
	ShowHidden     bool
}

type FilePickerState struct {
	Active bool
	Picker filepicker.Model
	Config FilePickerConfig
	// Rejected holds the last file refused for its extension.
	Rejected string
}

func NewFilePickerState(cfg FilePickerConfig) FilePickerState {
	fp := filepicker.New()
	fp.AllowedTypes = cfg.AllowedTypes
	fp.Height = 10
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.ShowPermissions = false
	fp.ShowSize = true
	fp.ShowHidden = cfg.ShowHidden

	startDir := cfg.StartDirectory
	if startDir == "" {
		startDir = config.GetHomeDir()
	}
	fp.CurrentDirectory = startDir

	fp.Styles.Directory = lipgloss.NewStyle().
		Foreground(accentColor).
		Bold(true)
	fp.Styles.File = lipgloss.NewStyle().
		Foreground(lipgloss.Color("15"))
	fp.Styles.Selected = lipgloss.NewStyle().
		Foreground(successColor).
		Bold(true)
	fp.Styles.Cursor = lipgloss.NewStyle().
		Foreground(successColor)

	return FilePickerState{
		Picker: fp,
		Config: cfg,
	}
}

func newAttachmentPicker() FilePickerState {
	return NewFilePickerState(FilePickerConfig{
		Title:        "Attach Document",
		AllowedTypes: api.SupportedExtensions,
	})
}

// Activate opens the picker and returns the command that lists the
// current directory.
func (fps *FilePickerState) Activate() tea.Cmd {
	fps.Active = true
	fps.Rejected = ""
	return fps.Picker.Init()
}

func (fps *FilePickerState) Reset() {
	fps.Active = false
	fps.Rejected = ""
	fps.Picker.Path = ""
}

// Update forwards msg to the picker and reports a selected file, if any.
func (fps *FilePickerState) Update(msg tea.Msg) (string, tea.Cmd) {
	var cmd tea.Cmd
	fps.Picker, cmd = fps.Picker.Update(msg)

	if ok, path := fps.Picker.DidSelectDisabledFile(msg); ok {
		fps.Rejected = filepath.Base(path)
		return "", cmd
	}
	if ok, path := fps.Picker.DidSelectFile(msg); ok {
		fps.Picker.Path = ""
		return path, cmd
	}
	return "", cmd
}

// addAttachment appends path unless it is already queued.
func addAttachment(attachments []string, path string) []string {
	if path == "" || slices.Contains(attachments, path) {
		return attachments
	}
	return append(attachments, path)
}

func renderAttachmentChips(attachments []string, width int) string {
	if len(attachments) == 0 {
		return ""
	}

	var chips []string
	for _, path := range attachments {
		chips = append(chips, ChipStyle.Render("📄 "+truncate(filepath.Base(path), 28)))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, chips...)
	if lipgloss.Width(row) > width {
		return DimStyle.Render(truncate(strings.Join(baseNames(attachments), ", "), width))
	}
	return row
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}

func RenderFilePickerModal(state FilePickerState, width, height int) string {
	if width < 20 || height < 10 {
		return "Terminal too small"
	}

	modalWidth := width - 10
	if modalWidth > 80 {
		modalWidth = 80
	}

	contentStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Left)

	var messageLines []string
	messageLines = append(messageLines, contentStyle.Render(DimStyle.Render("  "+state.Picker.CurrentDirectory)))
	messageLines = append(messageLines, "")
	for _, line := range strings.Split(state.Picker.View(), "\n") {
		messageLines = append(messageLines, contentStyle.Render("  "+strings.TrimRight(line, " ")))
	}
	messageLines = append(messageLines, "")
	messageLines = append(messageLines, contentStyle.Render(DimStyle.Render("  Supported: "+strings.Join(state.Config.AllowedTypes, " "))))
	if state.Rejected != "" {
		messageLines = append(messageLines, contentStyle.Render(ErrorStyle.Render("  Unsupported file type: "+state.Rejected)))
	}

	footer := FormatFooter("j/k", "Navigate", "h/l", "Back/Forward", "Enter", "Attach", "Esc", "Close")

	return RenderThreeSectionModal(
		state.Config.Title,
		messageLines,
		footer,
		ModalTypeInfo,
		modalWidth,
		width,
		height,
	)
}
