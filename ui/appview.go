package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"djrag/api"
	"djrag/config"
	"djrag/health"
	appmodel "djrag/model"
)

type renderedMarkdown struct {
	width   int
	content string
	out     string
}

type renderKey struct {
	id    int64
	width int
}

// subscriptions holds the cache change feeds. It is shared by every copy of
// the AppView value.
type subscriptions struct {
	sessions <-chan string
	messages <-chan string
	cancel   []func()
}

func (s *subscriptions) close() {
	for _, cancel := range s.cancel {
		cancel()
	}
	s.cancel = nil
}

type AppView struct {
	dataModel *appmodel.Model
	kb        *config.KeyBindingsConfig

	viewport viewport.Model
	textarea textarea.Model
	width    int
	height   int
	ready    bool

	typingSpinner spinner.Model
	busySpinner   spinner.Model

	// Composer state
	attachments []string
	filePicker  FilePickerState
	sending     bool
	uploading   int
	creating    bool

	// Session manager state
	showSessionManager   bool
	selectedSessionIdx   int
	sessionFilterMode    bool
	sessionFilterInput   textinput.Model
	confirmDeleteSession *api.Session
	deletingSessions     map[string]bool

	paste PasteState

	showHelp        bool
	showSettings    bool
	confirmClearAll bool
	clearingAll     bool

	showAcknowledgeModal  bool
	acknowledgeModalTitle string
	acknowledgeModalMsg   string
	acknowledgeModalType  ModalType

	flashMessage string
	flashTicks   int

	healthStatus   health.Status
	healthChecking bool

	rendered  map[int64]renderedMarkdown
	rendering map[renderKey]bool

	subs *subscriptions
}

func NewAppView(m *appmodel.Model) AppView {
	kb := m.Config.Keybindings
	if kb == nil {
		kb = config.DefaultKeybindings()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask a question about your documents..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Enter sends; Alt+Enter inserts a newline.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sessionFilterInput := textinput.New()
	sessionFilterInput.Prompt = "Filter: "
	sessionFilterInput.CharLimit = 64

	typing := spinner.New()
	typing.Spinner = spinner.Points
	typing.Style = AssistantStyle

	busy := spinner.New()
	busy.Spinner = spinner.Dot
	busy.Style = lipgloss.NewStyle().Foreground(successColor)

	sessionChanges, cancelSessions := m.Sessions.Subscribe()
	messageChanges, cancelMessages := m.Messages.Subscribe()

	status := health.Unknown
	if m.Health != nil {
		status = m.Health.Status()
	}

	return AppView{
		dataModel:          m,
		kb:                 kb,
		viewport:           viewport.New(0, 0),
		textarea:           ta,
		typingSpinner:      typing,
		busySpinner:        busy,
		filePicker:         newAttachmentPicker(),
		sessionFilterInput: sessionFilterInput,
		deletingSessions:   make(map[string]bool),
		paste:              NewPasteState(),
		healthStatus:       status,
		rendered:           make(map[int64]renderedMarkdown),
		rendering:          make(map[renderKey]bool),
		subs: &subscriptions{
			sessions: sessionChanges,
			messages: messageChanges,
			cancel:   []func(){cancelSessions, cancelMessages},
		},
	}
}

func (a AppView) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		a.dataModel.ResumeSessions(),
		a.dataModel.WaitForHealth(),
		appmodel.WaitForCacheChange(a.subs.sessions),
		appmodel.WaitForCacheChange(a.subs.messages),
	}

	if id := a.dataModel.CurrentSessionID(); id != "" {
		cmds = append(cmds, a.dataModel.FetchMessages(id))
	}

	return tea.Batch(cmds...)
}

// Close releases the cache subscriptions.
func (a AppView) Close() {
	a.subs.close()
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading DJ Rag..."
	}

	// Modal layers, top to bottom.
	if a.showAcknowledgeModal {
		return RenderAcknowledgeModal(
			a.acknowledgeModalTitle,
			a.acknowledgeModalMsg,
			a.acknowledgeModalType,
			a.width,
			a.height,
		)
	}

	if a.showHelp {
		return a.renderHelpModal(a.width, a.height)
	}

	if a.showSettings {
		return a.renderSettings(a.width, a.height)
	}

	if a.showSessionManager {
		return a.renderSessionManager(a.width, a.height)
	}

	if a.paste.Active {
		return RenderPasteModal(a.paste, a.busySpinner.View(), a.width, a.height)
	}

	if a.filePicker.Active {
		return RenderFilePickerModal(a.filePicker, a.width, a.height)
	}

	sections := []string{a.renderHeader()}
	if banner := a.renderOfflineBanner(); banner != "" {
		sections = append(sections, banner)
	}

	if !a.dataModel.HasSession() {
		sections = append(sections, a.renderWelcome(a.width, a.bodyHeight()))
		sections = append(sections, a.renderStatusBar())
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections, a.viewport.View())
	if chips := renderAttachmentChips(a.attachments, a.width); chips != "" {
		sections = append(sections, chips)
	}
	sections = append(sections, a.textarea.View(), a.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// bodyHeight is the number of rows left for the viewport or welcome screen.
func (a AppView) bodyHeight() int {
	// header and status bar
	used := 2
	if a.renderOfflineBanner() != "" {
		used++
	}
	if a.dataModel.HasSession() {
		used += a.textarea.Height()
		if chips := renderAttachmentChips(a.attachments, a.width); chips != "" {
			used += lipgloss.Height(chips)
		}
	}
	h := a.height - used
	if h < 1 {
		h = 1
	}
	return h
}

// layout sizes the viewport and textarea for the current window.
func (a *AppView) layout() {
	a.textarea.SetWidth(a.width)
	a.viewport.Width = a.width
	a.viewport.Height = a.bodyHeight()
}

func (a *AppView) closeAllModals() {
	a.showHelp = false
	a.showSettings = false
	a.confirmClearAll = false
	a.showSessionManager = false
	a.sessionFilterMode = false
	a.sessionFilterInput.Blur()
	a.sessionFilterInput.SetValue("")
	a.confirmDeleteSession = nil
	a.paste.Close()
	a.filePicker.Reset()
	a.textarea.Focus()
}

func (a *AppView) showError(title string, err error) {
	a.showAcknowledgeModal = true
	a.acknowledgeModalTitle = title
	a.acknowledgeModalMsg = err.Error()
	a.acknowledgeModalType = ModalTypeError
}

func (a *AppView) showInfo(title, msg string) {
	a.showAcknowledgeModal = true
	a.acknowledgeModalTitle = title
	a.acknowledgeModalMsg = msg
	a.acknowledgeModalType = ModalTypeInfo
}

func (a *AppView) flash(msg string) tea.Cmd {
	a.flashMessage = msg
	wasRunning := a.flashTicks > 0
	a.flashTicks = 10
	if wasRunning {
		return nil
	}
	return appmodel.FlashTick()
}
