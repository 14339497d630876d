package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/widget"
)

// UI configuration constants
const (
	defaultInputWidth      = 100
	defaultViewportWidth   = 100
	defaultViewportHeight  = 30
	defaultWindowWidth     = 100
	defaultWindowHeight    = 40
	inputCharLimit         = 2000
	inputHeightReserved    = 2
	statusHeightReserved   = 3
	minContentHeight       = 10
	sessionIDDisplayLength = 8
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	playStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

// Widget is the controller surface the terminal frontend drives.
type Widget interface {
	Snapshot() widget.State
	Subscribe() (<-chan struct{}, func())
	Open()
	SetDraft(text string)
	Submit(ctx context.Context) bool
	StartRecording(ctx context.Context) bool
	StopRecording(ctx context.Context)
	Speak(ctx context.Context, text string, messageID int64) widget.Result
	ToggleAutoSpeak() bool
	NewConversation() string
}

// ChatProgram encapsulates the chat TUI program
type ChatProgram struct {
	model chatModel
	stop  func()
}

// NewChatProgram opens w and builds the terminal widget around it.
func NewChatProgram(ctx context.Context, w Widget) *ChatProgram {
	updates, stop := w.Subscribe()
	w.Open()
	return &ChatProgram{model: initialModel(ctx, w, updates), stop: stop}
}

// Run starts the chat TUI program and blocks until the user quits.
func (p *ChatProgram) Run() error {
	defer p.stop()
	program := tea.NewProgram(p.model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// chatModel is the Bubble Tea model of the terminal widget.
type chatModel struct {
	ctx     context.Context
	w       Widget
	updates <-chan struct{}

	input       textinput.Model
	contentView viewport.Model
	spinner     spinner.Model

	state  widget.State
	notice string
	err    error

	width  int
	height int
}

func initialModel(ctx context.Context, w Widget, updates <-chan struct{}) chatModel {
	input := textinput.New()
	input.Placeholder = "Type your message..."
	input.Focus()
	input.CharLimit = inputCharLimit
	input.Width = defaultInputWidth
	input.Prompt = ""

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = accentStyle

	m := chatModel{
		ctx:         ctx,
		w:           w,
		updates:     updates,
		input:       input,
		contentView: viewport.New(defaultViewportWidth, defaultViewportHeight),
		spinner:     spin,
		state:       w.Snapshot(),
		width:       defaultWindowWidth,
		height:      defaultWindowHeight,
	}
	m.refreshContent()
	return m
}

// Init initializes the model (Bubble Tea interface)
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForUpdate(m.w, m.updates))
}

// Message type definitions
type (
	stateMsg  struct{ state widget.State }
	resultMsg struct {
		op  string
		err error
	}
)

// Update processes messages and updates the model (Bubble Tea interface)
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd, quit := m.handleKeyPress(msg)
		if quit {
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.handleWindowResize(msg)

	case stateMsg:
		m.state = msg.state
		m.refreshContent()
		cmds = append(cmds, waitForUpdate(m.w, m.updates))

	case resultMsg:
		m.err = msg.err
		m.refreshContent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if _, isKey := msg.(tea.KeyMsg); !isKey || !m.busy() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKeyPress maps key bindings onto widget operations.
func (m *chatModel) handleKeyPress(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return nil, true

	case tea.KeyEnter:
		if m.busy() {
			return nil, false
		}
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return nil, false
		}
		m.input.Reset()
		m.err = nil
		m.w.SetDraft(text)
		return m.submit(), false

	case tea.KeyCtrlR:
		m.err = nil
		if m.state.Recording {
			return m.stopRecording(), false
		}
		if m.state.Loading {
			return nil, false
		}
		return m.startRecording(), false

	case tea.KeyCtrlL:
		return m.listenLatest(), false

	case tea.KeyCtrlA:
		if m.w.ToggleAutoSpeak() {
			m.notice = "auto-speak on"
		} else {
			m.notice = "auto-speak off"
		}
		m.refreshContent()

	case tea.KeyCtrlN:
		m.err = nil
		m.input.Reset()
		token := m.w.NewConversation()
		m.notice = "new conversation " + shortID(token)
		m.refreshContent()

	case tea.KeyUp:
		m.contentView.LineUp(1)

	case tea.KeyDown:
		m.contentView.LineDown(1)

	case tea.KeyPgUp:
		m.contentView.ViewUp()

	case tea.KeyPgDown:
		m.contentView.ViewDown()
	}

	return nil, false
}

// busy reports whether a request or a capture is in flight; typing and
// sending are disabled until it settles.
func (m *chatModel) busy() bool {
	return m.state.Loading || m.state.Recording
}

func (m *chatModel) submit() tea.Cmd {
	w, ctx := m.w, m.ctx
	return func() tea.Msg {
		w.Submit(ctx)
		return nil
	}
}

func (m *chatModel) startRecording() tea.Cmd {
	w, ctx := m.w, m.ctx
	return func() tea.Msg {
		if !w.StartRecording(ctx) {
			return resultMsg{op: "record", err: fmt.Errorf("microphone unavailable")}
		}
		return nil
	}
}

func (m *chatModel) stopRecording() tea.Cmd {
	w, ctx := m.w, m.ctx
	return func() tea.Msg {
		w.StopRecording(ctx)
		return nil
	}
}

// listenLatest speaks the newest bot message.
func (m *chatModel) listenLatest() tea.Cmd {
	if !m.state.CanListen() {
		return nil
	}
	msg, ok := latestBotMessage(m.state.Messages)
	if !ok {
		return nil
	}

	w, ctx := m.w, m.ctx
	return func() tea.Msg {
		res := w.Speak(ctx, msg.Text, msg.ID)
		return resultMsg{op: res.Op, err: res.Err}
	}
}

// waitForUpdate blocks until the widget reports a change.
func waitForUpdate(w Widget, updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return stateMsg{state: w.Snapshot()}
	}
}

// handleWindowResize handles window size changes
func (m *chatModel) handleWindowResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	contentHeight := msg.Height - inputHeightReserved - statusHeightReserved
	if contentHeight < minContentHeight {
		contentHeight = minContentHeight
	}

	m.contentView.Width = msg.Width
	m.contentView.Height = contentHeight
	m.input.Width = msg.Width - 3

	m.refreshContent()
}

// refreshContent refreshes the display content
func (m *chatModel) refreshContent() {
	display := renderTranscript(m.state, m.width)
	if m.err != nil {
		display += "\n" + errorStyle.Render(fmt.Sprintf("error: %v", m.err))
	}

	m.contentView.SetContent(display)
	m.contentView.GotoBottom()
}

// renderTranscript renders the messages of state wrapped to width.
func renderTranscript(state widget.State, width int) string {
	var b strings.Builder
	for i, msg := range state.Messages {
		if i > 0 {
			b.WriteString("\n")
		}

		label := boldStyle.Render("You")
		if msg.IsBot() {
			label = accentStyle.Render("Assistant")
		}
		b.WriteString(label)
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(msg.Time))
		if msg.ID == state.PlayingID {
			b.WriteString(" ")
			b.WriteString(playStyle.Render("♪ playing"))
		}
		b.WriteString("\n")

		b.WriteString(wrapText(msg.Text, width))
		b.WriteString("\n")

		if msg.Status == chat.StatusSent {
			b.WriteString(dimStyle.Render("✓ sent"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func latestBotMessage(messages []chat.Message) (chat.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsBot() && messages[i].AudioAvailable {
			return messages[i], true
		}
	}
	return chat.Message{}, false
}

// wrapText applies auto-wrapping to text, correctly handling wide characters
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 10 {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, maxWidth)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, maxWidth int) string {
	if runewidth.StringWidth(line) <= maxWidth {
		return line
	}

	var result strings.Builder
	var currentLine strings.Builder
	currentWidth := 0

	for _, r := range line {
		runeW := runewidth.RuneWidth(r)
		if currentWidth+runeW > maxWidth && currentWidth > 0 {
			result.WriteString(currentLine.String())
			result.WriteString("\n")
			currentLine.Reset()
			currentWidth = 0
		}
		currentLine.WriteRune(r)
		currentWidth += runeW
	}

	if currentLine.Len() > 0 {
		result.WriteString(currentLine.String())
	}
	return result.String()
}

func shortID(token string) string {
	if len(token) > sessionIDDisplayLength {
		return token[:sessionIDDisplayLength]
	}
	return token
}

// View renders the UI (Bubble Tea interface)
func (m chatModel) View() string {
	status := accentStyle.Render("Dental Assistant") + dimStyle.Render(" • session "+shortID(m.state.SessionID))
	if m.state.AutoSpeak {
		status += dimStyle.Render(" • auto-speak")
	}
	if m.notice != "" {
		status += dimStyle.Render(" • " + m.notice)
	}

	var inputView string
	switch {
	case m.state.Recording:
		inputView = recStyle.Render("● recording") + dimStyle.Render("  Ctrl+R to stop")
	case m.state.Loading:
		inputView = m.spinner.View() + dimStyle.Render(" Assistant is typing...")
	default:
		inputView = promptStyle.Render("> ") + m.input.View()
	}

	help := dimStyle.Render("Enter send • Ctrl+R record • Ctrl+L listen • Ctrl+A auto-speak • Ctrl+N new • Esc quit")

	return lipgloss.JoinVertical(lipgloss.Left, status, "", m.contentView.View(), "", inputView, help)
}
