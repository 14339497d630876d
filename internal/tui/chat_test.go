package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/widget"
)

type fakeWidget struct {
	mu        sync.Mutex
	state     widget.State
	draft     string
	submitted []string
	spoken    []int64
	updates   chan struct{}
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{updates: make(chan struct{}, 1)}
}

func (f *fakeWidget) Snapshot() widget.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeWidget) Subscribe() (<-chan struct{}, func()) { return f.updates, func() {} }

func (f *fakeWidget) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Open = true
	f.state.SessionID = "0123456789abcdef"
	f.state.Messages = []chat.Message{{ID: 1, Text: widget.WelcomeText, Sender: chat.SenderBot, Time: "09:07", AudioAvailable: true}}
}

func (f *fakeWidget) SetDraft(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = text
}

func (f *fakeWidget) Submit(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, f.draft)
	f.draft = ""
	return true
}

func (f *fakeWidget) StartRecording(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Recording = true
	return true
}

func (f *fakeWidget) StopRecording(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Recording = false
}

func (f *fakeWidget) Speak(_ context.Context, _ string, id int64) widget.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, id)
	return widget.Result{Op: "speak"}
}

func (f *fakeWidget) ToggleAutoSpeak() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.AutoSpeak = !f.state.AutoSpeak
	return f.state.AutoSpeak
}

func (f *fakeWidget) NewConversation() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.SessionID = "fedcba9876543210"
	return f.state.SessionID
}

func newTestModel(t *testing.T) (chatModel, *fakeWidget) {
	t.Helper()
	fw := newFakeWidget()
	p := NewChatProgram(context.Background(), fw)
	return p.model, fw
}

func press(m chatModel, key tea.KeyType) (chatModel, tea.Cmd) {
	cmd, _ := m.handleKeyPress(tea.KeyMsg{Type: key})
	return m, cmd
}

func TestProgramOpensWidget(t *testing.T) {
	m, _ := newTestModel(t)

	if !m.state.Open || len(m.state.Messages) != 1 {
		t.Fatalf("expected open widget with welcome message, got %+v", m.state)
	}
	if !strings.Contains(m.View(), "01234567") {
		t.Fatalf("status bar should show the short session id:\n%s", m.View())
	}
}

func TestEnterSubmitsInput(t *testing.T) {
	m, fw := newTestModel(t)

	if _, cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Fatal("blank input must not submit")
	}

	m.input.SetValue("I'd like to book an appointment")
	m, cmd := press(m, tea.KeyEnter)
	if m.input.Value() != "" {
		t.Fatalf("input should be cleared, got %q", m.input.Value())
	}
	if cmd == nil {
		t.Fatal("expected submit command")
	}
	cmd()
	if len(fw.submitted) != 1 || fw.submitted[0] != "I'd like to book an appointment" {
		t.Fatalf("unexpected submissions %+v", fw.submitted)
	}
}

func TestStateMessageRefreshesTranscript(t *testing.T) {
	m, fw := newTestModel(t)

	fw.mu.Lock()
	fw.state.Messages = append(fw.state.Messages,
		chat.Message{ID: 2, Text: "hello there", Sender: chat.SenderUser, Time: "09:08", Status: chat.StatusSent},
		chat.Message{ID: 3, Text: "Sure, what day works?", Sender: chat.SenderBot, Time: "09:08", AudioAvailable: true},
	)
	fw.state.PlayingID = 3
	fw.mu.Unlock()
	fw.updates <- struct{}{}

	msg := waitForUpdate(fw, fw.updates)()
	next, _ := m.Update(msg)
	m = next.(chatModel)

	out := renderTranscript(m.state, 80)
	for _, want := range []string{"You", "hello there", "✓ sent", "Sure, what day works?", "♪ playing"} {
		if !strings.Contains(out, want) {
			t.Fatalf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestRecordingToggle(t *testing.T) {
	m, fw := newTestModel(t)

	m, cmd := press(m, tea.KeyCtrlR)
	if cmd == nil {
		t.Fatal("expected start command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("unexpected result %+v", msg)
	}
	m.state = fw.Snapshot()
	if !m.state.Recording {
		t.Fatal("expected recording")
	}

	_, cmd = press(m, tea.KeyCtrlR)
	cmd()
	if fw.Snapshot().Recording {
		t.Fatal("expected recording stopped")
	}
}

func TestInputDisabledWhileBusy(t *testing.T) {
	m, fw := newTestModel(t)
	m.state.Loading = true

	m.input.SetValue("second message")
	m, cmd := press(m, tea.KeyEnter)
	if cmd != nil {
		t.Fatal("enter must not submit while loading")
	}
	if _, cmd := press(m, tea.KeyCtrlR); cmd != nil {
		t.Fatal("recording must not start while loading")
	}
	if len(fw.submitted) != 0 || fw.Snapshot().Recording {
		t.Fatalf("widget touched while loading: submitted=%+v recording=%v", fw.submitted, fw.Snapshot().Recording)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = next.(chatModel)
	if got := m.input.Value(); got != "second message" {
		t.Fatalf("input should ignore typing while loading, got %q", got)
	}

	// An active capture can always be stopped.
	fw.StartRecording(context.Background())
	m.state = fw.Snapshot()
	m.state.Loading = true
	if _, cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Fatal("enter must not submit while recording")
	}
	_, cmd = press(m, tea.KeyCtrlR)
	if cmd == nil {
		t.Fatal("expected stop command while recording")
	}
	cmd()
	if fw.Snapshot().Recording {
		t.Fatal("expected recording stopped")
	}
}

func TestListenLatestAndAutoSpeak(t *testing.T) {
	m, fw := newTestModel(t)

	m, cmd := press(m, tea.KeyCtrlL)
	if cmd == nil {
		t.Fatal("expected speak command")
	}
	cmd()
	if len(fw.spoken) != 1 || fw.spoken[0] != 1 {
		t.Fatalf("unexpected speak calls %+v", fw.spoken)
	}

	m.state.PlayingID = 1
	if _, cmd := press(m, tea.KeyCtrlL); cmd != nil {
		t.Fatal("listen must be disabled while playing")
	}

	m.state.PlayingID = 0
	m, _ = press(m, tea.KeyCtrlA)
	if !fw.Snapshot().AutoSpeak || m.notice != "auto-speak on" {
		t.Fatalf("auto-speak not toggled, notice %q", m.notice)
	}

	m, _ = press(m, tea.KeyCtrlN)
	if m.notice != "new conversation fedcba98" {
		t.Fatalf("unexpected notice %q", m.notice)
	}
}

func TestWrapLine(t *testing.T) {
	got := wrapLine("abcdefghijklmnop", 11)
	if got != "abcdefghijk\nlmnop" {
		t.Fatalf("unexpected wrap %q", got)
	}
	if wrapText("short", 80) != "short" {
		t.Fatal("short text should be unchanged")
	}
}

func TestEscQuits(t *testing.T) {
	m, _ := newTestModel(t)
	if _, quit := m.handleKeyPress(tea.KeyMsg{Type: tea.KeyEsc}); !quit {
		t.Fatal("esc should quit")
	}
}
