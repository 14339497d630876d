package widget

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/media"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/speech"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/session"
)

type fakeBackend struct {
	mu sync.Mutex

	chatFn       func(chat.ChatRequest) (*chat.ChatResponse, error)
	synthFn      func(speech.SpeechRequest) (*speech.SpeechResponse, error)
	transcribeFn func(speech.TranscribeRequest) (*speech.TranscribeResponse, error)
	saveErr      error

	chats       []chat.ChatRequest
	speeches    []speech.SpeechRequest
	transcribes []speech.TranscribeRequest
	saves       []chat.SaveConversationRequest
}

func (f *fakeBackend) Chat(_ context.Context, req chat.ChatRequest) (*chat.ChatResponse, error) {
	f.mu.Lock()
	f.chats = append(f.chats, req)
	fn := f.chatFn
	f.mu.Unlock()

	if fn == nil {
		return &chat.ChatResponse{Status: chat.StatusOK, Text: "echo: " + req.Message}, nil
	}
	return fn(req)
}

func (f *fakeBackend) Synthesize(_ context.Context, req speech.SpeechRequest) (*speech.SpeechResponse, error) {
	f.mu.Lock()
	f.speeches = append(f.speeches, req)
	fn := f.synthFn
	f.mu.Unlock()

	if fn == nil {
		return &speech.SpeechResponse{Audio: "bXAzLWNsaXA="}, nil
	}
	return fn(req)
}

func (f *fakeBackend) Transcribe(_ context.Context, req speech.TranscribeRequest) (*speech.TranscribeResponse, error) {
	f.mu.Lock()
	f.transcribes = append(f.transcribes, req)
	fn := f.transcribeFn
	f.mu.Unlock()

	if fn == nil {
		return &speech.TranscribeResponse{Text: "hello from audio"}, nil
	}
	return fn(req)
}

func (f *fakeBackend) SaveConversation(_ context.Context, req chat.SaveConversationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, req)
	return f.saveErr
}

func (f *fakeBackend) chatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chats)
}

func (f *fakeBackend) savedConversations() []chat.SaveConversationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chat.SaveConversationRequest, len(f.saves))
	copy(out, f.saves)
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	err      error
	data     []byte
	starts   int
	captures []*fakeCapture
}

func (r *fakeRecorder) Start(context.Context) (media.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.err != nil {
		return nil, r.err
	}
	capture := &fakeCapture{data: r.data}
	r.captures = append(r.captures, capture)
	return capture, nil
}

type fakeCapture struct {
	mu       sync.Mutex
	data     []byte
	stopped  bool
	released bool
}

func (c *fakeCapture) Stop() (speech.Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return speech.Recording{Data: c.data, ContentType: "audio/webm"}, nil
}

func (c *fakeCapture) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
}

// fakePlayer hands out playbacks that finish only when told to.
type fakePlayer struct {
	mu        sync.Mutex
	err       error
	playbacks []*fakePlayback
	started   chan *fakePlayback

	// entered and gate, when set, hold Play until gate is closed.
	entered chan struct{}
	gate    chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{started: make(chan *fakePlayback, 8)}
}

func (p *fakePlayer) Play(_ context.Context, audio []byte, format string) (media.Playback, error) {
	if p.gate != nil {
		p.entered <- struct{}{}
		<-p.gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	pb := &fakePlayback{audio: audio, format: format, done: make(chan error, 1)}
	p.playbacks = append(p.playbacks, pb)
	p.started <- pb
	return pb, nil
}

type fakePlayback struct {
	audio  []byte
	format string
	done   chan error
	once   sync.Once

	mu      sync.Mutex
	stopped bool
}

func (p *fakePlayback) Done() <-chan error { return p.done }

func (p *fakePlayback) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.finish(nil)
}

func (p *fakePlayback) finish(err error) {
	p.once.Do(func() {
		p.done <- err
		close(p.done)
	})
}

func (p *fakePlayback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type testEnv struct {
	ctrl     *Controller
	backend  *fakeBackend
	recorder *fakeRecorder
	player   *fakePlayer
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := &fakeBackend{}
	recorder := &fakeRecorder{data: []byte("webm-audio")}
	player := newFakePlayer()
	sessions := session.NewManager(session.NewMemoryStore())

	clock := time.Date(2024, 3, 5, 9, 7, 0, 0, time.UTC)
	ctrl := New(backend, sessions, recorder, player, Options{
		AutoSpeakDelay: 10 * time.Millisecond,
		Now:            func() time.Time { return clock },
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	t.Cleanup(func() {
		ctrl.Teardown()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ctrl.Wait(ctx)
	})

	return &testEnv{ctrl: ctrl, backend: backend, recorder: recorder, player: player, sessions: sessions}
}

func waitBackground(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("background work did not drain: %v", err)
	}
}

func countSender(messages []chat.Message, sender chat.Sender) int {
	n := 0
	for _, m := range messages {
		if m.Sender == sender {
			n++
		}
	}
	return n
}
