// Package widget implements the chat widget controller: the transcript, the
// session token, the loading flag and the recording/playback state, exposed
// through the operations a frontend binds to its affordances.
//
// Every transition happens under Controller.mu. Network and media calls run
// outside the lock and re-check the conversation epoch before touching state,
// so a reply that lands after Close or NewConversation is dropped.
package widget

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/media"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/speech"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/session"
)

var (
	// ErrClosed is reported by operations invoked after Teardown.
	ErrClosed = errors.New("widget torn down")
	// ErrNoAudio means the speech endpoint answered without a clip.
	ErrNoAudio = errors.New("no audio data in response")
	// ErrPlaybackStopped means playback was interrupted by another clip or by close.
	ErrPlaybackStopped = errors.New("playback stopped")
)

// Backend is the remote service the widget talks to.
type Backend interface {
	Chat(ctx context.Context, req chat.ChatRequest) (*chat.ChatResponse, error)
	Synthesize(ctx context.Context, req speech.SpeechRequest) (*speech.SpeechResponse, error)
	Transcribe(ctx context.Context, req speech.TranscribeRequest) (*speech.TranscribeResponse, error)
	SaveConversation(ctx context.Context, req chat.SaveConversationRequest) error
}

// Options tunes a Controller. Zero values fall back to defaults.
type Options struct {
	Voice          string
	AutoSpeak      bool
	AutoSpeakDelay time.Duration
	// ContentType labels captures that do not report their own.
	ContentType string
	Now         func() time.Time
	Logger      *slog.Logger
}

const defaultAutoSpeakDelay = 800 * time.Millisecond

func (o Options) withDefaults() Options {
	if o.Voice == "" {
		o.Voice = speech.DefaultVoice
	}
	if o.AutoSpeakDelay <= 0 {
		o.AutoSpeakDelay = defaultAutoSpeakDelay
	}
	if o.ContentType == "" {
		o.ContentType = speech.DefaultContentType
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Result is the outcome of a best-effort operation. Callers are free to
// ignore it.
type Result struct {
	Op  string
	Err error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Err == nil }

type recordingState int

const (
	recordingIdle recordingState = iota
	recordingStarting
	recordingActive
)

// State is a read-only copy of what a renderer needs.
type State struct {
	Open      bool           `json:"open"`
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
	Draft     string         `json:"draft"`
	Loading   bool           `json:"loading"`
	Recording bool           `json:"recording"`
	PlayingID int64          `json:"playingId,omitempty"`
	AutoSpeak bool           `json:"autoSpeak"`
}

// CanListen reports whether the listen affordances are enabled.
func (s State) CanListen() bool { return s.PlayingID == 0 }

// Controller owns one widget instance.
type Controller struct {
	backend  Backend
	sessions *session.Manager
	recorder media.Recorder
	player   media.Player
	opts     Options
	log      *slog.Logger

	mu          sync.Mutex
	open        bool
	messages    []chat.Message
	lastID      int64
	draft       string
	loading     bool
	epoch       uint64
	initialSent bool
	recState    recordingState
	capture     media.Capture
	playingID   int64
	playback    media.Playback
	playSerial  uint64
	autoSpeak   bool
	tornDown    bool

	bg sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// New creates a closed controller and activates the session.
func New(backend Backend, sessions *session.Manager, recorder media.Recorder, player media.Player, opts Options) *Controller {
	opts = opts.withDefaults()
	if recorder == nil {
		recorder = media.DeniedRecorder{}
	}
	if player == nil {
		player = media.SilentPlayer{}
	}

	sessions.Activate()

	return &Controller{
		backend:   backend,
		sessions:  sessions,
		recorder:  recorder,
		player:    player,
		opts:      opts,
		log:       opts.Logger.With("component", "widget"),
		autoSpeak: opts.AutoSpeak,
		subs:      make(map[int]chan struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]chat.Message, len(c.messages))
	copy(messages, c.messages)

	return State{
		Open:      c.open,
		SessionID: c.sessions.Current(),
		Messages:  messages,
		Draft:     c.draft,
		Loading:   c.loading,
		Recording: c.recState != recordingIdle,
		PlayingID: c.playingID,
		AutoSpeak: c.autoSpeak,
	}
}

// Subscribe returns a channel that receives a value after state changes.
// Notifications coalesce; a slow reader sees one pending signal, then calls
// Snapshot. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Wait blocks until background work (saves, scheduled auto-speak) drains or
// ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.bg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
