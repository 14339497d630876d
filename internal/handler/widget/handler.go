package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	widgetctl "github.com/zhouzirui/dental-assistant/chatbot/internal/widget"
	"github.com/zhouzirui/dental-assistant/chatbot/pkg/utils"
)

// Controller is the widget surface the bridge drives.
type Controller interface {
	Snapshot() widgetctl.State
	Subscribe() (<-chan struct{}, func())
	Open()
	OpenWithMessage(ctx context.Context, text string) bool
	Close()
	SetDraft(text string)
	Submit(ctx context.Context) bool
	SendMessage(ctx context.Context, text string) bool
	StartRecording(ctx context.Context) bool
	StopRecording(ctx context.Context)
	Speak(ctx context.Context, text string, messageID int64) widgetctl.Result
	SetAutoSpeak(on bool)
	NewConversation() string
}

var (
	errWidgetClosed    = errors.New("widget is closed")
	errTextRequired    = errors.New("text is required")
	errMessageNotFound = errors.New("message not found")
	errPlaybackBusy    = errors.New("another message is playing")
	errRecordingFailed = errors.New("recording could not be started")
)

// Handler exposes a widget Controller over REST, SSE and WebSocket.
type Handler struct {
	ctrl Controller
	// async runs operations that block on the backend; replies reach clients
	// through the state stream.
	async     func(func())
	heartbeat time.Duration
	ws        *wsHub
	log       *slog.Logger
}

// Option customises a Handler.
type Option func(*Handler)

// WithRunner replaces the goroutine launcher for blocking operations.
func WithRunner(run func(func())) Option {
	return func(h *Handler) { h.async = run }
}

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) { h.heartbeat = d }
}

// New 创建挂件桥接处理器
func New(ctrl Controller, opts ...Option) *Handler {
	h := &Handler{
		ctrl:      ctrl,
		async:     func(fn func()) { go fn() },
		heartbeat: 15 * time.Second,
		log:       slog.Default().With("component", "bridge"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ws = newWSHub(h)
	return h
}

// RegisterRoutes 注册挂件相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/widget", func(wr chi.Router) {
		wr.Get("/state", h.handleState)
		wr.Post("/open", h.handleOpen)
		wr.Post("/close", h.handleClose)
		wr.Put("/draft", h.handleDraft)
		wr.Post("/messages", h.handleSend)
		wr.Post("/messages/{messageID}/speak", h.handleSpeak)
		wr.Post("/recording/start", h.handleRecordStart)
		wr.Post("/recording/stop", h.handleRecordStop)
		wr.Put("/auto-speak", h.handleAutoSpeak)
		wr.Post("/conversation/new", h.handleNewConversation)
		wr.Get("/events", h.handleEvents)
		wr.Get("/ws", h.ws.handleWebSocket)
	})
}

type openPayload struct {
	Message string `json:"message"`
}

type textPayload struct {
	Text string `json:"text"`
}

type autoSpeakPayload struct {
	Enabled bool `json:"enabled"`
}

type speakPayload struct {
	ID int64 `json:"id"`
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var payload openPayload
	if err := decodeOptional(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.open(r.Context(), payload.Message)
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleClose(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.Close()
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	var payload textPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.ctrl.SetDraft(payload.Text)
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload textPayload
	if err := decodeOptional(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.send(r.Context(), payload.Text); err != nil {
		h.respondCommandError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := h.speak(r.Context(), id); err != nil {
		h.respondCommandError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if err := h.startRecording(r.Context()); err != nil {
		h.respondCommandError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	h.stopRecording(r.Context())
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) handleAutoSpeak(w http.ResponseWriter, r *http.Request) {
	var payload autoSpeakPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.ctrl.SetAutoSpeak(payload.Enabled)
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleNewConversation(w http.ResponseWriter, _ *http.Request) {
	token := h.ctrl.NewConversation()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": token,
		"state":     h.ctrl.Snapshot(),
	})
}

// handleEvents streams the widget state as SSE "state" events.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, cancel := h.ctrl.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	utils.SendSSEEvent(w, flusher, "state", h.ctrl.Snapshot())

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	h.log.Info("event stream opened", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("event stream closed", "remote", r.RemoteAddr)
			return
		case <-updates:
			utils.SendSSEEvent(w, flusher, "state", h.ctrl.Snapshot())
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}

// Commands shared by the REST and WebSocket surfaces.

func (h *Handler) open(ctx context.Context, message string) {
	if strings.TrimSpace(message) == "" {
		h.ctrl.Open()
		return
	}
	h.ctrl.Open()
	bg := context.WithoutCancel(ctx)
	h.async(func() { h.ctrl.OpenWithMessage(bg, message) })
}

func (h *Handler) send(ctx context.Context, text string) error {
	state := h.ctrl.Snapshot()
	if !state.Open {
		return errWidgetClosed
	}

	bg := context.WithoutCancel(ctx)
	if strings.TrimSpace(text) != "" {
		h.async(func() { h.ctrl.SendMessage(bg, text) })
		return nil
	}
	if strings.TrimSpace(state.Draft) == "" {
		return errTextRequired
	}
	h.async(func() { h.ctrl.Submit(bg) })
	return nil
}

func (h *Handler) speak(ctx context.Context, id int64) error {
	state := h.ctrl.Snapshot()
	msg, ok := findMessage(state.Messages, id)
	if !ok || !msg.AudioAvailable {
		return errMessageNotFound
	}
	if !state.CanListen() {
		return errPlaybackBusy
	}

	bg := context.WithoutCancel(ctx)
	h.async(func() {
		if res := h.ctrl.Speak(bg, msg.Text, msg.ID); !res.OK() {
			h.log.Warn("playback failed", "message_id", msg.ID, "error", res.Err)
		}
	})
	return nil
}

func (h *Handler) startRecording(ctx context.Context) error {
	if !h.ctrl.Snapshot().Open {
		return errWidgetClosed
	}
	if !h.ctrl.StartRecording(context.WithoutCancel(ctx)) {
		return errRecordingFailed
	}
	return nil
}

func (h *Handler) stopRecording(ctx context.Context) {
	bg := context.WithoutCancel(ctx)
	h.async(func() { h.ctrl.StopRecording(bg) })
}

func (h *Handler) respondCommandError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errTextRequired):
		status = http.StatusBadRequest
	case errors.Is(err, errMessageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errWidgetClosed), errors.Is(err, errPlaybackBusy), errors.Is(err, errRecordingFailed):
		status = http.StatusConflict
	}
	utils.RespondError(w, status, err.Error())
}

func findMessage(messages []chat.Message, id int64) (chat.Message, bool) {
	for _, m := range messages {
		if m.ID == id {
			return m, true
		}
	}
	return chat.Message{}, false
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
