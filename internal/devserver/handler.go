// Package devserver is a local stand-in for the hosted dental assistant API.
// It serves the same endpoint contracts so the widget can be developed and
// tested without cloud credentials.
package devserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/speech"
	"github.com/zhouzirui/dental-assistant/chatbot/pkg/utils"
)

const (
	replyServiceUnavailable = "Sorry, the dental assistant service is currently unavailable."
	msgSynthesisUnavailable = "Speech synthesis service is currently unavailable."
	msgRecognitionUnavail   = "Speech recognition service is currently unavailable."
)

// Handler serves the stand-in endpoints.
type Handler struct {
	responder     Responder
	conversations *Conversations
	archive       Archive
	synth         Synthesizer
	transcriber   Transcriber
	now           func() time.Time
	log           *slog.Logger
}

// Deps wires the services behind the handler. Nil fields get in-memory or
// unavailable defaults.
type Deps struct {
	Responder     Responder
	Conversations *Conversations
	Archive       Archive
	Synthesizer   Synthesizer
	Transcriber   Transcriber
	Now           func() time.Time
}

// New 创建替身后端处理器
func New(deps Deps) *Handler {
	if deps.Responder == nil {
		deps.Responder = KeywordResponder{}
	}
	if deps.Conversations == nil {
		deps.Conversations = NewConversations()
	}
	if deps.Archive == nil {
		deps.Archive = &MemoryArchive{}
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = &FixtureSynthesizer{}
	}
	if deps.Transcriber == nil {
		deps.Transcriber = FixtureTranscriber{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Handler{
		responder:     deps.Responder,
		conversations: deps.Conversations,
		archive:       deps.Archive,
		synth:         deps.Synthesizer,
		transcriber:   deps.Transcriber,
		now:           deps.Now,
		log:           slog.Default().With("component", "devserver"),
	}
}

// RegisterRoutes 注册替身后端路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/health", h.handleHealth)
	r.Post("/chat", h.handleChat)
	r.Get("/chat/health", h.handleChatHealth)
	r.Post("/speech", h.handleSpeech)
	r.Post("/transcribe", h.handleTranscribe)
	r.Post("/save-conversation", h.handleSaveConversation)
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"message":   "Dental Chatbot API is running (local stand-in)",
		"version":   "1.0",
		"endpoints": []string{"/chat", "/health", "/speech", "/transcribe", "/save-conversation"},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleChatHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"message":   "Chat service is healthy",
		"responder": h.responder.Name(),
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chat.ChatRequest
	if !decodeBody(r, &payload) {
		utils.RespondJSON(w, http.StatusBadRequest, chat.ChatResponse{Text: "Missing request body", Status: "error"})
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondJSON(w, http.StatusBadRequest, chat.ChatResponse{Text: "Missing message parameter", Status: "error"})
		return
	}

	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	h.log.Info("received chat message", "session", sessionID, "message", payload.Message)

	ctx := r.Context()
	reply, err := h.responder.Reply(ctx, sessionID, payload.Message, h.conversations.History(ctx, sessionID, historyLimit))
	if err != nil {
		h.log.Error("responder failed", "session", sessionID, "error", err)
		utils.RespondJSON(w, http.StatusOK, chat.ChatResponse{Text: replyServiceUnavailable, Status: "error"})
		return
	}

	if err := h.conversations.Record(ctx, sessionID, Turn{
		Message:  payload.Message,
		Response: reply.Text,
		Intent:   reply.Intent,
	}); err != nil {
		h.log.Warn("conversation turn not stored", "session", sessionID, "error", err)
	}

	utils.RespondJSON(w, http.StatusOK, chat.ChatResponse{
		Status:    chat.StatusOK,
		Text:      reply.Text,
		Intent:    reply.Intent,
		SessionID: sessionID,
	})
}

func (h *Handler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var payload speech.SpeechRequest
	if !decodeBody(r, &payload) {
		utils.RespondError(w, http.StatusBadRequest, "Missing request body")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Missing text parameter")
		return
	}
	voice := payload.Voice
	if voice == "" {
		voice = speech.DefaultVoice
	}

	clip, err := h.synth.Synthesize(r.Context(), payload.Text, voice)
	if err != nil {
		h.log.Error("speech synthesis failed", "error", err)
		msg := err.Error()
		if errors.Is(err, ErrUnavailable) {
			msg = msgSynthesisUnavailable
		}
		utils.RespondJSON(w, http.StatusOK, speech.SpeechResponse{Error: msg})
		return
	}

	utils.RespondJSON(w, http.StatusOK, speech.SpeechResponse{
		Audio:  base64.StdEncoding.EncodeToString(clip),
		Format: "mp3",
		Voice:  voice,
	})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var payload speech.TranscribeRequest
	if !decodeBody(r, &payload) {
		utils.RespondError(w, http.StatusBadRequest, "Missing request body")
		return
	}
	if payload.Audio == "" {
		utils.RespondError(w, http.StatusBadRequest, "Missing audio parameter")
		return
	}
	contentType := payload.ContentType
	if contentType == "" {
		contentType = speech.DefaultContentType
	}

	audio, err := base64.StdEncoding.DecodeString(payload.Audio)
	if err != nil {
		utils.RespondJSON(w, http.StatusOK, speech.TranscribeResponse{Error: "Invalid audio data: " + err.Error()})
		return
	}
	h.log.Info("received audio for transcription", "bytes", len(audio), "content_type", contentType)

	text, err := h.transcriber.Transcribe(r.Context(), audio, contentType)
	if err != nil {
		h.log.Error("transcription failed", "error", err)
		msg := err.Error()
		if errors.Is(err, ErrUnavailable) {
			msg = msgRecognitionUnavail
		}
		utils.RespondJSON(w, http.StatusOK, speech.TranscribeResponse{Error: msg})
		return
	}

	utils.RespondJSON(w, http.StatusOK, speech.TranscribeResponse{Text: text})
}

func (h *Handler) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	var payload chat.SaveConversationRequest
	if !decodeBody(r, &payload) {
		utils.RespondError(w, http.StatusBadRequest, "Missing request body")
		return
	}
	if payload.SessionID == "" || len(payload.Messages) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}
	h.log.Info("saving conversation", "session", payload.SessionID, "messages", len(payload.Messages))

	conv := ArchivedConversation{
		SessionID: payload.SessionID,
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000000"),
		Messages:  payload.Messages,
	}
	if err := h.archive.Store(r.Context(), conv); err != nil {
		h.log.Error("failed to store conversation", "session", payload.SessionID, "error", err)
		utils.RespondJSON(w, http.StatusOK, chat.SaveConversationResponse{Error: "Failed to store conversation"})
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.SaveConversationResponse{Success: true})
}

// decodeBody reports false for a missing, empty or malformed JSON body.
func decodeBody(r *http.Request, dst any) bool {
	if r.Body == nil {
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !errors.Is(err, io.EOF) {
			slog.Debug("invalid request body", "component", "devserver", "error", err)
		}
		return false
	}
	return true
}
