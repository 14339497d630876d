package widget

import (
	"context"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
)

// WelcomeText opens every conversation.
const WelcomeText = "Welcome to our Dental Assistant Chatbot! I can help you with:\n\n" +
	"• Booking appointments\n" +
	"• Information about our dental services\n" +
	"• Answering questions about dental procedures\n\n" +
	"To book an appointment, simply type \"I'd like to book an appointment\" or ask me about our available services.\n\n" +
	"How can I assist you today?"

// 固定的失败回复
const (
	replyNotUnderstood   = "Sorry, I couldn't understand your message. Can you try again?"
	replyConnectionIssue = "Sorry, I'm having trouble connecting to the server. Please try again later."
)

const (
	timeLayout = "15:04"
	dateLayout = "1/2/2006"
)

// appendLocked stamps and appends a message. IDs come from the clock but
// never repeat or go backwards within a transcript.
func (c *Controller) appendLocked(text string, sender chat.Sender) chat.Message {
	now := c.opts.Now()

	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id

	msg := chat.Message{
		ID:     id,
		Text:   text,
		Sender: sender,
		Time:   now.Format(timeLayout),
		Date:   now.Format(dateLayout),
	}
	if sender == chat.SenderUser {
		msg.Status = chat.StatusSent
	} else {
		msg.AudioAvailable = true
	}

	c.messages = append(c.messages, msg)
	return msg
}

// Open shows the widget, seeding the welcome message on an empty transcript.
func (c *Controller) Open() {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.open = true
	if len(c.messages) == 0 {
		c.appendLocked(WelcomeText, chat.SenderBot)
	}
	c.mu.Unlock()

	c.notify()
}

// OpenWithMessage opens the widget and sends text once per open cycle.
// It reports whether text was sent.
func (c *Controller) OpenWithMessage(ctx context.Context, text string) bool {
	c.Open()

	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	if c.initialSent {
		c.mu.Unlock()
		return false
	}
	c.initialSent = true
	c.mu.Unlock()

	return c.SendMessage(ctx, text)
}

// SetDraft replaces the input buffer.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()

	c.notify()
}

// Draft returns the input buffer.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit sends the input buffer and clears it. Blank drafts are ignored.
// It blocks until the reply is in the transcript and reports whether a
// message was sent.
func (c *Controller) Submit(ctx context.Context) bool {
	c.mu.Lock()
	text := c.draft
	if !c.canSendLocked(text) {
		c.mu.Unlock()
		return false
	}
	c.draft = ""
	epoch, token := c.beginSendLocked(text)
	c.mu.Unlock()

	c.notify()
	c.exchange(ctx, epoch, token, text)
	return true
}

// SendMessage sends text without touching the input buffer.
func (c *Controller) SendMessage(ctx context.Context, text string) bool {
	c.mu.Lock()
	if !c.canSendLocked(text) {
		c.mu.Unlock()
		return false
	}
	epoch, token := c.beginSendLocked(text)
	c.mu.Unlock()

	c.notify()
	c.exchange(ctx, epoch, token, text)
	return true
}

func (c *Controller) canSendLocked(text string) bool {
	return !c.tornDown && c.open && strings.TrimSpace(text) != ""
}

func (c *Controller) beginSendLocked(text string) (uint64, string) {
	c.appendLocked(text, chat.SenderUser)
	c.loading = true
	return c.epoch, c.sessions.Current()
}

// exchange posts text to the chat endpoint and appends exactly one bot
// message for it, unless the conversation moved on in the meantime.
func (c *Controller) exchange(ctx context.Context, epoch uint64, token, text string) {
	c.log.Info("sending message", "session", token, "preview", preview(text))

	resp, err := c.backend.Chat(ctx, chat.ChatRequest{Message: text, SessionID: token})

	reply := replyConnectionIssue
	ok := false
	switch {
	case err != nil:
		c.log.Error("chat request failed", "error", err)
	case !resp.OK():
		c.log.Warn("chat endpoint reported failure", "status", resp.Status, "text", preview(resp.Text))
		reply = replyNotUnderstood
	default:
		reply = resp.Text
		ok = true
	}

	c.mu.Lock()
	if epoch != c.epoch || c.tornDown {
		c.mu.Unlock()
		c.log.Debug("dropping reply for a finished conversation")
		return
	}
	if err == nil && resp.SessionID != "" {
		c.sessions.Adopt(resp.SessionID)
	}
	c.loading = false
	msg := c.appendLocked(reply, chat.SenderBot)
	speak := ok && c.autoSpeak
	c.mu.Unlock()

	c.notify()

	if speak {
		c.scheduleSpeak(epoch, msg)
	}
}

// Close persists the conversation and resets the widget to its hidden state.
// An active recording is discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.open || c.tornDown {
		c.mu.Unlock()
		return
	}

	c.persistLocked("close")
	c.stopPlaybackLocked()
	c.releaseCaptureLocked()
	c.resetLocked()
	c.open = false
	c.initialSent = false
	c.mu.Unlock()

	c.notify()
}

// NewConversation persists the current conversation, rotates the session
// and starts over with a fresh welcome message. It returns the new token.
func (c *Controller) NewConversation() string {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ""
	}

	c.persistLocked("new_conversation")
	c.stopPlaybackLocked()
	c.releaseCaptureLocked()
	token := c.sessions.Rotate()
	c.resetLocked()
	c.open = true
	c.appendLocked(WelcomeText, chat.SenderBot)
	c.mu.Unlock()

	c.log.Info("started new conversation", "session", token)
	c.notify()
	return token
}

// Teardown stops playback, drops any recording and persists what is left.
// Afterwards only Snapshot and Wait are meaningful.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}

	c.stopPlaybackLocked()
	c.releaseCaptureLocked()
	c.persistLocked("teardown")
	c.tornDown = true
	c.epoch++
	c.loading = false
	c.mu.Unlock()

	c.notify()
}

func (c *Controller) resetLocked() {
	c.epoch++
	c.messages = nil
	c.draft = ""
	c.loading = false
}

func preview(text string) string {
	return runewidth.Truncate(strings.ReplaceAll(text, "\n", " "), 30, "...")
}
