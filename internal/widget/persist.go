package widget

import (
	"context"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
)

// persistLocked hands the transcript to a background save when it holds
// more than the welcome message.
func (c *Controller) persistLocked(reason string) {
	if len(c.messages) <= 1 {
		return
	}

	req := chat.SaveConversationRequest{
		SessionID: c.sessions.Current(),
		Messages:  chat.Archive(c.messages),
	}

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if res := c.save(context.Background(), req); !res.OK() {
			c.log.Warn("conversation not saved", "reason", reason, "session", req.SessionID, "error", res.Err)
			return
		}
		c.log.Info("conversation saved", "reason", reason, "session", req.SessionID, "messages", len(req.Messages))
	}()
}

// save posts the transcript once. Failures are returned, never retried.
func (c *Controller) save(ctx context.Context, req chat.SaveConversationRequest) Result {
	return Result{Op: "save", Err: c.backend.SaveConversation(ctx, req)}
}
