package chat

// StatusOK is the status value the chat endpoint reports on success.
const StatusOK = "ok"

// ChatRequest 发送到 /chat 的请求体
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse 是 /chat 的响应体。SessionID 非空时表示服务端轮换了会话。
type ChatResponse struct {
	Status    string `json:"status"`
	Text      string `json:"text"`
	Intent    string `json:"intent,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// OK reports whether the backend accepted the message.
func (r ChatResponse) OK() bool {
	return r.Status == StatusOK
}

// SavedMessage is the archived form of a Message, stripped of local-only fields.
type SavedMessage struct {
	Text   string `json:"text"`
	Time   string `json:"time"`
	Date   string `json:"date"`
	Sender Sender `json:"sender"`
}

// SaveConversationRequest 发送到 /save-conversation 的请求体
type SaveConversationRequest struct {
	SessionID string         `json:"session_id"`
	Messages  []SavedMessage `json:"messages"`
}

// SaveConversationResponse 是 /save-conversation 的响应体
type SaveConversationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Archive converts a transcript into its persisted form, keeping order.
func Archive(messages []Message) []SavedMessage {
	saved := make([]SavedMessage, 0, len(messages))
	for _, msg := range messages {
		saved = append(saved, SavedMessage{
			Text:   msg.Text,
			Time:   msg.Time,
			Date:   msg.Date,
			Sender: msg.Sender,
		})
	}
	return saved
}
