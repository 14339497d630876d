package chat

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Status 用户消息旁显示的投递标记
type Status string

const StatusSent Status = "sent"

// Message is one entry of the widget transcript.
//
// Time and Date are presentation strings fixed at creation time. ID is only a
// render key and the correlation token for playback state.
type Message struct {
	ID             int64  `json:"id"`
	Text           string `json:"text"`
	Sender         Sender `json:"sender"`
	Time           string `json:"time"`
	Date           string `json:"date"`
	Status         Status `json:"status,omitempty"`
	AudioAvailable bool   `json:"audioAvailable,omitempty"`
}

// IsBot reports whether the message was produced by the assistant.
func (m Message) IsBot() bool {
	return m.Sender == SenderBot
}
