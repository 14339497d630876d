package speech

const (
	// DefaultVoice 语音合成默认音色
	DefaultVoice = "Joanna"
	// DefaultContentType is the encoding reported for captured audio when the
	// recorder does not name one.
	DefaultContentType = "audio/webm"
)

// SpeechRequest 发送到 /speech 的请求体
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// TranscribeRequest 发送到 /transcribe 的请求体，Audio 为 base64 编码
type TranscribeRequest struct {
	Audio       string `json:"audio"`
	ContentType string `json:"content_type"`
}

// Recording is one finalized microphone capture.
type Recording struct {
	Data        []byte
	ContentType string
}
