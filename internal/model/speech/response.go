package speech

// SpeechResponse 是 /speech 的响应体，Audio 为 base64 编码的 mp3
type SpeechResponse struct {
	Audio  string `json:"audio,omitempty"`
	Format string `json:"format,omitempty"`
	Voice  string `json:"voice,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TranscribeResponse 是 /transcribe 的响应体
type TranscribeResponse struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

