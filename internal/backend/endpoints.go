package backend

const (
	endpointChat             = "/chat"
	endpointSpeech           = "/speech"
	endpointTranscribe       = "/transcribe"
	endpointSaveConversation = "/save-conversation"
	endpointHealth           = "/health"
)
