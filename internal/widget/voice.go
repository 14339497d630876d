package widget

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/speech"
)

const (
	replyAudioNotUnderstood = "Sorry, I couldn't understand the audio. Please try again or type your message."
	replyAudioFailed        = "Sorry, there was an error processing your audio. Please try again later or type your message."
)

// StartRecording opens the microphone. Denial is logged and leaves the
// widget unchanged. It reports whether a recording is now active.
func (c *Controller) StartRecording(ctx context.Context) bool {
	c.mu.Lock()
	if c.tornDown || !c.open || c.recState != recordingIdle {
		c.mu.Unlock()
		return false
	}
	c.recState = recordingStarting
	epoch := c.epoch
	c.mu.Unlock()

	capture, err := c.recorder.Start(ctx)

	c.mu.Lock()
	if err != nil {
		c.recState = recordingIdle
		c.mu.Unlock()
		c.log.Error("error accessing microphone", "error", err)
		return false
	}
	if epoch != c.epoch || c.tornDown {
		c.mu.Unlock()
		capture.Release()
		return false
	}
	c.capture = capture
	c.recState = recordingActive
	c.mu.Unlock()

	c.log.Info("recording started")
	c.notify()
	return true
}

// StopRecording finalizes the active recording, releases the device and
// transcribes it. A transcript is sent like a typed message; anything else
// ends in an in-transcript apology. Without an active recording it does
// nothing.
func (c *Controller) StopRecording(ctx context.Context) {
	c.mu.Lock()
	if c.recState != recordingActive {
		c.mu.Unlock()
		return
	}
	capture := c.capture
	c.capture = nil
	c.recState = recordingIdle
	c.loading = true
	epoch := c.epoch
	c.mu.Unlock()

	c.notify()

	rec, err := capture.Stop()
	if err != nil {
		c.log.Error("failed to finalize recording", "error", err)
		c.failTranscription(epoch, replyAudioFailed)
		return
	}
	if len(rec.Data) == 0 {
		c.log.Warn("recording is empty")
		c.failTranscription(epoch, replyAudioNotUnderstood)
		return
	}

	contentType := rec.ContentType
	if contentType == "" {
		contentType = c.opts.ContentType
	}
	c.log.Info("sending audio for transcription", "bytes", len(rec.Data), "content_type", contentType)

	resp, err := c.backend.Transcribe(ctx, speech.TranscribeRequest{
		Audio:       base64.StdEncoding.EncodeToString(rec.Data),
		ContentType: contentType,
	})
	if err != nil {
		c.log.Error("transcription request failed", "error", err)
		c.failTranscription(epoch, replyAudioFailed)
		return
	}
	if resp.Error != "" {
		c.log.Warn("transcription reported an error", "error", resp.Error, "has_text", resp.Text != "")
	}
	if strings.TrimSpace(resp.Text) == "" {
		c.failTranscription(epoch, replyAudioNotUnderstood)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch || c.tornDown {
		c.mu.Unlock()
		return
	}
	c.appendLocked(resp.Text, chat.SenderUser)
	token := c.sessions.Current()
	c.mu.Unlock()

	c.notify()
	c.exchange(ctx, epoch, token, resp.Text)
}

func (c *Controller) failTranscription(epoch uint64, reply string) {
	c.mu.Lock()
	if epoch != c.epoch || c.tornDown {
		c.mu.Unlock()
		return
	}
	c.loading = false
	c.appendLocked(reply, chat.SenderBot)
	c.mu.Unlock()

	c.notify()
}

// releaseCaptureLocked frees the microphone without transcribing.
func (c *Controller) releaseCaptureLocked() {
	if c.capture != nil {
		c.capture.Release()
		c.capture = nil
	}
	c.recState = recordingIdle
}
