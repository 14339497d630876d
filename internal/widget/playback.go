package widget

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/chat"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/speech"
)

const clipFormat = "mp3"

// Speak synthesizes text and plays it, marking messageID as playing until
// playback ends. Whatever was playing is stopped first. Failures clear the
// indicator and are only reported through the Result.
func (c *Controller) Speak(ctx context.Context, text string, messageID int64) Result {
	res := Result{Op: "speak"}

	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		res.Err = ErrClosed
		return res
	}
	c.stopPlaybackLocked()
	serial := c.playSerial
	c.playingID = messageID
	c.mu.Unlock()

	c.notify()
	c.log.Info("requesting speech synthesis", "message_id", messageID, "preview", preview(text))

	resp, err := c.backend.Synthesize(ctx, speech.SpeechRequest{Text: text, Voice: c.opts.Voice})
	if err != nil {
		res.Err = fmt.Errorf("synthesize: %w", err)
		c.endPlayback(serial, res.Err)
		return res
	}
	if resp.Audio == "" {
		res.Err = ErrNoAudio
		c.endPlayback(serial, res.Err)
		return res
	}
	audio, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		res.Err = fmt.Errorf("decode audio: %w", err)
		c.endPlayback(serial, res.Err)
		return res
	}

	if !c.ownsPlayback(serial) {
		res.Err = ErrPlaybackStopped
		return res
	}
	pb, err := c.player.Play(ctx, audio, clipFormat)
	if err != nil {
		res.Err = err
		c.endPlayback(serial, err)
		return res
	}

	// Play runs unlocked, so a newer clip or a stop may have claimed the
	// indicator meanwhile.
	c.mu.Lock()
	if serial != c.playSerial {
		c.mu.Unlock()
		pb.Stop()
		res.Err = ErrPlaybackStopped
		return res
	}
	c.playback = pb
	c.mu.Unlock()

	select {
	case err = <-pb.Done():
	case <-ctx.Done():
		pb.Stop()
		err = ctx.Err()
	}

	if !c.endPlayback(serial, err) {
		res.Err = ErrPlaybackStopped
		return res
	}
	res.Err = err
	return res
}

func (c *Controller) ownsPlayback(serial uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return serial == c.playSerial
}

// CanListen reports whether no message is playing.
func (c *Controller) CanListen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playingID == 0
}

// SetAutoSpeak switches automatic playback of new replies.
func (c *Controller) SetAutoSpeak(on bool) {
	c.mu.Lock()
	c.autoSpeak = on
	c.mu.Unlock()

	c.log.Info("auto-speak toggled", "enabled", on)
	c.notify()
}

// ToggleAutoSpeak flips auto-speak and returns the new value.
func (c *Controller) ToggleAutoSpeak() bool {
	c.mu.Lock()
	on := !c.autoSpeak
	c.autoSpeak = on
	c.mu.Unlock()

	c.log.Info("auto-speak toggled", "enabled", on)
	c.notify()
	return on
}

// scheduleSpeak plays msg after the auto-speak delay if its conversation is
// still current by then.
func (c *Controller) scheduleSpeak(epoch uint64, msg chat.Message) {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.bg.Add(1)
	c.mu.Unlock()

	time.AfterFunc(c.opts.AutoSpeakDelay, func() {
		defer c.bg.Done()

		c.mu.Lock()
		current := epoch == c.epoch && !c.tornDown && c.autoSpeak
		c.mu.Unlock()
		if !current {
			return
		}

		if res := c.Speak(context.Background(), msg.Text, msg.ID); !res.OK() {
			c.log.Warn("auto-speak failed", "message_id", msg.ID, "error", res.Err)
		}
	})
}

// stopPlaybackLocked interrupts the current clip and clears the indicator.
func (c *Controller) stopPlaybackLocked() {
	c.playSerial++
	if c.playback != nil {
		c.playback.Stop()
		c.playback = nil
	}
	c.playingID = 0
}

// endPlayback clears the indicator if serial still owns it and reports
// whether it did.
func (c *Controller) endPlayback(serial uint64, err error) bool {
	c.mu.Lock()
	if serial != c.playSerial {
		c.mu.Unlock()
		return false
	}
	c.playingID = 0
	c.playback = nil
	c.mu.Unlock()

	if err != nil {
		c.log.Error("playback failed", "error", err)
	} else {
		c.log.Info("audio playback ended")
	}
	c.notify()
	return true
}
