package clients

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNoAudio is returned when a TTS response carries no audio payload.
var ErrNoAudio = errors.New("no audio generated")

// Synthesizer renders one line of text with the given voice into a WAV file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// SkitWriter turns an article into a two-host dialogue script.
type SkitWriter interface {
	WriteSkit(ctx context.Context, article string) (string, error)
}

type HTTP struct{ c *http.Client }

func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{c: &http.Client{Timeout: timeout}}
}

const skitPrompt = `Transform this article into a short podcast conversation between two hosts.

Rules:
- 4-6 exchanges total
- Speaker 1 leads, Speaker 2 reacts
- Natural, conversational tone
- Format: Speaker 1: "text" or Speaker 2: "text"

Article:
%s

Write the skit:`

func ttsPrompt(text string) string { return `Say this naturally: "` + text + `"` }
