package orchestrator

import (
	"errors"

	"github.com/pawdcast/pawdcast/clients"
	"github.com/pawdcast/pawdcast/detect"
	"github.com/pawdcast/pawdcast/media"
	"github.com/pawdcast/pawdcast/script"
)

var (
	ErrMissingInput = errors.New("missing input")
	ErrNoProvider   = errors.New("no provider configured")
	ErrInvalidJob   = errors.New("invalid job id")
	ErrJobExists    = errors.New("job already exists")
)

// UserMessage maps a pipeline error to a single line suitable for end users.
// The full error is meant to go to logs or a details view.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, script.ErrNoDialogue):
		return `Could not parse skit. Use: Speaker 1: "text"`
	case errors.Is(err, media.ErrToolMissing):
		return "FFmpeg not available"
	case errors.Is(err, detect.ErrDetectionUnavailable):
		return "Cannot analyze audio. Enter the split timestamps manually instead."
	case errors.Is(err, detect.ErrDegenerateInput):
		return "Audio has no usable duration"
	case errors.Is(err, clients.ErrNoAudio):
		return "Speech synthesis returned no audio"
	case errors.Is(err, ErrMissingInput), errors.Is(err, ErrNoProvider),
		errors.Is(err, ErrInvalidJob), errors.Is(err, ErrJobExists):
		return err.Error()
	default:
		return "Error: " + err.Error()
	}
}
