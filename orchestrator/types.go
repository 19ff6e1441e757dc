package orchestrator

import (
	"context"
	"time"

	"github.com/pawdcast/pawdcast/detect"
	"github.com/pawdcast/pawdcast/media"
	"github.com/pawdcast/pawdcast/script"
)

// Mode selects where the speech audio comes from.
type Mode string

const (
	ModeAudio   Mode = "audio"   // uploaded recording + skit
	ModeSkit    Mode = "skit"    // skit, one TTS call per line
	ModeArticle Mode = "article" // article -> skit -> TTS
)

func (m Mode) Valid() bool {
	switch m {
	case ModeAudio, ModeSkit, ModeArticle:
		return true
	}
	return false
}

// Media is the ffmpeg collaborator used by the pipeline.
type Media interface {
	detect.SilenceDetector
	Duration(ctx context.Context, path string) (float64, error)
	CutAudio(ctx context.Context, audio string, points []float64, dir string) ([]media.Cut, error)
	Assemble(ctx context.Context, clips []media.Clip, tmpl media.Templates, out string, progress media.ProgressFunc) error
}

type Request struct {
	JobID   string
	Mode    Mode
	Skit    string
	Article string
	// Audio is the recording for ModeAudio.
	Audio string
	// Timestamps optionally replaces detection in ModeAudio, e.g. "8.5, 15.2".
	Timestamps string
	Templates  media.Templates
	// Output is where the finished video is written. Empty means
	// <outputs>/<job>/pawdcast.mp4.
	Output string
}

type Segment struct {
	Index    int     `json:"index" yaml:"index"`
	Speaker  int     `json:"speaker" yaml:"speaker"`
	Text     string  `json:"text" yaml:"text"`
	Audio    string  `json:"audio" yaml:"audio"`
	Start    float64 `json:"start" yaml:"start"`
	Duration float64 `json:"duration" yaml:"duration"`
}

// Analysis is the parse + split stage of ModeAudio.
type Analysis struct {
	Lines  []script.DialogueLine `json:"lines" yaml:"lines"`
	Total  float64               `json:"total" yaml:"total"`
	Points detect.SwitchPoints   `json:"points" yaml:"points"`
	Tier   string                `json:"tier" yaml:"tier"`
}

type Result struct {
	JobID       string                `json:"job_id" yaml:"job_id"`
	Mode        Mode                  `json:"mode" yaml:"mode"`
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	Skit        string                `json:"skit,omitempty" yaml:"skit,omitempty"`
	Lines       []script.DialogueLine `json:"lines" yaml:"lines"`
	Points      detect.SwitchPoints   `json:"points,omitempty" yaml:"points,omitempty"`
	Tier        string                `json:"tier,omitempty" yaml:"tier,omitempty"`
	Segments    []Segment             `json:"segments" yaml:"segments"`
	Video       string                `json:"video" yaml:"video"`
	Dir         string                `json:"dir" yaml:"dir"`
}
