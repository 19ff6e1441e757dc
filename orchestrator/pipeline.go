package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pawdcast/pawdcast/clients"
	cfg "github.com/pawdcast/pawdcast/config"
	"github.com/pawdcast/pawdcast/detect"
	"github.com/pawdcast/pawdcast/media"
	"github.com/pawdcast/pawdcast/script"
)

type Deps struct {
	Media  Media
	TTS    clients.Synthesizer
	Writer clients.SkitWriter
	Log    logrus.FieldLogger
}

type Pipeline struct {
	cfg    *cfg.Root
	media  Media
	tts    clients.Synthesizer
	writer clients.SkitWriter
	detect *detect.Detector
	log    logrus.FieldLogger
}

func NewPipeline(c *cfg.Root, d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		cfg:    c,
		media:  d.Media,
		tts:    d.TTS,
		writer: d.Writer,
		detect: detect.New(d.Media, c.Detection, log),
		log:    log,
	}
}

// Analyze parses skit and finds one audio segment per dialogue line, either
// by silence detection or from manual timestamps.
func (p *Pipeline) Analyze(ctx context.Context, audio, skit, timestamps string) (*Analysis, error) {
	lines := script.Parse(skit)
	if len(lines) == 0 {
		return nil, script.ErrNoDialogue
	}
	total, err := p.media.Duration(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", detect.ErrDetectionUnavailable, err)
	}

	var res detect.Result
	if strings.TrimSpace(timestamps) != "" {
		manual, err := detect.ParseManual(timestamps)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMissingInput, err)
		}
		res, err = detect.FromManual(manual, total, len(lines))
		if err != nil {
			return nil, err
		}
	} else {
		res, err = p.detect.Detect(ctx, audio, total, len(lines))
		if err != nil {
			return nil, err
		}
	}
	p.log.WithFields(logrus.Fields{
		"lines":  len(lines),
		"total":  total,
		"tier":   res.Tier.String(),
		"points": res.Points,
	}).Info("switch points")
	return &Analysis{Lines: lines, Total: total, Points: res.Points, Tier: res.Tier.String()}, nil
}

// Run produces a finished video for req. Nothing is written to the output
// location unless every stage succeeds.
func (p *Pipeline) Run(ctx context.Context, req Request, progress media.ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(float64, string) {}
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrMissingInput, req.Mode)
	}
	if err := req.Templates.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingInput, err)
	}
	job := req.JobID
	if job == "" {
		job = uuid.NewString()
	}
	if !ValidJobID(job) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJob, job)
	}
	log := p.log.WithFields(logrus.Fields{"job": job, "mode": req.Mode})
	start := time.Now()

	// Claim the job directory up front; it is dropped again unless the run
	// succeeds.
	jobDir, err := mkJobDir(p.cfg.Paths.Outputs, job)
	if err != nil {
		return nil, err
	}
	done := false
	defer func() {
		if !done {
			os.RemoveAll(jobDir)
		}
	}()

	work, err := os.MkdirTemp(p.cfg.Paths.Work, "pawdcast-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	res := &Result{JobID: job, Mode: req.Mode}
	var assembleFrom, assembleSpan float64
	switch req.Mode {
	case ModeAudio:
		if req.Audio == "" {
			return nil, fmt.Errorf("%w: audio file", ErrMissingInput)
		}
		progress(0.05, "detecting speaker changes")
		a, err := p.Analyze(ctx, req.Audio, req.Skit, req.Timestamps)
		if err != nil {
			return nil, err
		}
		progress(0.2, "splitting audio")
		cuts, err := p.media.CutAudio(ctx, req.Audio, a.Points, work)
		if err != nil {
			return nil, err
		}
		res.Skit, res.Lines, res.Points, res.Tier = req.Skit, a.Lines, a.Points, a.Tier
		res.Segments = segmentsFromCuts(a.Lines, cuts)
		assembleFrom, assembleSpan = 0, 1

	case ModeSkit:
		res.Skit = req.Skit
		res.Lines = script.Parse(req.Skit)
		if len(res.Lines) == 0 {
			return nil, script.ErrNoDialogue
		}
		res.Segments, err = p.synthesize(ctx, res.Lines, work, scaleProgress(progress, 0, 0.5))
		if err != nil {
			return nil, err
		}
		assembleFrom, assembleSpan = 0.5, 0.5

	case ModeArticle:
		if strings.TrimSpace(req.Article) == "" {
			return nil, fmt.Errorf("%w: article text", ErrMissingInput)
		}
		if p.writer == nil {
			return nil, fmt.Errorf("%w: skit writer", ErrNoProvider)
		}
		progress(0.05, "writing skit")
		skit, err := p.writer.WriteSkit(ctx, req.Article)
		if err != nil {
			return nil, err
		}
		progress(0.2, "skit ready")
		res.Lines = script.Parse(skit)
		if len(res.Lines) == 0 {
			log.WithField("skit", skit).Debug("unparseable skit")
			return nil, script.ErrNoDialogue
		}
		res.Skit = script.Format(res.Lines)
		res.Segments, err = p.synthesize(ctx, res.Lines, work, scaleProgress(progress, 0.2, 0.4))
		if err != nil {
			return nil, err
		}
		assembleFrom, assembleSpan = 0.6, 0.4
	}

	final := filepath.Join(work, "final.mp4")
	if err := p.media.Assemble(ctx, clipsFromSegments(res.Segments), req.Templates, final,
		scaleProgress(progress, assembleFrom, assembleSpan)); err != nil {
		return nil, err
	}

	res.GeneratedAt = time.Now()
	if err := persist(res, jobDir, final, req.Output); err != nil {
		return nil, err
	}
	done = true
	log.WithFields(logrus.Fields{
		"segments": len(res.Segments),
		"video":    res.Video,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("video created")
	return res, nil
}

// synthesize renders each line to its own WAV file and measures it.
func (p *Pipeline) synthesize(ctx context.Context, lines []script.DialogueLine, dir string, progress media.ProgressFunc) ([]Segment, error) {
	if p.tts == nil {
		return nil, fmt.Errorf("%w: speech synthesizer", ErrNoProvider)
	}
	progress(0, fmt.Sprintf("generating audio for %d lines", len(lines)))
	segs := make([]Segment, 0, len(lines))
	offset := 0.0
	for i, l := range lines {
		out := filepath.Join(dir, fmt.Sprintf("line_%d.wav", i))
		voice := p.cfg.VoiceFor(l.Speaker)
		p.log.WithFields(logrus.Fields{"segment": i, "voice": voice}).Debug("synthesizing")
		if err := p.tts.Synthesize(ctx, l.Text, voice, out); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		d, err := p.media.Duration(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		segs = append(segs, Segment{Index: i, Speaker: l.Speaker, Text: l.Text, Audio: out, Start: offset, Duration: d})
		offset += d
		progress(float64(i+1)/float64(len(lines)), fmt.Sprintf("line %d/%d", i+1, len(lines)))
	}
	return segs, nil
}
