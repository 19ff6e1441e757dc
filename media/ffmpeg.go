// Package media wraps the ffmpeg and ffprobe command line tools.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrToolMissing is returned when ffmpeg or ffprobe cannot be executed.
var ErrToolMissing = errors.New("ffmpeg not available")

// CmdError describes a failed tool invocation.
type CmdError struct {
	Desc   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CmdError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
		msg = msg[i+1:]
	}
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Desc, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Desc, e.Err, msg)
}

func (e *CmdError) Unwrap() error { return e.Err }

// Options controls encoding of generated media.
type Options struct {
	Width         int
	Height        int
	SegmentPreset string
	SegmentCRF    int
	FinalPreset   string
	FinalCRF      int
	AudioBitrate  string
	SampleRate    int
}

// DefaultOptions matches 1080p output with 24 kHz mono speech segments.
func DefaultOptions() Options {
	return Options{
		Width:         1920,
		Height:        1080,
		SegmentPreset: "ultrafast",
		SegmentCRF:    28,
		FinalPreset:   "fast",
		FinalCRF:      23,
		AudioBitrate:  "192k",
		SampleRate:    24000,
	}
}

// FFmpeg runs ffmpeg/ffprobe binaries.
type FFmpeg struct {
	FFmpegBin  string
	FFprobeBin string
	Opts       Options

	log logrus.FieldLogger
}

// New returns an FFmpeg using the given binaries, falling back to PATH lookups.
func New(ffmpegBin, ffprobeBin string, opts Options, log logrus.FieldLogger) *FFmpeg {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FFmpeg{FFmpegBin: ffmpegBin, FFprobeBin: ffprobeBin, Opts: opts, log: log}
}

// run executes bin and returns captured stdout and stderr. A non-zero exit is
// reported as *CmdError.
func (f *FFmpeg) run(ctx context.Context, desc, bin string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	f.log.WithField("cmd", desc).Debugf("%s %s", bin, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		var ee *exec.Error
		if errors.As(err, &ee) || errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrToolMissing, err)
		}
		f.log.WithField("cmd", desc).WithError(err).Debug(stderr.String())
		return stdout.String(), stderr.String(), &CmdError{Desc: desc, Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), stderr.String(), nil
}

// Check verifies that ffmpeg can be executed.
func (f *FFmpeg) Check(ctx context.Context) error {
	_, _, err := f.run(ctx, "ffmpeg", f.FFmpegBin, "-version")
	return err
}

// Duration returns the container duration of path in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	out, _, err := f.run(ctx, "ffprobe", f.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", strings.TrimSpace(out), err)
	}
	return d, nil
}
