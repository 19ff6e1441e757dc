package media

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
)

// MinSegment is the shortest duration handed to ffmpeg for any cut.
const MinSegment = 0.1

// Cut is one audio segment written to disk.
type Cut struct {
	Path     string  `json:"path" yaml:"path"`
	Start    float64 `json:"start" yaml:"start"`
	Duration float64 `json:"duration" yaml:"duration"`
}

// CutAudio splits audio at consecutive switch points into WAV files under dir.
// points must contain the start and end of the recording.
func (f *FFmpeg) CutAudio(ctx context.Context, audio string, points []float64, dir string) ([]Cut, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("cut audio: need at least 2 points, got %d", len(points))
	}
	cuts := make([]Cut, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		c := Cut{
			Path:     filepath.Join(dir, fmt.Sprintf("segment_%02d.wav", i)),
			Start:    points[i],
			Duration: ClampDuration(points[i+1] - points[i]),
		}
		if _, _, err := f.run(ctx, fmt.Sprintf("split %d", i), f.FFmpegBin, f.cutArgs(audio, c)...); err != nil {
			return nil, err
		}
		cuts = append(cuts, c)
	}
	return cuts, nil
}

func (f *FFmpeg) cutArgs(audio string, c Cut) []string {
	return []string{
		"-y", "-i", audio,
		"-ss", formatFloat(c.Start),
		"-t", formatFloat(c.Duration),
		"-c:a", "pcm_s16le",
		"-ar", fmt.Sprint(f.Opts.SampleRate),
		"-ac", "1",
		c.Path,
	}
}

// ClampDuration keeps media operations away from zero or negative lengths.
func ClampDuration(d float64) float64 { return math.Max(MinSegment, d) }
