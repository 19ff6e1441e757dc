// Package detect infers where a single recording of a multi-line dialogue
// switches from one line to the next.
//
// Detection runs up to three tiers: a coarse silence pass tuned for long,
// deliberately inserted pauses; a fine pass for natural gaps; and even spacing
// when neither pass finds enough gaps. The result always has one more point
// than there are lines, starts at 0 and ends at the total duration.
package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

var (
	// ErrDetectionUnavailable wraps failures of the silence detector.
	ErrDetectionUnavailable = errors.New("cannot analyze audio")
	// ErrDegenerateInput reports n < 1 or a non-positive duration.
	ErrDegenerateInput = errors.New("degenerate detection input")
)

// SilenceDetector reports the instants, in seconds from the start, at which
// sustained silence below noiseDB for at least minSilence seconds ends.
type SilenceDetector interface {
	SilenceEnds(ctx context.Context, audio string, noiseDB, minSilence float64) ([]float64, error)
}

// Tier identifies the stage that produced a set of switch points.
type Tier int

const (
	TierNone Tier = iota
	TierCoarse
	TierFine
	TierEven
	TierManual
)

func (t Tier) String() string {
	switch t {
	case TierCoarse:
		return "coarse"
	case TierFine:
		return "fine"
	case TierEven:
		return "even"
	case TierManual:
		return "manual"
	default:
		return "none"
	}
}

// Pass configures one silence detection run.
type Pass struct {
	NoiseDB    float64 `mapstructure:"noise_db" yaml:"noise_db" json:"noise_db"`
	MinSilence float64 `mapstructure:"min_silence" yaml:"min_silence" json:"min_silence"`
	// LeadIn drops silence ends at or before this many seconds. Zero keeps all.
	LeadIn float64 `mapstructure:"lead_in" yaml:"lead_in" json:"lead_in"`
}

// Params holds both silence passes.
type Params struct {
	Coarse Pass `mapstructure:"coarse" yaml:"coarse" json:"coarse"`
	Fine   Pass `mapstructure:"fine" yaml:"fine" json:"fine"`
}

// DefaultParams returns the thresholds the detector was tuned with.
func DefaultParams() Params {
	return Params{
		Coarse: Pass{NoiseDB: -50, MinSilence: 0.8, LeadIn: 1.0},
		Fine:   Pass{NoiseDB: -32, MinSilence: 0.38},
	}
}

// SwitchPoints is [0, t1, ..., t(n-1), total].
type SwitchPoints []float64

// Segments returns the number of segments the points delimit.
func (p SwitchPoints) Segments() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Interior returns the points strictly between start and end.
func (p SwitchPoints) Interior() []float64 {
	if len(p) < 2 {
		return nil
	}
	return p[1 : len(p)-1]
}

// Result is the outcome of one detection.
type Result struct {
	Points SwitchPoints `json:"points" yaml:"points"`
	Tier   Tier         `json:"-" yaml:"-"`
}

// Detector is stateless apart from its configuration; Detect is safe for
// concurrent use if the SilenceDetector is.
type Detector struct {
	silence SilenceDetector
	params  Params
	log     logrus.FieldLogger
}

// New returns a detector using sd for silence analysis.
func New(sd SilenceDetector, params Params, log logrus.FieldLogger) *Detector {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Detector{silence: sd, params: params, log: log}
}

// Detect partitions audio of the given total duration into n segments.
func (d *Detector) Detect(ctx context.Context, audio string, total float64, n int) (Result, error) {
	if n < 1 || total <= 0 {
		return Result{}, fmt.Errorf("%w: n=%d total=%.3f", ErrDegenerateInput, n, total)
	}
	want := n - 1
	log := d.log.WithFields(logrus.Fields{"audio": audio, "segments": n})
	if want == 0 {
		return Result{Points: assemble(nil, total, n), Tier: TierNone}, nil
	}

	coarse, err := d.run(ctx, audio, d.params.Coarse)
	if err != nil {
		return Result{}, err
	}
	log.WithField("candidates", len(coarse)).Debug("coarse silence pass")
	if len(coarse) >= want {
		return Result{Points: assemble(coarse[:want], total, n), Tier: TierCoarse}, nil
	}

	fine, err := d.run(ctx, audio, d.params.Fine)
	if err != nil {
		return Result{}, err
	}
	log.WithField("candidates", len(fine)).Debug("fine silence pass")
	if len(fine) >= want {
		return Result{Points: assemble(fine[:want], total, n), Tier: TierFine}, nil
	}

	log.Info("not enough silence gaps, spacing segments evenly")
	return Result{Points: assemble(EvenSplits(total, n), total, n), Tier: TierEven}, nil
}

func (d *Detector) run(ctx context.Context, audio string, p Pass) ([]float64, error) {
	ends, err := d.silence.SilenceEnds(ctx, audio, p.NoiseDB, p.MinSilence)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetectionUnavailable, err)
	}
	out := make([]float64, 0, len(ends))
	for _, t := range ends {
		if p.LeadIn > 0 && t <= p.LeadIn {
			continue
		}
		out = append(out, t)
	}
	sort.Float64s(out)
	return out, nil
}

// EvenSplits returns the n-1 interior points of n equal-width segments.
func EvenSplits(total float64, n int) []float64 {
	if n < 2 {
		return nil
	}
	step := total / float64(n)
	out := make([]float64, n-1)
	for i := range out {
		out[i] = step * float64(i+1)
	}
	return out
}

// assemble frames interior points with 0 and total, drops repeats and pads
// with total until there are exactly n+1 points.
func assemble(interior []float64, total float64, n int) SwitchPoints {
	pts := make([]float64, 0, n+1)
	pts = append(pts, 0)
	for _, t := range interior {
		// ffmpeg can report ends slightly past the measured duration.
		if t > total {
			t = total
		}
		if t < 0 {
			t = 0
		}
		pts = append(pts, t)
	}
	pts = append(pts, total)
	sort.Float64s(pts)

	out := pts[:1]
	for _, t := range pts[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	for len(out) < n+1 {
		out = append(out, total)
	}
	return SwitchPoints(out[:n+1])
}
