package orchestrator

import (
	"math"

	"github.com/pawdcast/pawdcast/media"
	"github.com/pawdcast/pawdcast/script"
)

// segmentsFromCuts pairs dialogue lines with audio cuts in order.
func segmentsFromCuts(lines []script.DialogueLine, cuts []media.Cut) []Segment {
	n := min(len(lines), len(cuts))
	out := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Segment{
			Index:    i,
			Speaker:  lines[i].Speaker,
			Text:     lines[i].Text,
			Audio:    cuts[i].Path,
			Start:    cuts[i].Start,
			Duration: cuts[i].Duration,
		})
	}
	return out
}

func clipsFromSegments(segs []Segment) []media.Clip {
	out := make([]media.Clip, 0, len(segs))
	for _, s := range segs {
		out = append(out, media.Clip{Speaker: s.Speaker, Audio: s.Audio, Duration: s.Duration})
	}
	return out
}

// scaleProgress maps a stage's [0,1] progress onto [from, from+span].
func scaleProgress(fn media.ProgressFunc, from, span float64) media.ProgressFunc {
	return func(f float64, msg string) {
		f = math.Max(0, math.Min(1, f))
		fn(from+f*span, msg)
	}
}
