package media

import (
	"context"
	"regexp"
	"strconv"
)

var silenceEndRe = regexp.MustCompile(`silence_end: (-?\d+(?:\.\d+)?)`)

// SilenceEnds runs ffmpeg's silencedetect filter over audio and returns the
// instants at which detected silences end, in report order.
func (f *FFmpeg) SilenceEnds(ctx context.Context, audio string, noiseDB, minSilence float64) ([]float64, error) {
	_, stderr, err := f.run(ctx, "silencedetect", f.FFmpegBin, silenceArgs(audio, noiseDB, minSilence)...)
	if err != nil {
		return nil, err
	}
	return parseSilenceEnds(stderr), nil
}

func silenceArgs(audio string, noiseDB, minSilence float64) []string {
	filter := "silencedetect=noise=" + formatFloat(noiseDB) + "dB:d=" + formatFloat(minSilence)
	return []string{"-hide_banner", "-nostats", "-i", audio, "-af", filter, "-f", "null", "-"}
}

// parseSilenceEnds collects the reported silence ends. Ends at or before the
// start of the stream cannot separate two lines and are skipped.
func parseSilenceEnds(stderr string) []float64 {
	var ends []float64
	for _, m := range silenceEndRe.FindAllStringSubmatch(stderr, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 {
			continue
		}
		ends = append(ends, v)
	}
	return ends
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
