package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Clip is one spoken line ready to be put on screen.
type Clip struct {
	Speaker  int
	Audio    string
	Duration float64
}

// Templates are the talking-head loops and the outro.
type Templates struct {
	Speaker1 string
	Speaker2 string
	Closing  string
}

// For returns the template used for speaker. Speaker 1 gets the first loop,
// everyone else the second.
func (t Templates) For(speaker int) string {
	if speaker == 1 {
		return t.Speaker1
	}
	return t.Speaker2
}

// Validate checks that all template files exist.
func (t Templates) Validate() error {
	for _, tp := range []struct{ name, path string }{
		{"speaker 1", t.Speaker1},
		{"speaker 2", t.Speaker2},
		{"closing", t.Closing},
	} {
		if tp.path == "" {
			return fmt.Errorf("missing %s template", tp.name)
		}
		if _, err := os.Stat(tp.path); err != nil {
			return fmt.Errorf("%s template: %w", tp.name, err)
		}
	}
	return nil
}

// ProgressFunc receives overall completion in [0,1] and a short status.
type ProgressFunc func(fraction float64, msg string)

// Assemble renders one looping template clip per audio clip, joins them and
// appends the closing clip with its own audio. Intermediate files are written
// next to out.
func (f *FFmpeg) Assemble(ctx context.Context, clips []Clip, tmpl Templates, out string, progress ProgressFunc) error {
	if progress == nil {
		progress = func(float64, string) {}
	}
	if len(clips) == 0 {
		return fmt.Errorf("assemble: no clips")
	}
	dir := filepath.Dir(out)

	progress(0.4, "building video segments")
	var parts []string
	for i, c := range clips {
		video := filepath.Join(dir, fmt.Sprintf("seg_%d.mp4", i))
		if _, _, err := f.run(ctx, fmt.Sprintf("video segment %d", i), f.FFmpegBin,
			f.loopArgs(tmpl.For(c.Speaker), ClampDuration(c.Duration), video)...); err != nil {
			return err
		}
		muxed := filepath.Join(dir, fmt.Sprintf("seg_audio_%d.mp4", i))
		if _, _, err := f.run(ctx, fmt.Sprintf("add audio %d", i), f.FFmpegBin,
			f.muxArgs(video, c.Audio, muxed)...); err != nil {
			return err
		}
		parts = append(parts, muxed)
	}

	progress(0.7, "joining segments")
	list := filepath.Join(dir, "concat.txt")
	if err := writeConcatList(list, parts); err != nil {
		return err
	}
	joined := filepath.Join(dir, "main.mp4")
	if _, _, err := f.run(ctx, "concat", f.FFmpegBin, f.concatArgs(list, joined)...); err != nil {
		return err
	}

	progress(0.85, "adding outro")
	if _, _, err := f.run(ctx, "closing", f.FFmpegBin, f.closingArgs(joined, tmpl.Closing, out)...); err != nil {
		return err
	}
	progress(1.0, "done")
	return nil
}

func (f *FFmpeg) loopArgs(template string, duration float64, out string) []string {
	d := formatFloat(duration)
	w, h := f.Opts.Width, f.Opts.Height
	filter := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,"+
			"loop=loop=-1:size=32767,trim=duration=%s,setpts=PTS-STARTPTS[outv]",
		w, h, w, h, d)
	return []string{
		"-y", "-i", template,
		"-filter_complex", filter,
		"-map", "[outv]",
		"-c:v", "libx264", "-preset", f.Opts.SegmentPreset, "-crf", fmt.Sprint(f.Opts.SegmentCRF),
		"-t", d, "-an", out,
	}
}

func (f *FFmpeg) muxArgs(video, audio, out string) []string {
	return []string{
		"-y", "-i", video, "-i", audio,
		"-c:v", "copy", "-c:a", "aac", "-b:a", f.Opts.AudioBitrate,
		"-shortest", out,
	}
}

func (f *FFmpeg) concatArgs(list, out string) []string {
	return []string{
		"-y", "-f", "concat", "-safe", "0", "-i", list,
		"-c:v", "libx264", "-preset", f.Opts.FinalPreset, "-crf", fmt.Sprint(f.Opts.FinalCRF),
		out,
	}
}

func (f *FFmpeg) closingArgs(main, closing, out string) []string {
	return []string{
		"-y", "-i", main, "-i", closing,
		"-filter_complex", "[0:v][0:a][1:v][1:a]concat=n=2:v=1:a=1[v][a]",
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-c:a", "aac",
		"-preset", f.Opts.FinalPreset, "-crf", fmt.Sprint(f.Opts.FinalCRF),
		"-movflags", "+faststart",
		out,
	}
}

// writeConcatList writes an ffmpeg concat demuxer list. Entries are made
// absolute since the demuxer resolves them against the list's directory.
func writeConcatList(path string, files []string) error {
	var sb strings.Builder
	for _, p := range files {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		// concat demuxer quoting: ' is written as '\''
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
