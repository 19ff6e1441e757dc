package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/pawdcast/pawdcast/clients"
	cfg "github.com/pawdcast/pawdcast/config"
	"github.com/pawdcast/pawdcast/detect"
	"github.com/pawdcast/pawdcast/media"
	"github.com/pawdcast/pawdcast/script"
)

type fakeMedia struct {
	total       float64
	durations   map[string]float64
	ends        map[float64][]float64
	silenceErr  error
	assembleErr error

	silenceCalls int
	clips        []media.Clip
	tmpl         media.Templates
}

func (f *fakeMedia) Duration(_ context.Context, path string) (float64, error) {
	if d, ok := f.durations[filepath.Base(path)]; ok {
		return d, nil
	}
	return f.total, nil
}

func (f *fakeMedia) SilenceEnds(_ context.Context, _ string, noiseDB, _ float64) ([]float64, error) {
	f.silenceCalls++
	if f.silenceErr != nil {
		return nil, f.silenceErr
	}
	return f.ends[noiseDB], nil
}

func (f *fakeMedia) CutAudio(_ context.Context, _ string, points []float64, dir string) ([]media.Cut, error) {
	var cuts []media.Cut
	for i := 0; i+1 < len(points); i++ {
		cuts = append(cuts, media.Cut{
			Path:     filepath.Join(dir, fmt.Sprintf("segment_%02d.wav", i)),
			Start:    points[i],
			Duration: media.ClampDuration(points[i+1] - points[i]),
		})
	}
	return cuts, nil
}

func (f *fakeMedia) Assemble(_ context.Context, clips []media.Clip, tmpl media.Templates, out string, progress media.ProgressFunc) error {
	f.clips, f.tmpl = clips, tmpl
	progress(0.4, "building")
	if f.assembleErr != nil {
		return f.assembleErr
	}
	progress(1, "done")
	return os.WriteFile(out, []byte("mp4"), 0o644)
}

type fakeTTS struct {
	calls [][2]string
	err   error
}

func (f *fakeTTS) Synthesize(_ context.Context, text, voice, out string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, [2]string{text, voice})
	return os.WriteFile(out, []byte("RIFF"), 0o644)
}

type fakeWriter struct{ skit string }

func (f fakeWriter) WriteSkit(context.Context, string) (string, error) { return f.skit, nil }

type fixture struct {
	cfg   *cfg.Root
	media *fakeMedia
	tts   *fakeTTS
	tmpl  media.Templates
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &cfg.Root{}
	c.Detection = detect.DefaultParams()
	c.Voices = cfg.Voices{Speaker1: "Puck", Speaker2: "Charon"}
	c.Paths.Work = t.TempDir()
	c.Paths.Outputs = t.TempDir()

	dir := t.TempDir()
	var tmpl media.Templates
	for name, dst := range map[string]*string{"t1.mp4": &tmpl.Speaker1, "t2.mp4": &tmpl.Speaker2, "tc.mp4": &tmpl.Closing} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		*dst = p
	}
	return &fixture{cfg: c, media: &fakeMedia{total: 30}, tts: &fakeTTS{}, tmpl: tmpl}
}

func (fx *fixture) pipeline(w clients.SkitWriter) *Pipeline {
	return NewPipeline(fx.cfg, Deps{Media: fx.media, TTS: fx.tts, Writer: w})
}

const threeLines = "Speaker 1: \"Welcome\"\nSpeaker 2: \"Thanks\"\nSpeaker 1: \"Bye\""

func TestRunAudioEvenSpacing(t *testing.T) {
	fx := newFixture(t)
	var fractions []float64
	res, err := fx.pipeline(nil).Run(context.Background(), Request{
		JobID:     "job1",
		Mode:      ModeAudio,
		Audio:     "input.wav",
		Skit:      threeLines,
		Templates: fx.tmpl,
	}, func(f float64, _ string) { fractions = append(fractions, f) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []float64{0, 10, 20, 30}; !reflect.DeepEqual([]float64(res.Points), want) {
		t.Fatalf("points = %v, want %v", res.Points, want)
	}
	if res.Tier != "even" {
		t.Fatalf("tier = %q", res.Tier)
	}
	if len(fx.media.clips) != 3 {
		t.Fatalf("clips = %v", fx.media.clips)
	}
	for i, c := range fx.media.clips {
		if math.Abs(c.Duration-10) > 1e-9 || c.Speaker != []int{1, 2, 1}[i] {
			t.Fatalf("clip %d = %+v", i, c)
		}
	}
	if fx.media.tmpl != fx.tmpl {
		t.Fatalf("templates not passed through")
	}
	if len(fx.tts.calls) != 0 {
		t.Fatalf("tts used in audio mode")
	}

	wantVideo := filepath.Join(fx.cfg.Paths.Outputs, "job1", "pawdcast.mp4")
	if res.Video != wantVideo {
		t.Fatalf("video = %q, want %q", res.Video, wantVideo)
	}
	if _, err := os.Stat(wantVideo); err != nil {
		t.Fatalf("video missing: %v", err)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress went backwards: %v", fractions)
		}
	}
	if fractions[len(fractions)-1] != 1 {
		t.Fatalf("progress did not finish: %v", fractions)
	}

	b, err := os.ReadFile(filepath.Join(res.Dir, "segments.json"))
	if err != nil {
		t.Fatal(err)
	}
	var segs []Segment
	if err := json.Unmarshal(b, &segs); err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 || segs[1].Start != 10 || segs[1].Audio != "segment_01.wav" {
		t.Fatalf("segments.json = %+v", segs)
	}
	b, err = os.ReadFile(filepath.Join(res.Dir, "manifest.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var manifest Result
	if err := yaml.Unmarshal(b, &manifest); err != nil {
		t.Fatal(err)
	}
	if manifest.JobID != "job1" || manifest.Mode != ModeAudio || len(manifest.Lines) != 3 {
		t.Fatalf("manifest = %+v", manifest)
	}
}

func TestRunAudioManualTimestamps(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.pipeline(nil).Run(context.Background(), Request{
		Mode:       ModeAudio,
		Audio:      "input.wav",
		Skit:       threeLines,
		Timestamps: "0, 8.5, 15.2",
		Templates:  fx.tmpl,
		Output:     filepath.Join(t.TempDir(), "out", "final.mp4"),
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []float64{0, 8.5, 15.2, 30}; !reflect.DeepEqual([]float64(res.Points), want) {
		t.Fatalf("points = %v", res.Points)
	}
	if res.Tier != "manual" || fx.media.silenceCalls != 0 {
		t.Fatalf("tier = %q silence calls = %d", res.Tier, fx.media.silenceCalls)
	}
	if res.JobID == "" {
		t.Fatal("job id not generated")
	}
	if _, err := os.Stat(res.Video); err != nil || !strings.HasSuffix(res.Video, "final.mp4") {
		t.Fatalf("video %q: %v", res.Video, err)
	}
}

func TestRunSkit(t *testing.T) {
	fx := newFixture(t)
	fx.media.durations = map[string]float64{"line_0.wav": 2.5, "line_1.wav": 1.25, "line_2.wav": 3}
	res, err := fx.pipeline(nil).Run(context.Background(), Request{Mode: ModeSkit, Skit: threeLines, Templates: fx.tmpl}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantCalls := [][2]string{{"Welcome", "Puck"}, {"Thanks", "Charon"}, {"Bye", "Puck"}}
	if !reflect.DeepEqual(fx.tts.calls, wantCalls) {
		t.Fatalf("tts calls = %v", fx.tts.calls)
	}
	if fx.media.silenceCalls != 0 {
		t.Fatal("silence detection used in skit mode")
	}
	if res.Segments[2].Start != 3.75 || res.Segments[2].Duration != 3 {
		t.Fatalf("segment 2 = %+v", res.Segments[2])
	}
}

func TestRunArticle(t *testing.T) {
	fx := newFixture(t)
	w := fakeWriter{skit: "Sure! Here's the skit:\nSpeaker 1: \"Big news today\"\nSpeaker 2: \"Tell me more\""}
	res, err := fx.pipeline(w).Run(context.Background(), Request{Mode: ModeArticle, Article: "Dogs can now vote.", Templates: fx.tmpl}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Lines) != 2 || len(fx.tts.calls) != 2 {
		t.Fatalf("lines = %v calls = %v", res.Lines, fx.tts.calls)
	}
	if !reflect.DeepEqual(script.Parse(res.Skit), res.Lines) {
		t.Fatalf("stored skit does not round trip: %q", res.Skit)
	}
}

func TestRunFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		mutate  func(*fixture)
		req     func(*fixture) Request
		writer  clients.SkitWriter
		wantErr error
		wantMsg string
	}{
		{
			name:    "unparseable skit",
			req:     func(fx *fixture) Request { return Request{Mode: ModeAudio, Audio: "a.wav", Skit: "hello", Templates: fx.tmpl} },
			wantErr: script.ErrNoDialogue,
			wantMsg: "Could not parse skit",
		},
		{
			name:    "silence detection fails",
			mutate:  func(fx *fixture) { fx.media.silenceErr = boom },
			req:     func(fx *fixture) Request { return Request{Mode: ModeAudio, Audio: "a.wav", Skit: threeLines, Templates: fx.tmpl} },
			wantErr: detect.ErrDetectionUnavailable,
			wantMsg: "Cannot analyze audio",
		},
		{
			name:    "bad timestamps",
			req:     func(fx *fixture) Request { return Request{Mode: ModeAudio, Audio: "a.wav", Skit: threeLines, Timestamps: "x", Templates: fx.tmpl} },
			wantErr: ErrMissingInput,
		},
		{
			name:    "tts returns nothing",
			mutate:  func(fx *fixture) { fx.tts.err = clients.ErrNoAudio },
			req:     func(fx *fixture) Request { return Request{Mode: ModeSkit, Skit: threeLines, Templates: fx.tmpl} },
			wantErr: clients.ErrNoAudio,
			wantMsg: "no audio",
		},
		{
			name:    "article without writer",
			req:     func(fx *fixture) Request { return Request{Mode: ModeArticle, Article: "text", Templates: fx.tmpl} },
			wantErr: ErrNoProvider,
		},
		{
			name: "missing template",
			req: func(fx *fixture) Request {
				tm := fx.tmpl
				tm.Closing = ""
				return Request{Mode: ModeSkit, Skit: threeLines, Templates: tm}
			},
			wantErr: ErrMissingInput,
		},
		{
			name:    "assembly fails",
			mutate:  func(fx *fixture) { fx.media.assembleErr = boom },
			req:     func(fx *fixture) Request { return Request{Mode: ModeSkit, Skit: threeLines, Templates: fx.tmpl} },
			wantErr: boom,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			if tt.mutate != nil {
				tt.mutate(fx)
			}
			_, err := fx.pipeline(tt.writer).Run(context.Background(), tt.req(fx), nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(UserMessage(err), tt.wantMsg) {
				t.Fatalf("UserMessage = %q", UserMessage(err))
			}
			entries, _ := os.ReadDir(fx.cfg.Paths.Outputs)
			if len(entries) != 0 {
				t.Fatalf("partial output written: %v", entries)
			}
			work, _ := os.ReadDir(fx.cfg.Paths.Work)
			if len(work) != 0 {
				t.Fatalf("scratch dir not cleaned: %v", work)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	fx := newFixture(t)
	fx.media.total = 12
	fx.media.ends = map[float64][]float64{-50: {0.4, 5.5}}
	a, err := fx.pipeline(nil).Analyze(context.Background(), "a.wav", "Speaker 1: \"A\"\nSpeaker 2: \"B\"", "")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 5.5, 12}; !reflect.DeepEqual([]float64(a.Points), want) || a.Tier != "coarse" {
		t.Fatalf("analysis = %+v", a)
	}
	if fx.media.silenceCalls != 1 {
		t.Fatalf("silence calls = %d", fx.media.silenceCalls)
	}
}

func TestScaleProgress(t *testing.T) {
	var got []float64
	fn := scaleProgress(func(f float64, _ string) { got = append(got, f) }, 0.6, 0.4)
	fn(0, "")
	fn(0.5, "")
	fn(2, "")
	if want := []float64{0.6, 0.8, 1.0}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUserMessageDefault(t *testing.T) {
	if UserMessage(nil) != "" {
		t.Fatal("nil error should have no message")
	}
	if got := UserMessage(errors.New("disk full")); got != "Error: disk full" {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(fmt.Errorf("x: %w", media.ErrToolMissing)); got != "FFmpeg not available" {
		t.Fatalf("got %q", got)
	}
}

func TestRunRejectsUnsafeJobIDs(t *testing.T) {
	for _, job := range []string{"../x", "../../tmp/x", "a/b", ".", "..", "has space", strings.Repeat("a", 65)} {
		t.Run(job, func(t *testing.T) {
			fx := newFixture(t)
			parent := filepath.Dir(fx.cfg.Paths.Outputs)
			before, _ := os.ReadDir(parent)

			_, err := fx.pipeline(nil).Run(context.Background(), Request{
				JobID: job, Mode: ModeSkit, Skit: threeLines, Templates: fx.tmpl,
			}, nil)
			if !errors.Is(err, ErrInvalidJob) {
				t.Fatalf("err = %v, want ErrInvalidJob", err)
			}
			if len(fx.tts.calls) != 0 {
				t.Fatal("work started for a rejected job")
			}
			after, _ := os.ReadDir(parent)
			if len(after) != len(before) {
				t.Fatalf("entries next to outputs changed: %v -> %v", before, after)
			}
		})
	}
}

func TestRunDuplicateJob(t *testing.T) {
	fx := newFixture(t)
	req := Request{JobID: "same", Mode: ModeSkit, Skit: threeLines, Templates: fx.tmpl}
	first, err := fx.pipeline(nil).Run(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(first.Dir, "manifest.yaml")
	before, _ := os.ReadFile(manifest)

	req.Skit = "Speaker 2: \"Different\""
	if _, err := fx.pipeline(nil).Run(context.Background(), req, nil); !errors.Is(err, ErrJobExists) {
		t.Fatalf("err = %v, want ErrJobExists", err)
	}
	after, _ := os.ReadFile(manifest)
	if !bytes.Equal(before, after) {
		t.Fatal("first job's manifest was overwritten")
	}
	if _, err := os.Stat(first.Video); err != nil {
		t.Fatalf("first job's video removed: %v", err)
	}
}

func TestMkJobDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	dir, err := mkJobDir(root, "job-1_a")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(dir) != root {
		t.Fatalf("dir = %q, want under %q", dir, root)
	}
	if _, err := mkJobDir(root, "job-1_a"); !errors.Is(err, ErrJobExists) {
		t.Fatalf("second claim: %v", err)
	}
	if _, err := mkJobDir(root, "../escape"); !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("escape: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape")); !os.IsNotExist(err) {
		t.Fatalf("escape dir created: %v", err)
	}
}
