package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pawdcast/pawdcast/clients"
	cfg "github.com/pawdcast/pawdcast/config"
	"github.com/pawdcast/pawdcast/detect"
	"github.com/pawdcast/pawdcast/orchestrator"
	"github.com/pawdcast/pawdcast/script"
)

func TestRenderAnalysis(t *testing.T) {
	a := &orchestrator.Analysis{
		Lines: []script.DialogueLine{
			{Speaker: 1, Text: "Welcome to the show"},
			{Speaker: 2, Text: strings.Repeat("woof ", 20)},
		},
		Total:  12,
		Points: detect.SwitchPoints{0, 4.5, 12},
		Tier:   "fine",
	}
	out := renderAnalysis(a)
	for _, want := range []string{"2 lines", "fine", "Speaker 1", "Welcome to the show", "4.50s", "7.50s", "…"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableAlignsColumns(t *testing.T) {
	out := table([]string{"A", "B"}, [][]string{{"long value", "x"}, {"s", "y"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	col := strings.Index(lines[1], "x")
	if col < 0 || strings.Index(lines[2], "y") != col {
		t.Fatalf("columns not aligned:\n%s", out)
	}
}

func TestProgressBar(t *testing.T) {
	for _, f := range []float64{-1, 0, 0.5, 1, 2} {
		bar := progressBar(f, 10)
		if n := strings.Count(bar, "█") + strings.Count(bar, "░"); n != 10 {
			t.Fatalf("progressBar(%v) has %d cells", f, n)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 10); got != "héllo" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("héllo world", 5); got != "héll…" {
		t.Fatalf("got %q", got)
	}
}

func TestReadOptional(t *testing.T) {
	if s, err := readOptional(""); s != "" || err != nil {
		t.Fatalf("empty: %q %v", s, err)
	}
	p := filepath.Join(t.TempDir(), "skit.txt")
	os.WriteFile(p, []byte("Speaker 1: \"hi\""), 0o644)
	if s, err := readOptional(p); err != nil || !strings.Contains(s, "hi") {
		t.Fatalf("file: %q %v", s, err)
	}
	if _, err := readOptional(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("missing file should fail")
	}
}

func TestProviders(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	c := &cfg.Root{}
	c.Providers = cfg.Providers{TTS: "gemini", Skit: "openai"}
	tts, writer := providers(context.Background(), c, log)
	if tts != nil || writer != nil {
		t.Fatalf("providers without keys should be nil, got %T %T", tts, writer)
	}

	c.Gemini.APIKey = "g-key"
	c.OpenAI.APIKey = "o-key"
	tts, writer = providers(context.Background(), c, log)
	if _, ok := tts.(*clients.Gemini); !ok {
		t.Fatalf("tts = %T", tts)
	}
	if _, ok := writer.(*clients.OpenAI); !ok {
		t.Fatalf("writer = %T", writer)
	}
}

func TestConfigShowAndVoices(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-1234abcd")
	path := filepath.Join(t.TempDir(), "pawdcast.yaml")
	os.WriteFile(path, []byte("providers:\n  tts: openai\n  skit: openai\n"), 0o644)

	run := func(args ...string) string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append([]string{"--config", path}, args...))
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	shown := run("config", "show")
	for _, want := range []string{"tts: openai", "speaker1: alloy", "****abcd"} {
		if !strings.Contains(shown, want) {
			t.Errorf("config show missing %q:\n%s", want, shown)
		}
	}
	if strings.Contains(shown, "sk-test") {
		t.Error("api key not masked")
	}

	voices := run("voices")
	if !strings.Contains(voices, "provider: openai") || !strings.Contains(voices, "speaker 2") {
		t.Errorf("voices output:\n%s", voices)
	}
}
