package commands

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pawdcast/pawdcast/clients"
	cfg "github.com/pawdcast/pawdcast/config"
	"github.com/pawdcast/pawdcast/media"
	"github.com/pawdcast/pawdcast/orchestrator"
)

// app is everything a command needs, built from the effective config.
type app struct {
	cfg      *cfg.Root
	log      *logrus.Logger
	ffmpeg   *media.FFmpeg
	pipeline *orchestrator.Pipeline
}

// loadConfig resolves configuration with the global flags plus any
// command-local flags keyed by config key.
func loadConfig(cmd *cobra.Command, local map[string]string) (*cfg.Root, error) {
	flags := map[string]*pflag.Flag{
		"pipeline.log_level": cmd.Flags().Lookup("log-level"),
		"paths.work":         cmd.Flags().Lookup("workdir"),
	}
	for key, name := range local {
		flags[key] = cmd.Flags().Lookup(name)
	}
	return cfg.Load(cfgFile, flags)
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func loadApp(ctx context.Context, cmd *cobra.Command, local map[string]string) (*app, error) {
	c, err := loadConfig(cmd, local)
	if err != nil {
		return nil, err
	}
	log := newLogger(c.Pipeline.LogLvl)
	if c.Paths.Work != "" {
		if err := os.MkdirAll(c.Paths.Work, 0o755); err != nil {
			return nil, err
		}
	}

	ff := media.New(c.FFmpeg.FFmpegBin, c.FFmpeg.FFprobeBin, c.MediaOptions(), log)
	tts, writer := providers(ctx, c, log)
	p := orchestrator.NewPipeline(c, orchestrator.Deps{Media: ff, TTS: tts, Writer: writer, Log: log})
	return &app{cfg: c, log: log, ffmpeg: ff, pipeline: p}, nil
}

// providers builds the configured TTS and skit clients. A provider without
// an API key is left nil; modes that need it then fail with ErrNoProvider.
func providers(ctx context.Context, c *cfg.Root, log logrus.FieldLogger) (clients.Synthesizer, clients.SkitWriter) {
	h := clients.NewHTTP(c.HTTPTimeout())

	var gemini *clients.Gemini
	var oai *clients.OpenAI
	if c.Providers.TTS == "gemini" || c.Providers.Skit == "gemini" {
		g, err := h.NewGemini(ctx, clients.GeminiConfig{
			APIKey:    c.Gemini.APIKey,
			BaseURL:   c.Gemini.BaseURL,
			SkitModel: c.Gemini.SkitModel,
			TTSModel:  c.Gemini.TTSModel,
		})
		if err != nil {
			log.WithError(err).Debug("gemini disabled")
		} else {
			gemini = g
		}
	}
	if c.Providers.TTS == "openai" || c.Providers.Skit == "openai" {
		o, err := h.NewOpenAI(clients.OpenAIConfig{
			APIKey:    c.OpenAI.APIKey,
			BaseURL:   c.OpenAI.BaseURL,
			SkitModel: c.OpenAI.SkitModel,
			TTSModel:  c.OpenAI.TTSModel,
		})
		if err != nil {
			log.WithError(err).Debug("openai disabled")
		} else {
			oai = o
		}
	}

	// absent clients must stay untyped nil
	var tts clients.Synthesizer
	var writer clients.SkitWriter
	switch {
	case c.Providers.TTS == "gemini" && gemini != nil:
		tts = gemini
	case c.Providers.TTS == "openai" && oai != nil:
		tts = oai
	}
	switch {
	case c.Providers.Skit == "gemini" && gemini != nil:
		writer = gemini
	case c.Providers.Skit == "openai" && oai != nil:
		writer = oai
	}
	return tts, writer
}
