package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pawdcast/pawdcast/detect"
	"github.com/pawdcast/pawdcast/media"
)

const envPrefix = "PAWDCAST"

// Voice tables per provider.
var (
	GeminiVoices = []string{"Puck", "Charon", "Kore", "Fenrir", "Aoede", "Enceladus"}
	OpenAIVoices = []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}
)

type Provider struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	SkitModel string `mapstructure:"skit_model" yaml:"skit_model"`
	TTSModel  string `mapstructure:"tts_model" yaml:"tts_model"`
}

type Providers struct {
	TTS  string `mapstructure:"tts" yaml:"tts"`
	Skit string `mapstructure:"skit" yaml:"skit"`
}

type Voices struct {
	Speaker1 string `mapstructure:"speaker1" yaml:"speaker1"`
	Speaker2 string `mapstructure:"speaker2" yaml:"speaker2"`
}

type Video struct {
	Width         int    `mapstructure:"width" yaml:"width"`
	Height        int    `mapstructure:"height" yaml:"height"`
	SegmentPreset string `mapstructure:"segment_preset" yaml:"segment_preset"`
	SegmentCRF    int    `mapstructure:"segment_crf" yaml:"segment_crf"`
	FinalPreset   string `mapstructure:"final_preset" yaml:"final_preset"`
	FinalCRF      int    `mapstructure:"final_crf" yaml:"final_crf"`
	AudioBitrate  string `mapstructure:"audio_bitrate" yaml:"audio_bitrate"`
	SampleRate    int    `mapstructure:"sample_rate" yaml:"sample_rate"`
}

type FFmpeg struct {
	FFmpegBin  string `mapstructure:"ffmpeg_bin" yaml:"ffmpeg_bin"`
	FFprobeBin string `mapstructure:"ffprobe_bin" yaml:"ffprobe_bin"`
}

type Root struct {
	Pipeline struct {
		Name   string `mapstructure:"name" yaml:"name"`
		LogLvl string `mapstructure:"log_level" yaml:"log_level"`
	} `mapstructure:"pipeline" yaml:"pipeline"`
	Providers Providers     `mapstructure:"providers" yaml:"providers"`
	Gemini    Provider      `mapstructure:"gemini" yaml:"gemini"`
	OpenAI    Provider      `mapstructure:"openai" yaml:"openai"`
	Voices    Voices        `mapstructure:"voices" yaml:"voices"`
	Detection detect.Params `mapstructure:"detection" yaml:"detection"`
	Video     Video         `mapstructure:"video" yaml:"video"`
	FFmpeg    FFmpeg        `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	HTTP      struct {
		Timeout int `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"http" yaml:"http"`
	Paths struct {
		Work    string `mapstructure:"work" yaml:"work"`
		Outputs string `mapstructure:"outputs" yaml:"outputs"`
	} `mapstructure:"paths" yaml:"paths"`
	Server struct {
		Addr        string `mapstructure:"addr" yaml:"addr"`
		MaxUploadMB int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	} `mapstructure:"server" yaml:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "pawdcast")
	v.SetDefault("pipeline.log_level", "info")

	v.SetDefault("providers.tts", "gemini")
	v.SetDefault("providers.skit", "gemini")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.skit_model", "gemini-2.0-flash")
	v.SetDefault("gemini.tts_model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.skit_model", "gpt-4o-mini")
	v.SetDefault("openai.tts_model", "tts-1")
	v.SetDefault("voices.speaker1", "")
	v.SetDefault("voices.speaker2", "")

	dp := detect.DefaultParams()
	v.SetDefault("detection.coarse.noise_db", dp.Coarse.NoiseDB)
	v.SetDefault("detection.coarse.min_silence", dp.Coarse.MinSilence)
	v.SetDefault("detection.coarse.lead_in", dp.Coarse.LeadIn)
	v.SetDefault("detection.fine.noise_db", dp.Fine.NoiseDB)
	v.SetDefault("detection.fine.min_silence", dp.Fine.MinSilence)
	v.SetDefault("detection.fine.lead_in", dp.Fine.LeadIn)

	mo := media.DefaultOptions()
	v.SetDefault("video.width", mo.Width)
	v.SetDefault("video.height", mo.Height)
	v.SetDefault("video.segment_preset", mo.SegmentPreset)
	v.SetDefault("video.segment_crf", mo.SegmentCRF)
	v.SetDefault("video.final_preset", mo.FinalPreset)
	v.SetDefault("video.final_crf", mo.FinalCRF)
	v.SetDefault("video.audio_bitrate", mo.AudioBitrate)
	v.SetDefault("video.sample_rate", mo.SampleRate)

	v.SetDefault("ffmpeg.ffmpeg_bin", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_bin", "ffprobe")
	v.SetDefault("http.timeout", 120)
	v.SetDefault("paths.work", "")
	v.SetDefault("paths.outputs", "outputs")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 512)
}

// Load reads configuration from, in increasing priority: built-in defaults,
// the config file, PAWDCAST_* environment variables (a .env file in the
// working directory is loaded first) and the given command line flags, keyed
// by config key. An empty path tries config/<CONFIG_ENV>/config.yaml and
// pawdcast.yaml.
func Load(path string, flags map[string]*pflag.Flag) (*Root, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("gemini.api_key", envPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("openai.api_key", envPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")

	if path == "" {
		path = guessPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	for key, f := range flags {
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.defaultVoices()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func guessPath() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join("config", env, "config.yaml"),
		"pawdcast.yaml",
	}
	for _, p := range guess {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// Validate checks provider names, voices and thresholds.
func (r *Root) Validate() error {
	var errs []error
	for _, p := range []string{r.Providers.TTS, r.Providers.Skit} {
		if p != "gemini" && p != "openai" {
			errs = append(errs, fmt.Errorf("unknown provider %q", p))
		}
	}
	table := r.VoiceTable()
	for _, v := range []string{r.Voices.Speaker1, r.Voices.Speaker2} {
		if table != nil && !slices.Contains(table, v) {
			errs = append(errs, fmt.Errorf("voice %q not available for %s", v, r.Providers.TTS))
		}
	}
	for name, p := range map[string]detect.Pass{"coarse": r.Detection.Coarse, "fine": r.Detection.Fine} {
		if p.MinSilence <= 0 {
			errs = append(errs, fmt.Errorf("detection.%s.min_silence must be positive", name))
		}
		if p.NoiseDB >= 0 {
			errs = append(errs, fmt.Errorf("detection.%s.noise_db must be negative", name))
		}
		if p.LeadIn < 0 {
			errs = append(errs, fmt.Errorf("detection.%s.lead_in must not be negative", name))
		}
	}
	if r.Video.Width <= 0 || r.Video.Height <= 0 {
		errs = append(errs, errors.New("video size must be positive"))
	}
	return errors.Join(errs...)
}

// defaultVoices gives unset speakers the first two voices of the provider.
func (r *Root) defaultVoices() {
	table := r.VoiceTable()
	if len(table) < 2 {
		return
	}
	if r.Voices.Speaker1 == "" {
		r.Voices.Speaker1 = table[0]
	}
	if r.Voices.Speaker2 == "" {
		r.Voices.Speaker2 = table[1]
	}
}

// VoiceTable lists the voices of the configured TTS provider.
func (r *Root) VoiceTable() []string {
	switch r.Providers.TTS {
	case "gemini":
		return GeminiVoices
	case "openai":
		return OpenAIVoices
	}
	return nil
}

// VoiceFor returns the voice used for a speaker number.
func (r *Root) VoiceFor(speaker int) string {
	if speaker == 1 {
		return r.Voices.Speaker1
	}
	return r.Voices.Speaker2
}

func (r *Root) MediaOptions() media.Options {
	return media.Options{
		Width:         r.Video.Width,
		Height:        r.Video.Height,
		SegmentPreset: r.Video.SegmentPreset,
		SegmentCRF:    r.Video.SegmentCRF,
		FinalPreset:   r.Video.FinalPreset,
		FinalCRF:      r.Video.FinalCRF,
		AudioBitrate:  r.Video.AudioBitrate,
		SampleRate:    r.Video.SampleRate,
	}
}

func (r *Root) HTTPTimeout() time.Duration { return DurSeconds(r.HTTP.Timeout) }

// YAML renders the configuration with secrets masked.
func (r *Root) YAML() ([]byte, error) {
	c := *r
	c.Gemini.APIKey = mask(c.Gemini.APIKey)
	c.OpenAI.APIKey = mask(c.OpenAI.APIKey)
	return yaml.Marshal(&c)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
