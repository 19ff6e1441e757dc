package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var (
	_ Synthesizer = (*Gemini)(nil)
	_ SkitWriter  = (*Gemini)(nil)
)

// GeminiConfig selects models for the Gemini API.
type GeminiConfig struct {
	APIKey    string
	BaseURL   string
	SkitModel string
	TTSModel  string
}

// Gemini implements speech synthesis and skit writing on the Gemini API.
type Gemini struct {
	client    *genai.Client
	skitModel string
	ttsModel  string
}

// NewGemini builds a Gemini client sharing h's HTTP client.
func (h *HTTP) NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: missing api key")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: h.c,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, skitModel: cfg.SkitModel, ttsModel: cfg.TTSModel}, nil
}

// Synthesize asks the TTS model to read text with a prebuilt voice.
func (g *Gemini) Synthesize(ctx context.Context, text, voice, outPath string) error {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.ttsModel, genai.Text(ttsPrompt(text)), cfg)
	if err != nil {
		return fmt.Errorf("gemini tts: %w", unwrapAPIError(err))
	}
	data, mt, err := geminiAudio(resp)
	if err != nil {
		return err
	}
	return saveAudio(outPath, mt, data)
}

// WriteSkit asks the text model for a dialogue based on article.
func (g *Gemini) WriteSkit(ctx context.Context, article string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.skitModel, genai.Text(fmt.Sprintf(skitPrompt, article)), nil)
	if err != nil {
		return "", fmt.Errorf("gemini skit: %w", unwrapAPIError(err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini skit: no candidates")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// geminiAudio concatenates the inline audio parts of the first candidate.
func geminiAudio(resp *genai.GenerateContentResponse) ([]byte, string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", ErrNoAudio
	}
	var (
		data []byte
		mt   string
	)
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
			continue
		}
		if mt == "" {
			mt = p.InlineData.MIMEType
		}
		data = append(data, p.InlineData.Data...)
	}
	if len(data) == 0 {
		return nil, "", ErrNoAudio
	}
	return data, mt, nil
}

func unwrapAPIError(err error) error {
	var e *apierror.APIError
	if errors.As(err, &e) {
		return e.Unwrap()
	}
	return err
}
