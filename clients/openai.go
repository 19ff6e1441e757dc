package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	_ Synthesizer = (*OpenAI)(nil)
	_ SkitWriter  = (*OpenAI)(nil)
)

// OpenAIConfig selects models for an OpenAI compatible endpoint.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	SkitModel string
	TTSModel  string
}

// OpenAI implements speech synthesis and skit writing on the OpenAI API.
type OpenAI struct {
	client    openai.Client
	skitModel string
	ttsModel  string
}

// NewOpenAI builds an OpenAI client sharing h's HTTP client.
func (h *HTTP) NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing api key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(h.c),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), skitModel: cfg.SkitModel, ttsModel: cfg.TTSModel}, nil
}

// Synthesize requests WAV speech for text.
func (o *OpenAI) Synthesize(ctx context.Context, text, voice, outPath string) error {
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.ttsModel),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai tts %s: %s", resp.Status, string(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openai tts read: %w", err)
	}
	if len(data) == 0 {
		return ErrNoAudio
	}
	return saveAudio(outPath, resp.Header.Get("Content-Type"), data)
}

// WriteSkit asks the chat model for a dialogue based on article.
func (o *OpenAI) WriteSkit(ctx context.Context, article string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.skitModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(skitPrompt, article)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai skit: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai skit: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
