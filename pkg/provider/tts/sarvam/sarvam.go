// Package sarvam provides a Sarvam AI (Bulbul) backed TTS provider using the
// Sarvam text-to-speech REST API. It implements the tts.Provider interface.
package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vaani-ai/vaani/pkg/provider/tts"
)

const (
	defaultBaseURL    = "https://api.sarvam.ai"
	defaultModel      = "bulbul:v1"
	defaultSpeaker    = "anushka"
	defaultSampleRate = 8000
)

// Option is a functional option for configuring the Sarvam Provider.
type Option func(*Provider)

// WithBaseURL overrides the Sarvam API base URL. Useful for testing.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithModel sets the Bulbul model ID (e.g., "bulbul:v1").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithSampleRate sets the output sample rate in Hz. Telephony callers keep
// the 8000 default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider backed by the Sarvam text-to-speech API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	sampleRate int
	httpClient *http.Client
}

// New creates a new Sarvam TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesizeRequest is the JSON body for POST /text-to-speech.
type synthesizeRequest struct {
	Inputs              []string `json:"inputs"`
	TargetLanguageCode  string   `json:"target_language_code"`
	Speaker             string   `json:"speaker"`
	Pitch               float64  `json:"pitch"`
	Pace                float64  `json:"pace"`
	Loudness            float64  `json:"loudness"`
	SpeechSampleRate    int      `json:"speech_sample_rate"`
	EnablePreprocessing bool     `json:"enable_preprocessing"`
	Model               string   `json:"model"`
}

// synthesizeResponse is the JSON body returned by POST /text-to-speech.
// Audios holds one base64-encoded WAV clip per input.
type synthesizeResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("sarvam: text must not be empty")
	}
	if req.Language == "" {
		return nil, errors.New("sarvam: language must not be empty")
	}

	speaker := req.Speaker
	if speaker == "" {
		speaker = defaultSpeaker
	}

	payload := synthesizeRequest{
		Inputs:              []string{req.Text},
		TargetLanguageCode:  req.Language,
		Speaker:             speaker,
		Pitch:               0,
		Pace:                1.0,
		Loudness:            1.5,
		SpeechSampleRate:    p.sampleRate,
		EnablePreprocessing: true,
		Model:               p.model,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sarvam: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sarvam: build request: %w", err)
	}
	httpReq.Header.Set("API-Subscription-Key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sarvam: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sarvam: synthesize: status %d: %s", resp.StatusCode, snippet)
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("sarvam: decode response: %w", err)
	}
	if len(sr.Audios) == 0 {
		return nil, errors.New("sarvam: response contains no audio")
	}

	audio, err := base64.StdEncoding.DecodeString(sr.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("sarvam: decode audio: %w", err)
	}
	return audio, nil
}

var _ tts.Provider = (*Provider)(nil)
