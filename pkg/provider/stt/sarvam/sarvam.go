// Package sarvam provides a Sarvam AI (Saarika) backed STT provider using
// the Sarvam batch speech-to-text REST API. It implements the stt.Provider
// interface.
package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/vaani-ai/vaani/pkg/provider/stt"
)

const (
	defaultBaseURL = "https://api.sarvam.ai"
	defaultModel   = "saarika:v2"
)

// Option is a functional option for configuring the Sarvam Provider.
type Option func(*Provider)

// WithBaseURL overrides the Sarvam API base URL. Useful for testing.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithModel sets the Saarika model ID (e.g., "saarika:v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by the Sarvam speech-to-text API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a new Sarvam STT Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// transcribeResponse is the JSON body returned by POST /speech-to-text.
type transcribeResponse struct {
	RequestID    string `json:"request_id"`
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

// Transcribe implements stt.Provider. It posts the WAV clip as a multipart
// form and returns the recognised transcript.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, language string) (*stt.Result, error) {
	if len(audio) == 0 {
		return nil, errors.New("sarvam: audio must not be empty")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("sarvam: build form: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("sarvam: build form: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language_code", language); err != nil {
			return nil, fmt.Errorf("sarvam: build form: %w", err)
		}
	}
	if err := mw.WriteField("model", p.model); err != nil {
		return nil, fmt.Errorf("sarvam: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("sarvam: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/speech-to-text", &body)
	if err != nil {
		return nil, fmt.Errorf("sarvam: build request: %w", err)
	}
	req.Header.Set("API-Subscription-Key", p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sarvam: transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sarvam: transcribe: status %d: %s", resp.StatusCode, snippet)
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("sarvam: decode response: %w", err)
	}

	detected := tr.LanguageCode
	if detected == "" {
		detected = language
	}
	return &stt.Result{Text: tr.Transcript, Language: detected}, nil
}

var _ stt.Provider = (*Provider)(nil)
