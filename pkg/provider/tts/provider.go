// Package tts defines the Provider interface for Text-to-Speech backends.
package tts

import "context"

// Request describes one synthesis call.
type Request struct {
	// Text is the text to speak.
	Text string

	// Language is the BCP-47 tag of the text (e.g., "hi-IN").
	Language string

	// Speaker selects a provider-specific voice. Empty uses the provider
	// default.
	Speaker string
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Synthesize converts text into audio and returns the raw audio bytes.
	// The encoding and sample rate are fixed per provider configuration;
	// telephony callers configure 8 kHz output.
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
