// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., Sarvam Saarika)
// and converts a complete recorded utterance into text. Telephony audio
// arrives as short utterance-sized WAV clips, so the interface is
// request/response rather than streaming.
//
// Implementations must be safe for concurrent use. Multiple calls may be
// transcribing simultaneously.
package stt

import "context"

// Result is the outcome of transcribing one utterance.
type Result struct {
	// Text is the recognised transcript. Empty when no speech was detected.
	Text string

	// Language is the BCP-47 tag the provider recognised the speech as
	// (e.g., "te-IN"). Falls back to the requested language when the
	// provider does not report one.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts a complete WAV utterance into text. language is the
	// BCP-47 tag to recognise against; an empty string lets the provider
	// auto-detect, if supported.
	//
	// An empty Result.Text with a nil error means the audio contained no
	// recognisable speech. Errors are reserved for transport and API
	// failures.
	Transcribe(ctx context.Context, audio []byte, language string) (*Result, error)
}
