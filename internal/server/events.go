package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Media stream event names, matching the Twilio Media Streams wire protocol.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventDTMF      = "dtmf"
	EventMark      = "mark"
	EventStop      = "stop"
)

// StreamEvent is one inbound message on a media stream websocket. Exactly one
// of the payload pointers is set, matching Event.
type StreamEvent struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid,omitempty"`
	Start     *StartEvent `json:"start,omitempty"`
	Media     *MediaEvent `json:"media,omitempty"`
	DTMF      *DTMFEvent  `json:"dtmf,omitempty"`
	Mark      *MarkEvent  `json:"mark,omitempty"`
	Stop      *StopEvent  `json:"stop,omitempty"`
}

// StartEvent carries the stream and call identifiers plus the negotiated
// audio format. Sent once, after "connected".
type StartEvent struct {
	StreamSID    string            `json:"streamSid"`
	AccountSID   string            `json:"accountSid"`
	CallSID      string            `json:"callSid"`
	Tracks       []string          `json:"tracks"`
	MediaFormat  MediaFormat       `json:"mediaFormat"`
	CustomParams map[string]string `json:"customParameters"`
}

// MediaFormat describes the audio encoding of a stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaEvent carries one base64-encoded audio frame.
type MediaEvent struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

// Audio decodes the base64 audio payload.
func (m *MediaEvent) Audio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Payload)
}

// DTMFEvent carries one keypad digit pressed mid-stream.
type DTMFEvent struct {
	Track string `json:"track"`
	Digit string `json:"digit"`
}

// MarkEvent echoes back a mark previously sent by us, signalling that the
// audio queued before it has finished playing.
type MarkEvent struct {
	Name string `json:"name"`
}

// StopEvent signals the end of the stream.
type StopEvent struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// ParseEvent decodes one inbound websocket message. Unknown event names are
// an error so protocol drift surfaces in logs instead of being silently
// swallowed.
func ParseEvent(data []byte) (*StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("server: decode stream event: %w", err)
	}

	switch ev.Event {
	case EventConnected:
	case EventStart:
		if ev.Start == nil || ev.Start.StreamSID == "" || ev.Start.CallSID == "" {
			return nil, fmt.Errorf("server: start event missing stream or call id")
		}
	case EventMedia:
		if ev.Media == nil {
			return nil, fmt.Errorf("server: media event missing payload")
		}
	case EventDTMF:
		if ev.DTMF == nil || ev.DTMF.Digit == "" {
			return nil, fmt.Errorf("server: dtmf event missing digit")
		}
	case EventMark:
	case EventStop:
	default:
		return nil, fmt.Errorf("server: unknown stream event %q", ev.Event)
	}
	return &ev, nil
}

// outboundMedia builds the JSON frame that plays audio back on the stream.
func outboundMedia(streamSID string, audio []byte) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":     "media",
		"streamSid": streamSID,
		"media": map[string]string{
			"payload": base64.StdEncoding.EncodeToString(audio),
		},
	})
}

// outboundMark builds the JSON frame that requests a playback checkpoint.
// The provider echoes the mark back once queued audio has been played.
func outboundMark(streamSID, name string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":     "mark",
		"streamSid": streamSID,
		"mark":      map[string]string{"name": name},
	})
}

// outboundClear builds the JSON frame that flushes queued playback audio.
// Sent when the caller interrupts the assistant mid-answer.
func outboundClear(streamSID string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":     "clear",
		"streamSid": streamSID,
	})
}
