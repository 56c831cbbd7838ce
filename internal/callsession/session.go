// Package callsession tracks a phone call from ring to hangup: the mutable
// per-call Session record, its state machine, and the Store registry that
// holds live and recently ended calls for analytics.
//
// A Session has exactly one logical owner, the handler driving its call,
// so its methods do not lock. The Store implementations are safe for
// concurrent use across calls; see [MemStore] and [RedisStore].
package callsession

import "time"

// State is the lifecycle state of a call session.
type State string

const (
	// StateInitiated is a freshly created call before any prompt played.
	StateInitiated State = "initiated"

	// StateLanguageSelection means the language menu has been presented.
	StateLanguageSelection State = "language_selection"

	// StateActive is a live conversation with a selected language.
	StateActive State = "active"

	// StateEnded is the terminal state for completed and cancelled calls.
	StateEnded State = "ended"

	// StateError is the terminal state for calls that failed.
	StateError State = "error"
)

// Terminal reports whether no further transition may leave s.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateError
}

// IsValid reports whether s is a recognised state.
func (s State) IsValid() bool {
	switch s {
	case StateInitiated, StateLanguageSelection, StateActive, StateEnded, StateError:
		return true
	}
	return false
}

// Outcome describes how a call ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeError     Outcome = "error"
)

// Session is the record of one phone call. CallID is the externally assigned
// primary key; all counters are monotonically non-decreasing while the call
// is live. EndedAt and TotalDuration are written exactly once by End.
type Session struct {
	CallID   string       `json:"call_id"`
	StreamID string       `json:"stream_id,omitempty"`
	Language LanguageCode `json:"language,omitempty"`
	State    State        `json:"state"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Conversation tracking.
	QueryCount     int `json:"query_count"`
	FailedSTTCount int `json:"failed_stt_count"`

	// Vendor call accounting, surfaced through analytics so external
	// timeout/failure rates stay visible.
	STTCalls      int `json:"stt_calls"`
	LLMCalls      int `json:"llm_calls"`
	TTSCalls      int `json:"tts_calls"`
	Interruptions int `json:"interruptions"`

	// TotalDuration is the call length in seconds, computed once by End.
	TotalDuration float64 `json:"total_duration,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// New creates a Session for callID in the given initial state. Inbound calls
// start in StateLanguageSelection (menu already playing); outbound calls may
// start directly in StateActive. An unrecognised or terminal initial state
// falls back to StateInitiated.
func New(callID string, initial State, metadata map[string]any) *Session {
	if !initial.IsValid() || initial.Terminal() {
		initial = StateInitiated
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &Session{
		CallID:    callID,
		State:     initial,
		StartedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// AttachStream records the media stream ID once it connects. The first
// stream wins; telephony providers never reattach a new stream to a call.
func (s *Session) AttachStream(streamID string) {
	if s.StreamID == "" {
		s.StreamID = streamID
	}
}

// SelectLanguage stores the caller's language choice and activates the
// session. Calling it when the session is already Active only updates the
// language; terminal sessions are left untouched.
func (s *Session) SelectLanguage(lang LanguageCode) {
	if s.State.Terminal() {
		return
	}
	s.Language = lang
	s.State = StateActive
}

// RecordQuery counts one user utterance handled during the call.
func (s *Session) RecordQuery() { s.QueryCount++ }

// RecordSTTOutcome counts a transcription attempt and, when success is
// false, a failed one.
func (s *Session) RecordSTTOutcome(success bool) {
	s.STTCalls++
	if !success {
		s.FailedSTTCount++
	}
}

// RecordLLMCall counts one language-model completion.
func (s *Session) RecordLLMCall() { s.LLMCalls++ }

// RecordTTSCall counts one speech synthesis.
func (s *Session) RecordTTSCall() { s.TTSCalls++ }

// RecordInterruption counts the caller speaking over the assistant.
func (s *Session) RecordInterruption() { s.Interruptions++ }

// End finalizes the session: EndedAt, State, and TotalDuration are set in
// one step. Completed and cancelled calls both land in StateEnded; error
// outcomes land in StateError with errDetail kept under Metadata["error"].
//
// End is idempotent: duplicate cleanup paths (a cancellation handler plus
// a deferred teardown) are expected, and the first call wins so the
// recorded duration is never corrupted.
func (s *Session) End(outcome Outcome, errDetail string) {
	if s.EndedAt != nil {
		return
	}
	now := time.Now().UTC()
	s.EndedAt = &now
	s.TotalDuration = now.Sub(s.StartedAt).Seconds()

	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	switch outcome {
	case OutcomeError:
		s.State = StateError
		if errDetail != "" {
			s.Metadata["error"] = errDetail
		}
	case OutcomeCancelled:
		s.State = StateEnded
		s.Metadata["end_reason"] = string(OutcomeCancelled)
	default:
		s.State = StateEnded
	}
}

// Clone returns a deep-enough copy of s for snapshots: counters and scalars
// are copied, and the metadata map is duplicated one level deep.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	if s.EndedAt != nil {
		ended := *s.EndedAt
		dup.EndedAt = &ended
	}
	if s.Metadata != nil {
		dup.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}

// AnalyticsRecord is the flattened per-call view served by the reporting
// endpoint.
type AnalyticsRecord struct {
	CallID         string       `json:"call_id"`
	StreamID       string       `json:"stream_id,omitempty"`
	Language       LanguageCode `json:"language,omitempty"`
	State          State        `json:"state"`
	StartedAt      time.Time    `json:"started_at"`
	EndedAt        *time.Time   `json:"ended_at,omitempty"`
	QueryCount     int          `json:"query_count"`
	FailedSTTCount int          `json:"failed_stt_count"`
	TotalDuration  float64      `json:"total_duration,omitempty"`
	STTCalls       int          `json:"stt_calls"`
	LLMCalls       int          `json:"llm_calls"`
	TTSCalls       int          `json:"tts_calls"`
	Interruptions  int          `json:"interruptions"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// AnalyticsRecord returns the reporting view of s.
func (s *Session) AnalyticsRecord() AnalyticsRecord {
	return AnalyticsRecord{
		CallID:         s.CallID,
		StreamID:       s.StreamID,
		Language:       s.Language,
		State:          s.State,
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
		QueryCount:     s.QueryCount,
		FailedSTTCount: s.FailedSTTCount,
		TotalDuration:  s.TotalDuration,
		STTCalls:       s.STTCalls,
		LLMCalls:       s.LLMCalls,
		TTSCalls:       s.TTSCalls,
		Interruptions:  s.Interruptions,
		Metadata:       s.Metadata,
	}
}
