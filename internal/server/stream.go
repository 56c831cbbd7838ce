package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vaani-ai/vaani/internal/callsession"
	"github.com/vaani-ai/vaani/internal/knowledge"
	"github.com/vaani-ai/vaani/pkg/provider/llm"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
)

const (
	// silenceFlush is how long without inbound audio an utterance is
	// considered finished and sent to STT.
	silenceFlush = 800 * time.Millisecond

	// minUtteranceBytes is 200ms of 8 kHz mu-law. Shorter buffers are line
	// noise, not speech.
	minUtteranceBytes = 1600

	// maxHistoryTurns bounds the conversation context sent to the LLM.
	maxHistoryTurns = 10
)

// greetings is spoken once the stream starts, in the caller's language.
var greetings = map[callsession.LanguageCode]string{
	callsession.LanguageTelugu:  "నమస్కారం! నేను మీకు ఎలా సహాయం చేయగలను?",
	callsession.LanguageHindi:   "नमस्ते! मैं आपकी कैसे मदद कर सकती हूँ?",
	callsession.LanguageEnglish: "Hello! How can I help you today?",
}

// fallbacks is spoken when the LLM call fails, so the caller is never left
// with dead air.
var fallbacks = map[callsession.LanguageCode]string{
	callsession.LanguageTelugu:  "దయచేసి మళ్లీ ప్రయత్నించండి.",
	callsession.LanguageHindi:   "कृपया पुनः प्रयास करें।",
	callsession.LanguageEnglish: "I'm having trouble right now. Please try again.",
}

// handleMediaStream upgrades to a websocket and runs the voice conversation
// for one call.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	lang, err := callsession.ByCode(chi.URLParam(r, "language"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if s.stt == nil || s.llm == nil || s.tts == nil {
		http.Error(w, "voice pipeline not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("websocket accept", "err", err)
		return
	}

	st := &stream{srv: s, conn: conn, language: lang}
	st.run(r)
}

// stream is the per-call conversation state. All fields are owned by the run
// loop; the reader goroutine only feeds it decoded events.
type stream struct {
	srv      *Server
	conn     *websocket.Conn
	language callsession.Language

	callID    string
	streamSID string
	sess      *callsession.Session

	history   []llm.Message
	utterance []byte
	speaking  bool
}

// run drives the stream until stop, disconnect, or cancellation. Whatever
// the exit path, the session is finalized exactly once.
func (st *stream) run(r *http.Request) {
	ctx := r.Context()
	defer st.conn.Close(websocket.StatusNormalClosure, "")

	// Teardown default: anything short of a clean stop is a cancellation.
	outcome := callsession.OutcomeCancelled
	detail := ""
	defer func() {
		if st.callID == "" {
			return
		}
		// The request context is gone once the peer disconnects; cleanup
		// still has to reach the store and archive.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		st.srv.endCall(cleanupCtx, st.callID, outcome, detail)
	}()

	events := make(chan *StreamEvent)
	readErr := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			_, data, err := st.conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			ev, err := ParseEvent(data)
			if err != nil {
				slog.Warn("bad stream event", "stream_id", st.streamSID, "err", err)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	silence := time.NewTimer(silenceFlush)
	silence.Stop()
	defer silence.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErr:
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				outcome = callsession.OutcomeCompleted
			} else {
				slog.Info("stream disconnected", "call_id", st.callID, "err", err)
			}
			return

		case <-silence.C:
			st.flushUtterance(ctx)

		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Event {
			case EventConnected:
				slog.Debug("stream connected", "language", st.language.Code)

			case EventStart:
				st.handleStart(ctx, ev.Start)

			case EventMedia:
				st.handleMedia(ctx, ev.Media)
				silence.Reset(silenceFlush)

			case EventDTMF:
				st.handleDTMF(ctx, ev.DTMF.Digit)

			case EventMark:
				st.speaking = false

			case EventStop:
				// Flush whatever the caller said last so counters match the
				// conversation, then finish cleanly.
				st.flushUtterance(ctx)
				outcome = callsession.OutcomeCompleted
				return
			}
		}
	}
}

// handleStart binds the stream to its call session and greets the caller.
func (st *stream) handleStart(ctx context.Context, start *StartEvent) {
	st.streamSID = start.StreamSID
	st.callID = start.CallSID

	sess, err := st.srv.store.Get(ctx, st.callID)
	if err != nil {
		slog.Error("load session", "call_id", st.callID, "err", err)
	}
	if sess == nil {
		// The stream can arrive without a prior webhook (outbound calls,
		// registry restart). Register it on the fly.
		sess = callsession.New(st.callID, callsession.StateActive, nil)
		st.srv.metrics.CallsStarted.Add(ctx, 1,
			metric.WithAttributes(attribute.String("direction", "outbound")))
		st.srv.metrics.ActiveCalls.Add(ctx, 1)
	}
	sess.AttachStream(st.streamSID)
	sess.SelectLanguage(st.language.Code)
	st.sess = sess
	st.persist(ctx)

	slog.Info("stream started",
		"call_id", st.callID,
		"stream_id", st.streamSID,
		"language", st.language.Code,
	)

	st.speak(ctx, greetings[st.language.Code])
}

// handleMedia buffers caller audio. Speech while the assistant is mid-answer
// counts as an interruption and flushes the playback queue.
func (st *stream) handleMedia(ctx context.Context, media *MediaEvent) {
	if st.sess == nil {
		return
	}
	audio, err := media.Audio()
	if err != nil {
		slog.Warn("bad media payload", "stream_id", st.streamSID, "err", err)
		return
	}

	if st.speaking {
		st.sess.RecordInterruption()
		st.speaking = false
		if msg, err := outboundClear(st.streamSID); err == nil {
			_ = st.conn.Write(ctx, websocket.MessageText, msg)
		}
	}

	st.utterance = append(st.utterance, audio...)
}

// handleDTMF lets the caller switch language mid-call with the menu digits.
func (st *stream) handleDTMF(ctx context.Context, digit string) {
	lang, err := callsession.ByDigit(digit)
	if err != nil || st.sess == nil {
		return
	}
	st.language = lang
	st.sess.SelectLanguage(lang.Code)
	st.persist(ctx)
	slog.Info("language switched", "call_id", st.callID, "language", lang.Code)
}

// flushUtterance runs the full STT → retrieval → LLM → TTS turn for the
// buffered audio.
func (st *stream) flushUtterance(ctx context.Context) {
	buf := st.utterance
	st.utterance = nil
	if st.sess == nil || len(buf) < minUtteranceBytes {
		return
	}

	text := st.transcribe(ctx, buf)
	if text == "" {
		st.persist(ctx)
		return
	}

	query := st.srv.corrector.CorrectUtterance(text, st.srv.engine.Index())
	st.sess.RecordQuery()

	entries := st.srv.engine.Search(query, string(st.language.Code), st.srv.searchLimit, st.srv.minScore)
	st.srv.metrics.KnowledgeSearches.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("hit", len(entries) > 0)))

	answer := st.complete(ctx, query, entries)
	st.speak(ctx, answer)
	st.persist(ctx)
}

// transcribe converts the mu-law buffer to WAV and calls the STT provider.
// Returns the empty string when no speech was recognised.
func (st *stream) transcribe(ctx context.Context, mulaw []byte) string {
	wav := wavFromPCM16(muLawToPCM16(mulaw), telephonySampleRate)

	start := time.Now()
	res, err := st.srv.stt.Transcribe(ctx, wav, string(st.language.Code))
	st.srv.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		st.sess.RecordSTTOutcome(false)
		st.srv.metrics.STTFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("language", string(st.language.Code))))
		slog.Warn("transcription failed", "call_id", st.callID, "err", err)
		return ""
	}

	text := strings.TrimSpace(res.Text)
	st.sess.RecordSTTOutcome(text != "")
	return text
}

// complete asks the LLM for an answer grounded in the retrieved entries. On
// failure the caller hears a language-appropriate fallback line.
func (st *stream) complete(ctx context.Context, query string, entries []knowledge.Entry) string {
	st.history = append(st.history, llm.Message{Role: llm.RoleUser, Content: query})
	if len(st.history) > maxHistoryTurns {
		st.history = st.history[len(st.history)-maxHistoryTurns:]
	}

	start := time.Now()
	resp, err := st.srv.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: st.systemPrompt(entries),
		Messages:     st.history,
		Temperature:  0.7,
		MaxTokens:    150,
	})
	st.srv.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	st.sess.RecordLLMCall()

	if err != nil {
		slog.Warn("completion failed", "call_id", st.callID, "err", err)
		return fallbacks[st.language.Code]
	}

	answer := strings.TrimSpace(resp.Content)
	st.history = append(st.history, llm.Message{Role: llm.RoleAssistant, Content: answer})
	return answer
}

// systemPrompt instructs the model and inlines the retrieved knowledge.
func (st *stream) systemPrompt(entries []knowledge.Entry) string {
	var b strings.Builder
	b.WriteString("You are a customer support assistant on a phone call. ")
	b.WriteString("Answer briefly, in one or two spoken sentences, in ")
	b.WriteString(st.language.Name)
	b.WriteString(".")
	if len(entries) > 0 {
		b.WriteString(" Base your answer on these knowledge base entries:\n")
		for _, e := range entries {
			b.WriteString("Q: ")
			b.WriteString(e.Question)
			b.WriteString("\nA: ")
			b.WriteString(e.Answer)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// speak synthesises text and queues it on the stream, followed by a mark so
// interruption tracking knows when playback finished.
func (st *stream) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}

	start := time.Now()
	audio, err := st.srv.tts.Synthesize(ctx, tts.Request{
		Text:     text,
		Language: string(st.language.Code),
	})
	st.srv.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	st.sess.RecordTTSCall()

	if err != nil {
		slog.Warn("synthesis failed", "call_id", st.callID, "err", err)
		return
	}

	msg, err := outboundMedia(st.streamSID, audio)
	if err != nil {
		slog.Error("encode media frame", "err", err)
		return
	}
	if err := st.conn.Write(ctx, websocket.MessageText, msg); err != nil {
		slog.Warn("write media frame", "call_id", st.callID, "err", err)
		return
	}
	if mark, err := outboundMark(st.streamSID, "answer"); err == nil {
		_ = st.conn.Write(ctx, websocket.MessageText, mark)
	}
	st.speaking = true
}

// persist writes the session back to the registry.
func (st *stream) persist(ctx context.Context) {
	if st.sess == nil {
		return
	}
	if err := st.srv.store.Set(ctx, st.sess); err != nil {
		slog.Error("store session", "call_id", st.callID, "err", err)
	}
}
