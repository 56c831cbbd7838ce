// Package server exposes the HTTP surface of the vaani bridge: the telephony
// webhooks that steer a call through language selection, the media stream
// websocket where the live conversation happens, and the analytics and
// operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vaani-ai/vaani/internal/archive"
	"github.com/vaani-ai/vaani/internal/callsession"
	"github.com/vaani-ai/vaani/internal/health"
	"github.com/vaani-ai/vaani/internal/knowledge"
	"github.com/vaani-ai/vaani/internal/observe"
	"github.com/vaani-ai/vaani/pkg/provider/llm"
	"github.com/vaani-ai/vaani/pkg/provider/stt"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
)

// Options configures a [Server]. Store and Engine are required; the pipeline
// providers may be nil, in which case media streams reject calls with an
// error close.
type Options struct {
	Store  callsession.Store
	Engine *knowledge.Engine

	STT stt.Provider
	LLM llm.Provider
	TTS tts.Provider

	// Archive receives finalized call records. Nil disables archiving.
	Archive *archive.Store

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// PublicURL is the externally reachable base URL, used to build webhook
	// actions and the websocket stream URL.
	PublicURL string

	// SearchLimit and MinScore tune knowledge retrieval per utterance.
	SearchLimit int
	MinScore    float64
}

// Server routes telephony webhooks and media streams onto the session
// registry, knowledge engine, and vendor providers.
type Server struct {
	store     callsession.Store
	engine    *knowledge.Engine
	corrector *knowledge.Corrector

	stt stt.Provider
	llm llm.Provider
	tts tts.Provider

	archive *archive.Store
	metrics *observe.Metrics

	publicURL   string
	searchLimit int
	minScore    float64

	router chi.Router
}

// New creates a Server and builds its route table.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: Store is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("server: Engine is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 3
	}
	if opts.MinScore <= 0 {
		opts.MinScore = 10
	}

	s := &Server{
		store:       opts.Store,
		engine:      opts.Engine,
		corrector:   knowledge.NewCorrector(),
		stt:         opts.STT,
		llm:         opts.LLM,
		tts:         opts.TTS,
		archive:     opts.Archive,
		metrics:     opts.Metrics,
		publicURL:   strings.TrimRight(opts.PublicURL, "/"),
		searchLimit: opts.SearchLimit,
		minScore:    opts.MinScore,
	}

	checkers := []health.Checker{{Name: "sessions", Check: s.store.Ping}}
	if s.archive != nil {
		checkers = append(checkers, health.Checker{Name: "archive", Check: s.archive.Ping})
	}
	probes := health.New(checkers...)

	r := chi.NewRouter()
	r.Use(observe.Middleware(s.metrics))

	r.Post("/voice", s.handleInbound)
	r.Post("/voice/language", s.handleLanguageSelect)
	r.Post("/voice/status", s.handleStatus)
	r.Get("/media-stream/{language}", s.handleMediaStream)
	r.Get("/analytics/calls", s.handleAnalytics)
	r.Get("/analytics/archive", s.handleArchive)

	r.Get("/healthz", probes.Healthz)
	r.Get("/readyz", probes.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleInbound answers the initial call webhook: it registers a session in
// the language selection state and plays the DTMF language menu.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	callID := r.FormValue("CallSid")
	if callID == "" {
		// Direct invocations (tests, curl) get a generated call id.
		callID = "local-" + uuid.NewString()
	}

	meta := map[string]any{}
	if from := r.FormValue("From"); from != "" {
		meta["from"] = from
	}
	if to := r.FormValue("To"); to != "" {
		meta["to"] = to
	}

	sess := callsession.New(callID, callsession.StateLanguageSelection, meta)
	if err := s.store.Set(r.Context(), sess); err != nil {
		slog.Error("store session", "call_id", callID, "err", err)
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}

	s.metrics.CallsStarted.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("direction", "inbound")))
	s.metrics.ActiveCalls.Add(r.Context(), 1)

	slog.Info("incoming call", "call_id", callID, "from", meta["from"])

	writeTwiML(w, twiml{
		Gather: &twimlGather{
			NumDigits: 1,
			Action:    s.publicURL + "/voice/language",
			Method:    http.MethodPost,
			Timeout:   10,
			Say:       languageMenu(),
		},
		Say: []twimlSay{
			{Text: "No input received. Please select your language.", Language: "en-IN"},
		},
		Redirect: s.publicURL + "/voice",
	})
}

// languageMenu builds the spoken DTMF menu, one line per supported language.
func languageMenu() []twimlSay {
	says := []twimlSay{
		{Text: "Welcome to customer support.", Language: "en-IN"},
	}
	for _, lang := range callsession.Supported() {
		says = append(says, twimlSay{
			Text:     "Press " + lang.Digit + " for " + lang.Name + ".",
			Language: "en-IN",
		})
	}
	return says
}

// handleLanguageSelect consumes the DTMF digit, activates the session in the
// chosen language, and connects the call to the media stream websocket.
func (s *Server) handleLanguageSelect(w http.ResponseWriter, r *http.Request) {
	callID := r.FormValue("CallSid")
	digits := r.FormValue("Digits")

	lang, err := callsession.ByDigit(digits)
	if err != nil {
		slog.Warn("invalid language digit", "call_id", callID, "digits", digits)
		writeTwiML(w, twiml{
			Say:      []twimlSay{{Text: "Invalid selection.", Language: "en-IN"}},
			Redirect: s.publicURL + "/voice",
		})
		return
	}

	sess, err := s.store.Get(r.Context(), callID)
	if err != nil {
		slog.Error("load session", "call_id", callID, "err", err)
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}
	if sess == nil {
		// The selection webhook can outlive a registry restart. Re-register
		// rather than dropping the caller.
		sess = callsession.New(callID, callsession.StateLanguageSelection, nil)
	}
	sess.SelectLanguage(lang.Code)
	if err := s.store.Set(r.Context(), sess); err != nil {
		slog.Error("store session", "call_id", callID, "err", err)
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}

	slog.Info("language selected", "call_id", callID, "language", lang.Code)

	writeTwiML(w, twiml{
		Connect: &twimlConnect{
			Stream: twimlStream{URL: s.streamURL(lang.Code)},
		},
	})
}

// streamURL converts the public base URL into the websocket URL for the
// given language. The language rides in the path because the telephony
// provider strips query parameters from stream URLs.
func (s *Server) streamURL(code callsession.LanguageCode) string {
	base := s.publicURL
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/media-stream/" + string(code)
}

// handleStatus consumes the call status callback and finalizes the session.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	callID := r.FormValue("CallSid")
	status := r.FormValue("CallStatus")

	var outcome callsession.Outcome
	var detail string
	switch status {
	case "completed":
		outcome = callsession.OutcomeCompleted
	case "canceled", "busy", "no-answer":
		outcome = callsession.OutcomeCancelled
	case "failed":
		outcome = callsession.OutcomeError
		detail = "call failed"
	default:
		// Interim statuses (queued, ringing, in-progress) need no action.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.endCall(r.Context(), callID, outcome, detail)
	w.WriteHeader(http.StatusNoContent)
}

// endCall finalizes the session exactly once: the first caller (status
// webhook or stream teardown) wins, later calls are no-ops. Reports whether
// this call performed the finalization.
func (s *Server) endCall(ctx context.Context, callID string, outcome callsession.Outcome, detail string) bool {
	sess, err := s.store.Get(ctx, callID)
	if err != nil {
		slog.Error("load session", "call_id", callID, "err", err)
		return false
	}
	if sess == nil || sess.EndedAt != nil {
		return false
	}

	sess.End(outcome, detail)
	if err := s.store.Set(ctx, sess); err != nil {
		slog.Error("store session", "call_id", callID, "err", err)
	}

	s.metrics.CallsEnded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", string(sess.Language)),
		attribute.String("outcome", string(outcome)),
	))
	s.metrics.ActiveCalls.Add(ctx, -1)

	if s.archive != nil {
		if err := s.archive.Record(ctx, sess); err != nil {
			slog.Warn("archive call record", "call_id", callID, "err", err)
		}
	}

	slog.Info("call ended",
		"call_id", callID,
		"outcome", outcome,
		"duration_s", sess.TotalDuration,
		"queries", sess.QueryCount,
	)
	return true
}

// analyticsResponse is the JSON body for GET /analytics/calls.
type analyticsResponse struct {
	Timestamp time.Time                     `json:"timestamp"`
	Summary   callsession.Stats             `json:"summary"`
	Calls     []callsession.AnalyticsRecord `json:"calls"`
}

// handleArchive serves archived call records, newest first. Calls only live
// in the archive once ended; the live registry is served by /analytics/calls.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "archive not configured", http.StatusNotFound)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("query archive", "err", err)
		http.Error(w, "archive unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(map[string]any{"calls": records}); err != nil {
		slog.Error("encode archive records", "err", err)
	}
}

// handleAnalytics reports aggregate stats plus a per-call record list,
// newest call first.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.GetAll(r.Context())
	if err != nil {
		slog.Error("list sessions", "err", err)
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}

	records := make([]callsession.AnalyticsRecord, 0, len(all))
	for _, sess := range all {
		records = append(records, sess.AnalyticsRecord())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(analyticsResponse{
		Timestamp: time.Now().UTC(),
		Summary:   callsession.Aggregate(all),
		Calls:     records,
	}); err != nil {
		slog.Error("encode analytics", "err", err)
	}
}
