// Package archive persists finalized call records to PostgreSQL so that
// reporting outlives the in-memory session registry and its TTL eviction.
// Writes are best-effort from the call-end path: an archive failure is
// logged by the caller and never fails the call.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vaani-ai/vaani/internal/callsession"
)

// Schema is the SQL DDL for the call_records table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS call_records (
    call_id          TEXT PRIMARY KEY,
    stream_id        TEXT NOT NULL DEFAULT '',
    language         TEXT NOT NULL DEFAULT '',
    state            TEXT NOT NULL,
    started_at       TIMESTAMPTZ NOT NULL,
    ended_at         TIMESTAMPTZ,
    total_duration   DOUBLE PRECISION NOT NULL DEFAULT 0,
    query_count      INTEGER NOT NULL DEFAULT 0,
    failed_stt_count INTEGER NOT NULL DEFAULT 0,
    stt_calls        INTEGER NOT NULL DEFAULT 0,
    llm_calls        INTEGER NOT NULL DEFAULT 0,
    tts_calls        INTEGER NOT NULL DEFAULT 0,
    interruptions    INTEGER NOT NULL DEFAULT 0,
    metadata         JSONB NOT NULL DEFAULT '{}',
    archived_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_call_records_started ON call_records(started_at);
CREATE INDEX IF NOT EXISTS idx_call_records_language ON call_records(language);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes finalized call sessions to PostgreSQL and serves the
// recent-calls reporting query.
type Store struct {
	db DB
}

// New creates a Store over the given connection or pool. Call
// [Store.Migrate] once before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the call_records table and
// indexes if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// Ping verifies the archive database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("archive: ping: %w", err)
	}
	return nil
}

// Record upserts the finalized session. Re-archiving the same call (from a
// duplicate cleanup path) overwrites with identical data, so the upsert
// keeps the operation idempotent.
func (s *Store) Record(ctx context.Context, session *callsession.Session) error {
	if session == nil || session.CallID == "" {
		return fmt.Errorf("archive: session must have a call id")
	}

	metaJSON, err := json.Marshal(emptyMap(session.Metadata))
	if err != nil {
		return fmt.Errorf("archive: marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO call_records (
			call_id, stream_id, language, state, started_at, ended_at,
			total_duration, query_count, failed_stt_count,
			stt_calls, llm_calls, tts_calls, interruptions, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (call_id) DO UPDATE SET
			stream_id = EXCLUDED.stream_id,
			state = EXCLUDED.state,
			ended_at = EXCLUDED.ended_at,
			total_duration = EXCLUDED.total_duration,
			query_count = EXCLUDED.query_count,
			failed_stt_count = EXCLUDED.failed_stt_count,
			stt_calls = EXCLUDED.stt_calls,
			llm_calls = EXCLUDED.llm_calls,
			tts_calls = EXCLUDED.tts_calls,
			interruptions = EXCLUDED.interruptions,
			metadata = EXCLUDED.metadata`

	_, err = s.db.Exec(ctx, query,
		session.CallID, session.StreamID, string(session.Language), string(session.State),
		session.StartedAt, session.EndedAt, session.TotalDuration,
		session.QueryCount, session.FailedSTTCount,
		session.STTCalls, session.LLMCalls, session.TTSCalls, session.Interruptions,
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("archive: record call %q: %w", session.CallID, err)
	}
	return nil
}

// CallRecord is one archived call row.
type CallRecord struct {
	CallID         string         `json:"call_id"`
	StreamID       string         `json:"stream_id,omitempty"`
	Language       string         `json:"language,omitempty"`
	State          string         `json:"state"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	TotalDuration  float64        `json:"total_duration"`
	QueryCount     int            `json:"query_count"`
	FailedSTTCount int            `json:"failed_stt_count"`
	STTCalls       int            `json:"stt_calls"`
	LLMCalls       int            `json:"llm_calls"`
	TTSCalls       int            `json:"tts_calls"`
	Interruptions  int            `json:"interruptions"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Recent returns up to limit archived calls, newest started first.
func (s *Store) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT call_id, stream_id, language, state, started_at, ended_at,
		       total_duration, query_count, failed_stt_count,
		       stt_calls, llm_calls, tts_calls, interruptions, metadata
		FROM call_records
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: query recent: %w", err)
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		var rec CallRecord
		var metaJSON []byte
		if err := rows.Scan(
			&rec.CallID, &rec.StreamID, &rec.Language, &rec.State,
			&rec.StartedAt, &rec.EndedAt, &rec.TotalDuration,
			&rec.QueryCount, &rec.FailedSTTCount,
			&rec.STTCalls, &rec.LLMCalls, &rec.TTSCalls, &rec.Interruptions,
			&metaJSON,
		); err != nil {
			return nil, fmt.Errorf("archive: scan row: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("archive: decode metadata for %q: %w", rec.CallID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate rows: %w", err)
	}
	return records, nil
}

// emptyMap substitutes an empty map for nil so JSONB columns never hold SQL
// NULL.
func emptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
