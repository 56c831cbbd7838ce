package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vaani-ai/vaani/internal/callsession"
)

// mockDB implements DB, recording executed SQL and arguments.
type mockDB struct {
	execSQL  []string
	execArgs [][]any
	execErr  error

	queryRows pgx.Rows
	queryErr  error
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execSQL = append(m.execSQL, sql)
	m.execArgs = append(m.execArgs, args)
	return pgconn.CommandTag{}, m.execErr
}

func (m *mockDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryRows, nil
}

func (m *mockDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return nil
}

// mockRows implements pgx.Rows over fixed row data.
type mockRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *float64:
			*d = v.(float64)
		case *time.Time:
			*d = v.(time.Time)
		case **time.Time:
			if v == nil {
				*d = nil
			} else {
				t := v.(time.Time)
				*d = &t
			}
		case *[]byte:
			*d = v.([]byte)
		}
	}
	return nil
}

func (r *mockRows) Values() ([]any, error) { return nil, nil }

func TestMigrate(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	if err := New(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS call_records") {
		t.Errorf("Migrate executed %v", db.execSQL)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	if err := New(&mockDB{}).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := New(&mockDB{execErr: errors.New("down")}).Ping(context.Background()); err == nil {
		t.Error("Ping with failing db succeeded")
	}
}

func TestRecord(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	store := New(db)

	s := callsession.New("CA1", callsession.StateLanguageSelection, map[string]any{"caller": "+91999"})
	s.SelectLanguage(callsession.LanguageTelugu)
	s.RecordQuery()
	s.End(callsession.OutcomeCompleted, "")

	if err := store.Record(context.Background(), s); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(db.execArgs) != 1 {
		t.Fatalf("Record executed %d statements", len(db.execArgs))
	}
	args := db.execArgs[0]
	if args[0] != "CA1" {
		t.Errorf("call_id arg = %v", args[0])
	}
	if args[2] != "te-IN" {
		t.Errorf("language arg = %v", args[2])
	}

	var meta map[string]any
	if err := json.Unmarshal(args[13].([]byte), &meta); err != nil {
		t.Fatalf("metadata arg not json: %v", err)
	}
	if meta["caller"] != "+91999" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestRecord_Validation(t *testing.T) {
	t.Parallel()

	store := New(&mockDB{})
	if err := store.Record(context.Background(), nil); err == nil {
		t.Error("Record(nil) succeeded, want error")
	}
	if err := store.Record(context.Background(), &callsession.Session{}); err == nil {
		t.Error("Record(no call id) succeeded, want error")
	}
}

func TestRecord_DBError(t *testing.T) {
	t.Parallel()

	db := &mockDB{execErr: errors.New("connection refused")}
	s := callsession.New("CA1", callsession.StateActive, nil)
	if err := New(db).Record(context.Background(), s); err == nil {
		t.Error("Record with failing DB succeeded, want error")
	}
}

func TestRecent(t *testing.T) {
	t.Parallel()

	started := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ended := started.Add(3 * time.Minute)
	db := &mockDB{queryRows: &mockRows{data: [][]any{
		{"CA1", "MZ1", "hi-IN", "ended", started, ended, 180.0, 4, 1, 5, 4, 4, 0, []byte(`{"caller":"+91999"}`)},
	}}}

	records, err := New(db).Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Recent returned %d records", len(records))
	}
	rec := records[0]
	if rec.CallID != "CA1" || rec.Language != "hi-IN" || rec.TotalDuration != 180.0 {
		t.Errorf("record = %+v", rec)
	}
	if rec.EndedAt == nil || !rec.EndedAt.Equal(ended) {
		t.Errorf("EndedAt = %v, want %v", rec.EndedAt, ended)
	}
	if rec.Metadata["caller"] != "+91999" {
		t.Errorf("metadata = %v", rec.Metadata)
	}
}
