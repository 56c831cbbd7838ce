package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileYieldsEmptyBase(t *testing.T) {
	t.Parallel()

	base := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if base == nil {
		t.Fatal("Load returned nil base")
	}
	if base.Len() != 0 {
		t.Errorf("Load(missing file) has %d entries, want 0", base.Len())
	}
}

func TestLoad_MalformedFileYieldsEmptyBase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kb.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	base := Load(path)
	if base.Len() != 0 {
		t.Errorf("Load(malformed file) has %d entries, want 0", base.Len())
	}
}

func TestDecode_SourceShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		src         string
		wantEntries int
		wantMeta    bool
	}{
		{
			name:        "bare array",
			src:         `[{"question":"q1","answer":"a1"},{"question":"q2","answer":"a2"}]`,
			wantEntries: 2,
		},
		{
			name:        "wrapper with metadata",
			src:         `{"entries":[{"question":"q1","answer":"a1"}],"metadata":{"version":"2"}}`,
			wantEntries: 1,
			wantMeta:    true,
		},
		{
			name:        "wrapper with empty entries",
			src:         `{"entries":[]}`,
			wantEntries: 0,
		},
		{
			name:        "single bare entry",
			src:         `{"question":"q1","answer":"a1","keywords":["k"]}`,
			wantEntries: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			base, err := Decode(strings.NewReader(tt.src))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if base.Len() != tt.wantEntries {
				t.Errorf("entries = %d, want %d", base.Len(), tt.wantEntries)
			}
			if tt.wantMeta && base.Metadata["version"] != "2" {
				t.Errorf("metadata version = %v, want \"2\"", base.Metadata["version"])
			}
		})
	}
}

func TestDecode_RejectsScalars(t *testing.T) {
	t.Parallel()

	if _, err := Decode(strings.NewReader(`42`)); err == nil {
		t.Error("Decode(scalar) succeeded, want error")
	}
	if _, err := Decode(strings.NewReader(`"text"`)); err == nil {
		t.Error("Decode(string) succeeded, want error")
	}
}

func TestEngine_ReloadSwapsAtomically(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kb.json")
	if err := os.WriteFile(path, []byte(`[{"question":"old","answer":"a"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := NewEngineFromFile(path)
	if engine.Base().Len() != 1 || engine.Base().Entries[0].Question != "old" {
		t.Fatalf("initial base = %+v", engine.Base())
	}

	if err := os.WriteFile(path, []byte(`[{"question":"new","answer":"a"},{"question":"new2","answer":"b"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	engine.Reload()

	base := engine.Base()
	if base.Len() != 2 || base.Entries[0].Question != "new" {
		t.Errorf("reloaded base = %+v, want the rewritten file contents", base)
	}
	if engine.Index().Size() == 0 {
		t.Error("index not rebuilt on reload")
	}
}
