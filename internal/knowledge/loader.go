package knowledge

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Load reads a knowledge base JSON file from path. The file may contain a
// bare array of entries, an object with an "entries" field plus optional
// "metadata", or a single entry object.
//
// Load never fails hard: a missing, unreadable, or malformed file yields an
// empty Base so the caller degrades to "no knowledge augmentation" instead
// of refusing calls. Problems are logged at warn level.
func Load(path string) *Base {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("knowledge: source not readable, continuing with empty base", "path", path, "err", err)
		return &Base{}
	}
	defer f.Close()

	base, err := Decode(f)
	if err != nil {
		slog.Warn("knowledge: malformed source, continuing with empty base", "path", path, "err", err)
		return &Base{}
	}

	slog.Info("knowledge: loaded base", "path", path, "entries", base.Len())
	return base
}

// Decode parses knowledge base JSON from r. Unlike [Load] it reports parse
// failures to the caller; tests and callers that want strictness use it
// directly.
func Decode(r io.Reader) (*Base, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read source: %w", err)
	}
	return parse(data)
}

// parse accepts the three source shapes: array, wrapper object, single entry.
func parse(data []byte) (*Base, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("knowledge: decode json: %w", err)
	}

	switch raw.(type) {
	case []any:
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("knowledge: decode entry array: %w", err)
		}
		return &Base{Entries: entries}, nil

	case map[string]any:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("knowledge: decode object: %w", err)
		}

		base := &Base{}
		if meta, ok := fields["metadata"]; ok {
			if err := json.Unmarshal(meta, &base.Metadata); err != nil {
				return nil, fmt.Errorf("knowledge: decode metadata: %w", err)
			}
		}

		if rawEntries, ok := fields["entries"]; ok {
			if err := json.Unmarshal(rawEntries, &base.Entries); err != nil {
				return nil, fmt.Errorf("knowledge: decode entries: %w", err)
			}
			return base, nil
		}

		// No "entries" key: the object is a single bare entry. Its metadata
		// field doubles as the base metadata, matching the wrapper shape.
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("knowledge: decode single entry: %w", err)
		}
		base.Entries = []Entry{entry}
		return base, nil

	default:
		return nil, fmt.Errorf("knowledge: unsupported top-level json value")
	}
}
