package callsession

import "context"

// Store is the registry of call sessions keyed by call ID. Each operation is
// individually atomic with respect to the others; one call ID has one
// logical writer, so last-set-wins semantics are safe.
//
// Implementations must never block call handling on anything slow: GetAll
// returns a point-in-time snapshot rather than holding a lock over the
// whole map, and later mutations never appear in an already-returned
// snapshot.
type Store interface {
	// Get returns the session for callID, or nil (with a nil error) when
	// no such call is known.
	Get(ctx context.Context, callID string) (*Session, error)

	// Set upserts the session keyed by its CallID, replacing any prior
	// value wholesale.
	Set(ctx context.Context, session *Session) error

	// Delete removes the session for callID; absent IDs are a no-op.
	Delete(ctx context.Context, callID string) error

	// GetAll returns a snapshot of every stored session.
	GetAll(ctx context.Context) (map[string]*Session, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
