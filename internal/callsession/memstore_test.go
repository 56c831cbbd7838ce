package callsession

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemStore_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	// Absent ID is nil, not an error.
	got, err := store.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get(missing): %v", err)
	}
	if got != nil {
		t.Fatalf("Get(missing) = %+v, want nil", got)
	}

	s := New("CA1", StateLanguageSelection, map[string]any{"caller": "+91999"})
	if err := store.Set(ctx, s); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err = store.Get(ctx, "CA1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.CallID != "CA1" || got.State != StateLanguageSelection {
		t.Fatalf("Get = %+v", got)
	}

	// Last set wins, wholesale.
	got.SelectLanguage(LanguageHindi)
	if err := store.Set(ctx, got); err != nil {
		t.Fatalf("Set(update): %v", err)
	}
	got2, _ := store.Get(ctx, "CA1")
	if got2.State != StateActive || got2.Language != LanguageHindi {
		t.Errorf("updated session = %+v", got2)
	}

	if err := store.Delete(ctx, "CA1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Get(ctx, "CA1"); got != nil {
		t.Error("session still present after Delete")
	}

	// Deleting an absent ID is a no-op.
	if err := store.Delete(ctx, "CA1"); err != nil {
		t.Errorf("Delete(absent): %v", err)
	}
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	_ = store.Set(ctx, New("CA1", StateActive, nil))

	first, _ := store.Get(ctx, "CA1")
	first.RecordQuery()
	first.End(OutcomeError, "local mutation")

	second, _ := store.Get(ctx, "CA1")
	if second.QueryCount != 0 || second.State != StateActive {
		t.Errorf("mutation of a Get result leaked into the store: %+v", second)
	}
}

func TestMemStore_SnapshotIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	_ = store.Set(ctx, New("CA1", StateActive, nil))
	snapshot, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}

	// Mutate the registry after taking the snapshot.
	_ = store.Set(ctx, New("CA2", StateActive, nil))
	updated, _ := store.Get(ctx, "CA1")
	updated.End(OutcomeCompleted, "")
	_ = store.Set(ctx, updated)
	_ = store.Delete(ctx, "CA1")

	if len(snapshot) != 1 {
		t.Errorf("snapshot grew/shrank to %d entries", len(snapshot))
	}
	if snapshot["CA1"] == nil || snapshot["CA1"].State != StateActive {
		t.Errorf("snapshot contents changed retroactively: %+v", snapshot["CA1"])
	}
}

func TestMemStore_ConcurrentSets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := New(fmt.Sprintf("CA%03d", i), StateActive, nil)
			s.QueryCount = i
			_ = store.Set(ctx, s)
		}(i)
	}
	wg.Wait()

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != n {
		t.Fatalf("GetAll returned %d sessions, want %d", len(all), n)
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("CA%03d", i)
		s, ok := all[id]
		if !ok {
			t.Errorf("session %s missing", id)
			continue
		}
		if s.QueryCount != i {
			t.Errorf("session %s QueryCount = %d, want %d", id, s.QueryCount, i)
		}
	}
}

func TestMemStore_SweepExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	// An old ended session, a freshly ended one, and a live one.
	old := New("CA-old", StateActive, nil)
	old.End(OutcomeCompleted, "")
	past := time.Now().UTC().Add(-2 * time.Hour)
	old.EndedAt = &past
	_ = store.Set(ctx, old)

	fresh := New("CA-fresh", StateActive, nil)
	fresh.End(OutcomeCompleted, "")
	_ = store.Set(ctx, fresh)

	live := New("CA-live", StateActive, nil)
	live.StartedAt = time.Now().UTC().Add(-24 * time.Hour) // ancient but not ended
	_ = store.Set(ctx, live)

	removed := store.SweepExpired(time.Hour)
	if removed != 1 {
		t.Errorf("SweepExpired removed %d, want 1", removed)
	}
	if got, _ := store.Get(ctx, "CA-old"); got != nil {
		t.Error("expired session survived the sweep")
	}
	if got, _ := store.Get(ctx, "CA-fresh"); got == nil {
		t.Error("recently ended session was evicted")
	}
	if got, _ := store.Get(ctx, "CA-live"); got == nil {
		t.Error("live session was evicted; sweep must never touch unended calls")
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()

	a := New("CA1", StateLanguageSelection, nil)
	a.SelectLanguage(LanguageTelugu)
	a.RecordQuery()
	a.RecordQuery()
	_ = store.Set(ctx, a)

	b := New("CA2", StateLanguageSelection, nil)
	b.SelectLanguage(LanguageTelugu)
	b.RecordQuery()
	b.RecordSTTOutcome(false)
	b.End(OutcomeCompleted, "")
	_ = store.Set(ctx, b)

	c := New("CA3", StateLanguageSelection, nil)
	c.SelectLanguage(LanguageEnglish)
	_ = store.Set(ctx, c)

	snapshot, _ := store.GetAll(ctx)
	stats := Aggregate(snapshot)

	if stats.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", stats.TotalCalls)
	}
	if stats.ActiveCalls != 2 {
		t.Errorf("ActiveCalls = %d, want 2", stats.ActiveCalls)
	}
	if stats.TotalQueries != 3 {
		t.Errorf("TotalQueries = %d, want 3", stats.TotalQueries)
	}
	if stats.FailedSTT != 1 {
		t.Errorf("FailedSTT = %d, want 1", stats.FailedSTT)
	}
	if stats.ByLanguage[LanguageTelugu] != 2 || stats.ByLanguage[LanguageEnglish] != 1 {
		t.Errorf("ByLanguage = %v", stats.ByLanguage)
	}
	if stats.ByState[StateActive] != 2 || stats.ByState[StateEnded] != 1 {
		t.Errorf("ByState = %v", stats.ByState)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	sweeper := NewSweeper(store, time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
