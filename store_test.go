package main

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "calfeed.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := initSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return NewStore(db)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func mustCreateCalendar(t *testing.T, store *Store, name string) string {
	t.Helper()
	id, err := store.CreateCalendar(name, "")
	if err != nil {
		t.Fatalf("create calendar: %v", err)
	}
	return id
}

func mustCreateEvent(t *testing.T, store *Store, calendarID string, ev NewEvent) string {
	t.Helper()
	id, err := store.CreateEvent(calendarID, ev)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return id
}

func TestCreateCalendarRejectsEmptyName(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"", "   ", "\t"} {
		if _, err := store.CreateCalendar(name, ""); !errors.Is(err, ErrValidation) {
			t.Errorf("CreateCalendar(%q): got %v, want ErrValidation", name, err)
		}
	}
}

func TestCreateEventValidation(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")

	valid := NewEvent{
		Summary:        "Matavfall",
		DtstartInitial: "2026-02-10",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	}

	tests := []struct {
		name    string
		calID   string
		mutate  func(ev *NewEvent)
		wantErr error
	}{
		{"empty summary", calID, func(ev *NewEvent) { ev.Summary = " " }, ErrValidation},
		{"zero duration", calID, func(ev *NewEvent) { ev.DurationDays = 0 }, ErrValidation},
		{"negative duration", calID, func(ev *NewEvent) { ev.DurationDays = -3 }, ErrValidation},
		{"oversized duration", calID, func(ev *NewEvent) { ev.DurationDays = 256 }, ErrValidation},
		{"bad date", calID, func(ev *NewEvent) { ev.DtstartInitial = "10.02.2026" }, ErrValidation},
		{"bad rrule", calID, func(ev *NewEvent) { ev.RRule = "FREQ=NEVER" }, ErrValidation},
		{"ftp url", calID, func(ev *NewEvent) { ev.URL = "ftp://example.com/" }, ErrValidation},
		{"url with credentials", calID, func(ev *NewEvent) { ev.URL = "https://user@example.com/" }, ErrValidation},
		{"unknown calendar", "no-such-calendar", func(ev *NewEvent) {}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid
			tt.mutate(&ev)
			if _, err := store.CreateEvent(tt.calID, ev); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := store.CreateEvent(calID, valid); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}
}

func TestCreateEventStartsAtSequenceZero(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")
	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Matavfall",
		DtstartInitial: "2026-02-10",
		DurationDays:   1,
	})

	ev, err := store.GetEvent(evID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if ev.Sequence != 0 {
		t.Errorf("sequence = %d, want 0", ev.Sequence)
	}
}

func TestExceptionSelfMoveRejected(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")
	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Matavfall",
		DtstartInitial: "2026-02-10",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	})

	_, err := store.UpsertException(evID, "2026-02-10", strPtr("2026-02-10"), nil, nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("self-move: got %v, want ErrValidation", err)
	}
	_, err = store.InsertException(evID, "2026-02-10", strPtr("2026-02-10"), nil, nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("self-move insert: got %v, want ErrValidation", err)
	}
}

func TestInsertExceptionConflict(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")
	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Matavfall",
		DtstartInitial: "2026-02-10",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	})

	first, err := store.InsertException(evID, "2026-02-10", strPtr("2026-02-12"), nil, nil)
	if err != nil {
		t.Fatalf("insert exception: %v", err)
	}

	if _, err := store.InsertException(evID, "2026-02-10", strPtr("2026-02-13"), nil, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate insert: got %v, want ErrConflict", err)
	}

	// The upsert path updates the existing row and keeps its identity.
	second, err := store.UpsertException(evID, "2026-02-10", strPtr("2026-02-13"), nil, nil)
	if err != nil {
		t.Fatalf("upsert exception: %v", err)
	}
	if second != first {
		t.Errorf("upsert changed exception id: %s -> %s", first, second)
	}

	var count int
	err = store.ForEachEventException(evID, func(EventException) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("iterate exceptions: %v", err)
	}
	if count != 1 {
		t.Errorf("exception count = %d, want 1", count)
	}
}

func TestExceptionOnUnknownEvent(t *testing.T) {
	store := newTestStore(t)
	_, err := store.UpsertException("no-such-event", "2026-02-10", nil, nil, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := store.DeleteException("no-such-exception"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete: got %v, want ErrNotFound", err)
	}
}

func TestDeleteCalendarCascades(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")
	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Matavfall",
		DtstartInitial: "2026-02-10",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	})
	exID, err := store.UpsertException(evID, "2026-02-10", strPtr("2026-02-12"), nil, nil)
	if err != nil {
		t.Fatalf("upsert exception: %v", err)
	}

	if err := store.DeleteCalendar(calID); err != nil {
		t.Fatalf("delete calendar: %v", err)
	}

	if _, err := store.GetCalendar(calID); !errors.Is(err, ErrNotFound) {
		t.Errorf("calendar lookup after delete: got %v, want ErrNotFound", err)
	}
	if _, err := store.GetEvent(evID); !errors.Is(err, ErrNotFound) {
		t.Errorf("event lookup after delete: got %v, want ErrNotFound", err)
	}
	if err := store.DeleteException(exID); !errors.Is(err, ErrNotFound) {
		t.Errorf("exception lookup after delete: got %v, want ErrNotFound", err)
	}
}

func TestDeleteEventCascadesExceptions(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")
	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Matavfall",
		DtstartInitial: "2026-02-10",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	})
	keepID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Restavfall",
		DtstartInitial: "2026-02-11",
		DurationDays:   1,
	})
	if _, err := store.UpsertException(evID, "2026-02-10", strPtr("2026-02-12"), nil, nil); err != nil {
		t.Fatalf("upsert exception: %v", err)
	}

	if err := store.DeleteEvent(evID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	if _, err := store.GetEvent(evID); !errors.Is(err, ErrNotFound) {
		t.Errorf("event lookup after delete: got %v, want ErrNotFound", err)
	}

	var leftover int
	err := store.ForEachEventException("", func(EventException) error {
		leftover++
		return nil
	})
	if err != nil {
		t.Fatalf("iterate exceptions: %v", err)
	}
	if leftover != 0 {
		t.Errorf("leftover exceptions = %d, want 0", leftover)
	}

	// The sibling is untouched.
	if _, err := store.GetEvent(keepID); err != nil {
		t.Errorf("sibling event lookup: %v", err)
	}
	if err := store.DeleteEvent(evID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

// The end-to-end scenario from the garbage pickup feed: every override
// operation and field edit advances the sequence by one.
func TestRecurringEventLifecycle(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")

	calBefore, err := store.GetCalendar(calID)
	if err != nil {
		t.Fatalf("get calendar: %v", err)
	}

	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Matavfall",
		DtstartInitial: "2026-02-10",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	})

	seq := func() int64 {
		t.Helper()
		ev, err := store.GetEvent(evID)
		if err != nil {
			t.Fatalf("get event: %v", err)
		}
		return ev.Sequence
	}

	if got := seq(); got != 0 {
		t.Fatalf("initial sequence = %d, want 0", got)
	}

	exID, err := store.UpsertException(evID, "2026-02-10", strPtr("2026-02-12"), nil, nil)
	if err != nil {
		t.Fatalf("upsert exception: %v", err)
	}
	if got := seq(); got != 1 {
		t.Errorf("sequence after exception insert = %d, want 1", got)
	}

	if err := store.DeleteException(exID); err != nil {
		t.Fatalf("delete exception: %v", err)
	}
	if got := seq(); got != 2 {
		t.Errorf("sequence after exception delete = %d, want 2", got)
	}

	if err := store.UpdateEvent(evID, EventUpdate{Summary: strPtr("Restavfall")}); err != nil {
		t.Fatalf("update event: %v", err)
	}
	if got := seq(); got != 3 {
		t.Errorf("sequence after summary update = %d, want 3", got)
	}

	calAfter, err := store.GetCalendar(calID)
	if err != nil {
		t.Fatalf("get calendar: %v", err)
	}
	if !calAfter.LastModified.After(calBefore.CreatedAt) {
		t.Errorf("calendar last_modified %v not after creation time %v",
			calAfter.LastModified, calBefore.CreatedAt)
	}
}
