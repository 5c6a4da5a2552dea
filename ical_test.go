package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/emersion/go-ical"
)

func encodeFeed(t *testing.T, store *Store, calendarID string) string {
	t.Helper()
	feed, err := buildFeed(store, calendarID)
	if err != nil {
		t.Fatalf("build feed: %v", err)
	}
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(feed); err != nil {
		t.Fatalf("encode feed: %v", err)
	}
	return buf.String()
}

func TestFeedRendersRecurringEvent(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")
	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "🍌 Matavfall",
		URL:            "https://innherredrenovasjon.no/tommeplan/",
		DtstartInitial: "2026-02-03",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	})
	if _, err := store.UpsertException(evID, "2026-02-10", strPtr("2026-02-12"), nil, nil); err != nil {
		t.Fatalf("move exception: %v", err)
	}

	out := encodeFeed(t, store, calID)

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"PRODID:" + prodID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"UID:" + formatUID(evID),
		"DTSTART;VALUE=DATE:20260203",
		"DTEND;VALUE=DATE:20260204",
		"RRULE:FREQ=WEEKLY",
		"EXDATE;VALUE=DATE:20260210",
		"RECURRENCE-ID;VALUE=DATE:20260210",
		"DTSTART;VALUE=DATE:20260212",
		"TRANSP:TRANSPARENT",
		"URL:https://innherredrenovasjon.no/tommeplan/",
		"SEQUENCE:1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q\n%s", want, out)
		}
	}

	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("VEVENT count = %d, want 2 (master + override)", got)
	}
	// The override stands for a single occurrence, no rule of its own.
	if got := strings.Count(out, "RRULE:"); got != 1 {
		t.Errorf("RRULE count = %d, want 1", got)
	}
}

// A cancellation is an EXDATE on the master with no override component.
func TestFeedCancelledOccurrenceHasNoOverride(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")
	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Restavfall",
		DtstartInitial: "2026-02-03",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	})
	if _, err := store.UpsertException(evID, "2026-02-17", nil, nil, nil); err != nil {
		t.Fatalf("cancel exception: %v", err)
	}

	out := encodeFeed(t, store, calID)
	if !strings.Contains(out, "EXDATE;VALUE=DATE:20260217") {
		t.Errorf("feed missing EXDATE for cancelled occurrence\n%s", out)
	}
	if strings.Contains(out, "RECURRENCE-ID") {
		t.Errorf("cancelled occurrence produced an override\n%s", out)
	}
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 1 {
		t.Errorf("VEVENT count = %d, want 1", got)
	}
}

func TestFeedRelabelledOccurrence(t *testing.T) {
	store := newTestStore(t)
	calID := mustCreateCalendar(t, store, "Garbage")
	evID := mustCreateEvent(t, store, calID, NewEvent{
		Summary:        "Matavfall",
		DtstartInitial: "2026-02-03",
		DurationDays:   1,
		RRule:          "FREQ=WEEKLY",
	})
	if _, err := store.UpsertException(evID, "2026-02-10", nil, strPtr("Matavfall (utsatt)"), nil); err != nil {
		t.Fatalf("relabel exception: %v", err)
	}

	out := encodeFeed(t, store, calID)
	if !strings.Contains(out, "SUMMARY:Matavfall (utsatt)") {
		t.Errorf("feed missing relabelled summary\n%s", out)
	}
	if !strings.Contains(out, "RECURRENCE-ID;VALUE=DATE:20260210") {
		t.Errorf("feed missing override for relabelled occurrence\n%s", out)
	}
	// Relabel only: the override keeps the original date.
	if !strings.Contains(out, "DTSTART;VALUE=DATE:20260210") {
		t.Errorf("override lost its original start date\n%s", out)
	}
}

func TestFeedUnknownCalendar(t *testing.T) {
	store := newTestStore(t)
	if _, err := buildFeed(store, "no-such-calendar"); err == nil {
		t.Error("expected error for unknown calendar")
	}
}
