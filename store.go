package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Store is the write side of the entity store. Every operation runs as
// one transaction; the versioning reaction for a mutation commits or
// rolls back together with it, so a half-applied write is never
// observable.
type Store struct {
	db  *sql.DB
	ver *versioner
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, ver: newVersioner()}
}

func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStorage, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorage, err)
	}
	return nil
}

// CreateCalendar stores a new calendar and returns its id. Calendar ids
// are UUIDv7 so they sort by creation time.
func (s *Store) CreateCalendar(name, description string) (string, error) {
	if isBlank(name) {
		return "", fmt.Errorf("%w: calendar name must not be empty", ErrValidation)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("%w: generate id: %v", ErrStorage, err)
	}
	ts := s.ver.timestamp()
	err = s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO calendars (id, name, description, created_at, last_modified)
			VALUES (?, ?, ?, ?, ?)`, id.String(), name, description, ts, ts)
		if err != nil {
			return fmt.Errorf("%w: insert calendar: %v", ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// UpdateCalendar renames or re-describes a calendar. Only the
// calendar's own last_modified is refreshed; events are untouched.
func (s *Store) UpdateCalendar(calendarID string, name, description *string) error {
	if name == nil && description == nil {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if name != nil && isBlank(*name) {
		return fmt.Errorf("%w: calendar name must not be empty", ErrValidation)
	}
	return s.withTx(func(tx *sql.Tx) error {
		var curName, curDescription string
		err := tx.QueryRow(`SELECT name, description FROM calendars WHERE id = ?`, calendarID).
			Scan(&curName, &curDescription)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: calendar %s", ErrNotFound, calendarID)
		}
		if err != nil {
			return fmt.Errorf("%w: read calendar: %v", ErrStorage, err)
		}

		changed := false
		if name != nil && *name != curName {
			curName = *name
			changed = true
		}
		if description != nil && *description != curDescription {
			curDescription = *description
			changed = true
		}
		if !changed {
			return nil
		}

		_, err = tx.Exec(`UPDATE calendars SET name = ?, description = ?, last_modified = ? WHERE id = ?`,
			curName, curDescription, s.ver.timestamp(), calendarID)
		if err != nil {
			return fmt.Errorf("%w: update calendar: %v", ErrStorage, err)
		}
		return nil
	})
}

// NewEvent carries the fields of createEvent. Description, URL and
// RRule may be left empty.
type NewEvent struct {
	Summary        string
	Description    string
	URL            string
	DtstartInitial string
	DurationDays   int
	RRule          string
}

func (s *Store) CreateEvent(calendarID string, ev NewEvent) (string, error) {
	if isBlank(ev.Summary) {
		return "", fmt.Errorf("%w: event summary must not be empty", ErrValidation)
	}
	if ev.DurationDays <= 0 || ev.DurationDays > 255 {
		return "", fmt.Errorf("%w: duration_days must be between 1 and 255, got %d", ErrValidation, ev.DurationDays)
	}
	if _, err := parseDate(ev.DtstartInitial); err != nil {
		return "", err
	}
	if ev.URL != "" {
		if err := validateURL(ev.URL); err != nil {
			return "", err
		}
	}
	if !isBlank(ev.RRule) {
		if err := validateRRule(strings.TrimSpace(ev.RRule)); err != nil {
			return "", err
		}
	}

	id := uuid.New().String()
	ts := s.ver.timestamp()
	err := s.withTx(func(tx *sql.Tx) error {
		if err := calendarExists(tx, calendarID); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO events
			(id, calendar_id, summary, description, url, dtstart_initial, duration_days, rrule, sequence, created_at, last_modified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			id, calendarID, ev.Summary, ev.Description, nullIfEmpty(ev.URL),
			ev.DtstartInitial, ev.DurationDays, nullIfEmpty(strings.TrimSpace(ev.RRule)), ts, ts)
		if err != nil {
			return fmt.Errorf("%w: insert event: %v", ErrStorage, err)
		}
		return s.ver.apply(tx, eventCreated{calendarID: calendarID})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// EventUpdate is a partial update of an event's mutable fields. Nil
// means leave alone; for URL and RRule an empty string clears the
// field.
type EventUpdate struct {
	Summary        *string
	Description    *string
	URL            *string
	DtstartInitial *string
	DurationDays   *int
	RRule          *string
}

func (u EventUpdate) empty() bool {
	return u.Summary == nil && u.Description == nil && u.URL == nil &&
		u.DtstartInitial == nil && u.DurationDays == nil && u.RRule == nil
}

// UpdateEvent applies upd and, when anything actually changed, bumps
// the event's sequence by exactly one regardless of how many fields the
// update carried.
func (s *Store) UpdateEvent(eventID string, upd EventUpdate) error {
	if upd.empty() {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if upd.Summary != nil && isBlank(*upd.Summary) {
		return fmt.Errorf("%w: event summary must not be empty", ErrValidation)
	}
	if upd.DurationDays != nil && (*upd.DurationDays <= 0 || *upd.DurationDays > 255) {
		return fmt.Errorf("%w: duration_days must be between 1 and 255, got %d", ErrValidation, *upd.DurationDays)
	}
	if upd.DtstartInitial != nil {
		if _, err := parseDate(*upd.DtstartInitial); err != nil {
			return err
		}
	}
	if upd.URL != nil && *upd.URL != "" {
		if err := validateURL(*upd.URL); err != nil {
			return err
		}
	}
	if upd.RRule != nil && !isBlank(*upd.RRule) {
		if err := validateRRule(strings.TrimSpace(*upd.RRule)); err != nil {
			return err
		}
	}

	return s.withTx(func(tx *sql.Tx) error {
		var cur struct {
			summary  string
			desc     string
			url      sql.NullString
			dtstart  string
			duration int
			rrule    sql.NullString
		}
		err := tx.QueryRow(`SELECT summary, description, url, dtstart_initial, duration_days, rrule
			FROM events WHERE id = ?`, eventID).
			Scan(&cur.summary, &cur.desc, &cur.url, &cur.dtstart, &cur.duration, &cur.rrule)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: event %s", ErrNotFound, eventID)
		}
		if err != nil {
			return fmt.Errorf("%w: read event: %v", ErrStorage, err)
		}

		sets := []string{}
		args := []interface{}{}
		if upd.Summary != nil && *upd.Summary != cur.summary {
			sets = append(sets, "summary = ?")
			args = append(args, *upd.Summary)
		}
		if upd.Description != nil && *upd.Description != cur.desc {
			sets = append(sets, "description = ?")
			args = append(args, *upd.Description)
		}
		if upd.URL != nil && *upd.URL != cur.url.String {
			sets = append(sets, "url = ?")
			args = append(args, nullIfEmpty(*upd.URL))
		}
		if upd.DtstartInitial != nil && *upd.DtstartInitial != cur.dtstart {
			sets = append(sets, "dtstart_initial = ?")
			args = append(args, *upd.DtstartInitial)
		}
		if upd.DurationDays != nil && *upd.DurationDays != cur.duration {
			sets = append(sets, "duration_days = ?")
			args = append(args, *upd.DurationDays)
		}
		if upd.RRule != nil && strings.TrimSpace(*upd.RRule) != cur.rrule.String {
			sets = append(sets, "rrule = ?")
			args = append(args, nullIfEmpty(strings.TrimSpace(*upd.RRule)))
		}
		if len(sets) == 0 {
			// Nothing actually changed, no version bump.
			return nil
		}

		args = append(args, eventID)
		_, err = tx.Exec("UPDATE events SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("%w: update event: %v", ErrStorage, err)
		}
		return s.ver.apply(tx, eventUpdated{eventID: eventID})
	})
}

// DeleteEvent removes the event and all its exceptions. The cascade is
// explicit: dependents go first, and no sequence bump is attempted on
// the row being removed. The owning calendar's last_modified still
// advances so feed consumers notice the removal.
func (s *Store) DeleteEvent(eventID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		calendarID, err := deleteEventTree(tx, eventID)
		if err != nil {
			return err
		}
		return s.ver.apply(tx, eventDeleted{calendarID: calendarID})
	})
}

// DeleteCalendar removes the calendar, its events and their exceptions.
func (s *Store) DeleteCalendar(calendarID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if err := calendarExists(tx, calendarID); err != nil {
			return err
		}
		rows, err := tx.Query(`SELECT id FROM events WHERE calendar_id = ?`, calendarID)
		if err != nil {
			return fmt.Errorf("%w: list events: %v", ErrStorage, err)
		}
		var eventIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("%w: scan event id: %v", ErrStorage, err)
			}
			eventIDs = append(eventIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: list events: %v", ErrStorage, err)
		}

		for _, id := range eventIDs {
			if _, err := deleteEventTree(tx, id); err != nil {
				return err
			}
		}
		_, err = tx.Exec(`DELETE FROM calendars WHERE id = ?`, calendarID)
		if err != nil {
			return fmt.Errorf("%w: delete calendar: %v", ErrStorage, err)
		}
		return nil
	})
}

// InsertException is the insert-only path: a second override for the
// same (event_id, original_date) is a conflict.
func (s *Store) InsertException(eventID, originalDate string, newDate, newSummary, newDescription *string) (string, error) {
	if err := validateException(originalDate, newDate); err != nil {
		return "", err
	}
	id := uuid.New().String()
	err := s.withTx(func(tx *sql.Tx) error {
		if err := eventExists(tx, eventID); err != nil {
			return err
		}
		var existing string
		err := tx.QueryRow(`SELECT id FROM event_exceptions WHERE event_id = ? AND original_date = ?`,
			eventID, originalDate).Scan(&existing)
		if err == nil {
			return fmt.Errorf("%w: exception for (%s, %s) already exists", ErrConflict, eventID, originalDate)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("%w: read exception: %v", ErrStorage, err)
		}
		if err := insertExceptionRow(tx, id, eventID, originalDate, newDate, newSummary, newDescription); err != nil {
			return err
		}
		return s.ver.apply(tx, exceptionInserted{eventID: eventID})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpsertException inserts an override, or updates the one that already
// owns (event_id, original_date) while preserving its id. Either way
// the parent event's sequence goes up by one.
func (s *Store) UpsertException(eventID, originalDate string, newDate, newSummary, newDescription *string) (string, error) {
	if err := validateException(originalDate, newDate); err != nil {
		return "", err
	}
	var id string
	err := s.withTx(func(tx *sql.Tx) error {
		if err := eventExists(tx, eventID); err != nil {
			return err
		}
		var existing string
		err := tx.QueryRow(`SELECT id FROM event_exceptions WHERE event_id = ? AND original_date = ?`,
			eventID, originalDate).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			id = uuid.New().String()
			if err := insertExceptionRow(tx, id, eventID, originalDate, newDate, newSummary, newDescription); err != nil {
				return err
			}
			return s.ver.apply(tx, exceptionInserted{eventID: eventID})
		case err != nil:
			return fmt.Errorf("%w: read exception: %v", ErrStorage, err)
		default:
			id = existing
			_, err := tx.Exec(`UPDATE event_exceptions SET new_date = ?, new_summary = ?, new_description = ? WHERE id = ?`,
				nullString(newDate), nullString(newSummary), nullString(newDescription), existing)
			if err != nil {
				return fmt.Errorf("%w: update exception: %v", ErrStorage, err)
			}
			return s.ver.apply(tx, exceptionUpdated{eventID: eventID})
		}
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteException removes an override; the occurrence reverts to its
// rule-computed date. The parent event id is captured before the row
// goes away, because the bump needs it afterwards.
func (s *Store) DeleteException(exceptionID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var eventID string
		err := tx.QueryRow(`SELECT event_id FROM event_exceptions WHERE id = ?`, exceptionID).Scan(&eventID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: exception %s", ErrNotFound, exceptionID)
		}
		if err != nil {
			return fmt.Errorf("%w: read exception: %v", ErrStorage, err)
		}
		_, err = tx.Exec(`DELETE FROM event_exceptions WHERE id = ?`, exceptionID)
		if err != nil {
			return fmt.Errorf("%w: delete exception: %v", ErrStorage, err)
		}
		return s.ver.apply(tx, exceptionDeleted{eventID: eventID})
	})
}

func validateException(originalDate string, newDate *string) error {
	if _, err := parseDate(originalDate); err != nil {
		return err
	}
	if newDate != nil {
		if _, err := parseDate(*newDate); err != nil {
			return err
		}
		if *newDate == originalDate {
			return fmt.Errorf("%w: new_date equals original_date %s", ErrValidation, originalDate)
		}
	}
	return nil
}

func insertExceptionRow(tx *sql.Tx, id, eventID, originalDate string, newDate, newSummary, newDescription *string) error {
	_, err := tx.Exec(`INSERT INTO event_exceptions
		(id, event_id, original_date, new_date, new_summary, new_description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, eventID, originalDate, nullString(newDate), nullString(newSummary), nullString(newDescription))
	if err != nil {
		return fmt.Errorf("%w: insert exception: %v", ErrStorage, err)
	}
	return nil
}

// deleteEventTree removes the event and its exceptions, returning the
// owning calendar id. Exception rows are deleted directly, not through
// DeleteException, so the dying event's sequence is never bumped.
func deleteEventTree(tx *sql.Tx, eventID string) (string, error) {
	var calendarID string
	err := tx.QueryRow(`SELECT calendar_id FROM events WHERE id = ?`, eventID).Scan(&calendarID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read event: %v", ErrStorage, err)
	}
	if _, err := tx.Exec(`DELETE FROM event_exceptions WHERE event_id = ?`, eventID); err != nil {
		return "", fmt.Errorf("%w: delete exceptions: %v", ErrStorage, err)
	}
	if _, err := tx.Exec(`DELETE FROM events WHERE id = ?`, eventID); err != nil {
		return "", fmt.Errorf("%w: delete event: %v", ErrStorage, err)
	}
	return calendarID, nil
}

func calendarExists(tx *sql.Tx, calendarID string) error {
	var one int
	err := tx.QueryRow(`SELECT 1 FROM calendars WHERE id = ?`, calendarID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: calendar %s", ErrNotFound, calendarID)
	}
	if err != nil {
		return fmt.Errorf("%w: read calendar: %v", ErrStorage, err)
	}
	return nil
}

func eventExists(tx *sql.Tx, eventID string) error {
	var one int
	err := tx.QueryRow(`SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if err != nil {
		return fmt.Errorf("%w: read event: %v", ErrStorage, err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
