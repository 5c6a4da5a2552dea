package main

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Read-side projections. Iteration is callback-driven so a renderer can
// stream rows without the store materializing the whole result, and a
// restart is just another call. Blank or whitespace-only text comes
// back as nil, never as an empty string, so "inherit from the parent
// event" works the same for every field.

func (s *Store) GetCalendar(calendarID string) (*Calendar, error) {
	row := s.db.QueryRow(`SELECT id, name, description, created_at, last_modified
		FROM calendars WHERE id = ?`, calendarID)
	cal, err := scanCalendar(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: calendar %s", ErrNotFound, calendarID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read calendar: %v", ErrStorage, err)
	}
	return cal, nil
}

func (s *Store) ForEachCalendar(fn func(Calendar) error) error {
	rows, err := s.db.Query(`SELECT id, name, description, created_at, last_modified
		FROM calendars ORDER BY id`)
	if err != nil {
		return fmt.Errorf("%w: query calendars: %v", ErrStorage, err)
	}
	defer rows.Close()
	for rows.Next() {
		cal, err := scanCalendar(rows)
		if err != nil {
			return fmt.Errorf("%w: scan calendar: %v", ErrStorage, err)
		}
		if err := fn(*cal); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: query calendars: %v", ErrStorage, err)
	}
	return nil
}

func (s *Store) GetEvent(eventID string) (*Event, error) {
	row := s.db.QueryRow(selectEvents+` WHERE id = ?`, eventID)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read event: %v", ErrStorage, err)
	}
	return ev, nil
}

// ForEachEvent visits events ordered by creation. An empty calendarID
// visits every event in the store.
func (s *Store) ForEachEvent(calendarID string, fn func(Event) error) error {
	query := selectEvents
	var args []interface{}
	if calendarID != "" {
		query += ` WHERE calendar_id = ?`
		args = append(args, calendarID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("%w: query events: %v", ErrStorage, err)
	}
	defer rows.Close()
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("%w: scan event: %v", ErrStorage, err)
		}
		if err := fn(*ev); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: query events: %v", ErrStorage, err)
	}
	return nil
}

// ForEachEventException visits overrides ordered by
// (event_id, original_date) so feed output is reproducible. An empty
// eventID visits every exception in the store.
func (s *Store) ForEachEventException(eventID string, fn func(EventException) error) error {
	query := `SELECT id, event_id, original_date, new_date, new_summary, new_description
		FROM event_exceptions`
	var args []interface{}
	if eventID != "" {
		query += ` WHERE event_id = ?`
		args = append(args, eventID)
	}
	query += ` ORDER BY event_id, original_date`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("%w: query exceptions: %v", ErrStorage, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ex EventException
		var newDate, newSummary, newDescription sql.NullString
		if err := rows.Scan(&ex.ID, &ex.EventID, &ex.OriginalDate, &newDate, &newSummary, &newDescription); err != nil {
			return fmt.Errorf("%w: scan exception: %v", ErrStorage, err)
		}
		ex.NewDate = textOrNil(newDate)
		ex.NewSummary = textOrNil(newSummary)
		ex.NewDescription = textOrNil(newDescription)
		if err := fn(ex); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: query exceptions: %v", ErrStorage, err)
	}
	return nil
}

const selectEvents = `SELECT id, calendar_id, summary, description, url, dtstart_initial,
	duration_days, rrule, sequence, created_at, last_modified FROM events`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCalendar(row rowScanner) (*Calendar, error) {
	var cal Calendar
	var description sql.NullString
	var createdAt, lastModified string
	if err := row.Scan(&cal.ID, &cal.Name, &description, &createdAt, &lastModified); err != nil {
		return nil, err
	}
	cal.Description = textOrNil(description)
	var err error
	if cal.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if cal.LastModified, err = parseTimestamp(lastModified); err != nil {
		return nil, err
	}
	return &cal, nil
}

func scanEvent(row rowScanner) (*Event, error) {
	var ev Event
	var description, url, rrule sql.NullString
	var createdAt, lastModified string
	err := row.Scan(&ev.ID, &ev.CalendarID, &ev.Summary, &description, &url,
		&ev.DtstartInitial, &ev.DurationDays, &rrule, &ev.Sequence, &createdAt, &lastModified)
	if err != nil {
		return nil, err
	}
	ev.Description = textOrNil(description)
	ev.URL = textOrNil(url)
	ev.RRule = textOrNil(rrule)
	if ev.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if ev.LastModified, err = parseTimestamp(lastModified); err != nil {
		return nil, err
	}
	return &ev, nil
}

// textOrNil is the read-time normalization: stored blanks surface as
// absent values. The stored row is left as-is.
func textOrNil(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	trimmed := strings.TrimSpace(ns.String)
	if trimmed == "" {
		return nil
	}
	value := ns.String
	return &value
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(timestampLayout, value)
}
