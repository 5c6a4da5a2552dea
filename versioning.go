package main

import (
	"database/sql"
	"fmt"
	"time"
)

// A mutation describes a write that just happened, so the versioner can
// run the matching reaction inside the same transaction. The store only
// dispatches a mutation after the triggering statement succeeded.
type mutation interface{ mutation() }

type eventCreated struct{ calendarID string }
type eventDeleted struct{ calendarID string }
type eventUpdated struct{ eventID string }
type exceptionInserted struct{ eventID string }
type exceptionUpdated struct{ eventID string }
type exceptionDeleted struct{ eventID string }

func (eventCreated) mutation()      {}
func (eventDeleted) mutation()      {}
func (eventUpdated) mutation()      {}
func (exceptionInserted) mutation() {}
func (exceptionUpdated) mutation()  {}
func (exceptionDeleted) mutation()  {}

// versioner keeps sequence and last_modified consistent across the
// event/calendar hierarchy. It writes version stamps through its own
// statements only, so a bump can never trigger another bump.
type versioner struct {
	now func() time.Time
}

func newVersioner() *versioner {
	return &versioner{now: time.Now}
}

func (v *versioner) timestamp() string {
	return v.now().UTC().Format(timestampLayout)
}

// apply runs the reaction for m in the caller's transaction. Exactly
// one reaction fires per logical mutation, no matter how many columns
// the triggering statement touched.
func (v *versioner) apply(tx *sql.Tx, m mutation) error {
	ts := v.timestamp()
	switch m := m.(type) {
	case eventCreated:
		return v.touchCalendar(tx, m.calendarID, ts)
	case eventDeleted:
		return v.touchCalendar(tx, m.calendarID, ts)
	case eventUpdated:
		return v.bumpEvent(tx, m.eventID, ts)
	case exceptionInserted:
		return v.bumpEvent(tx, m.eventID, ts)
	case exceptionUpdated:
		return v.bumpEvent(tx, m.eventID, ts)
	case exceptionDeleted:
		return v.bumpEvent(tx, m.eventID, ts)
	default:
		return fmt.Errorf("%w: unhandled mutation %T", ErrStorage, m)
	}
}

// bumpEvent advances the event's sequence by one, stamps its
// last_modified and propagates the stamp to the owning calendar. The
// increment runs in SQL so two transactions can never lose a count to a
// read-modify-write race.
func (v *versioner) bumpEvent(tx *sql.Tx, eventID, ts string) error {
	res, err := tx.Exec(`UPDATE events SET sequence = sequence + 1, last_modified = ? WHERE id = ?`, ts, eventID)
	if err != nil {
		return fmt.Errorf("%w: bump event: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: bump event: %v", ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}

	var calendarID string
	err = tx.QueryRow(`SELECT calendar_id FROM events WHERE id = ?`, eventID).Scan(&calendarID)
	if err != nil {
		return fmt.Errorf("%w: owning calendar of event %s: %v", ErrStorage, eventID, err)
	}
	return v.touchCalendar(tx, calendarID, ts)
}

func (v *versioner) touchCalendar(tx *sql.Tx, calendarID, ts string) error {
	_, err := tx.Exec(`UPDATE calendars SET last_modified = ? WHERE id = ?`, ts, calendarID)
	if err != nil {
		return fmt.Errorf("%w: touch calendar: %v", ErrStorage, err)
	}
	return nil
}
