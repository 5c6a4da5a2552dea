package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// Calendar owns events; its last_modified always covers the newest
// change to anything it owns.
type Calendar struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// Event is a base recurrence definition. Sequence starts at 0 and goes
// up by one for every semantic change to the event or its exceptions.
type Event struct {
	ID             string    `json:"id"`
	CalendarID     string    `json:"calendar_id"`
	Summary        string    `json:"summary"`
	Description    *string   `json:"description"`
	URL            *string   `json:"url"`
	DtstartInitial string    `json:"dtstart_initial"`
	DurationDays   int       `json:"duration_days"`
	RRule          *string   `json:"rrule"`
	Sequence       int64     `json:"sequence"`
	CreatedAt      time.Time `json:"created_at"`
	LastModified   time.Time `json:"last_modified"`
}

// EventException overrides the occurrence that the base rule produced
// on OriginalDate. A nil NewDate with no text overrides means the
// occurrence is cancelled.
type EventException struct {
	ID             string  `json:"id"`
	EventID        string  `json:"event_id"`
	OriginalDate   string  `json:"original_date"`
	NewDate        *string `json:"new_date"`
	NewSummary     *string `json:"new_summary"`
	NewDescription *string `json:"new_description"`
}

func parseDate(value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, value)
	}
	return d, nil
}

// validateURL accepts http(s) URLs without embedded credentials, same
// rules the feed consumers expect.
func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%w: invalid url %q", ErrValidation, value)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https", ErrValidation)
	}
	if u.User != nil {
		return fmt.Errorf("%w: url must not contain credentials", ErrValidation)
	}
	return nil
}

func validateRRule(value string) error {
	if _, err := rrule.StrToRRule(value); err != nil {
		return fmt.Errorf("%w: invalid rrule %q: %v", ErrValidation, value, err)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
