package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

// Occurrence is one concrete calendar date after recurrence expansion
// and exception overlay. ID is stable across runs for the same
// (event, original date) pair; Sequence is the owning event's current
// change counter, usable as a cache stamp.
type Occurrence struct {
	ID          string
	EventID     string
	Date        string
	Summary     string
	Description *string
	URL         *string
	Sequence    int64
}

// expandEvent enumerates the occurrences of ev between from and until
// (inclusive) and applies exceptions by matching the rule-computed
// date. An exception with neither a new date nor text overrides
// cancels the occurrence.
func expandEvent(ev Event, exceptions []EventException, from, until time.Time) ([]Occurrence, error) {
	dtstart, err := parseDate(ev.DtstartInitial)
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	if ev.RRule == nil {
		if !dtstart.Before(from) && !dtstart.After(until) {
			dates = append(dates, dtstart)
		}
	} else {
		r, err := rrule.StrToRRule(*ev.RRule)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid rrule %q: %v", ErrValidation, *ev.RRule, err)
		}
		r.DTStart(dtstart)
		dates = r.Between(from, until, true)
	}

	byOriginal := make(map[string]EventException, len(exceptions))
	for _, ex := range exceptions {
		byOriginal[ex.OriginalDate] = ex
	}

	eventUUID, err := uuid.Parse(ev.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: event id %q is not a uuid: %v", ErrStorage, ev.ID, err)
	}

	var out []Occurrence
	for _, d := range dates {
		original := d.Format(dateLayout)
		occ := Occurrence{
			ID:          uuid.NewSHA1(eventUUID, []byte(original)).String(),
			EventID:     ev.ID,
			Date:        original,
			Summary:     ev.Summary,
			Description: ev.Description,
			URL:         ev.URL,
			Sequence:    ev.Sequence,
		}
		if ex, ok := byOriginal[original]; ok {
			if ex.NewDate == nil && ex.NewSummary == nil && ex.NewDescription == nil {
				continue // cancelled
			}
			if ex.NewDate != nil {
				occ.Date = *ex.NewDate
			}
			if ex.NewSummary != nil {
				occ.Summary = *ex.NewSummary
			}
			if ex.NewDescription != nil {
				occ.Description = ex.NewDescription
			}
		}
		out = append(out, occ)
	}
	return out, nil
}

// expandCalendar expands every event of a calendar and returns the
// occurrences sorted by (date, summary) for reproducible output.
func expandCalendar(store *Store, calendarID string, from, until time.Time) ([]Occurrence, error) {
	if _, err := store.GetCalendar(calendarID); err != nil {
		return nil, err
	}
	var all []Occurrence
	err := store.ForEachEvent(calendarID, func(ev Event) error {
		var exceptions []EventException
		err := store.ForEachEventException(ev.ID, func(ex EventException) error {
			exceptions = append(exceptions, ex)
			return nil
		})
		if err != nil {
			return err
		}
		occs, err := expandEvent(ev, exceptions, from, until)
		if err != nil {
			return err
		}
		all = append(all, occs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date < all[j].Date
		}
		return all[i].Summary < all[j].Summary
	})
	return all, nil
}

func runOccurrences(config *Config, args []string) {
	fs := flag.NewFlagSet("occurrences", flag.ExitOnError)
	id := fs.String("id", "", "Calendar id")
	fromArg := fs.String("from", "", "Window start (YYYY-MM-DD, default today)")
	untilArg := fs.String("until", "", "Window end (YYYY-MM-DD, default one year out)")
	fs.Parse(args)

	if *id == "" {
		log.Fatalf("Error: --id is required")
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	if *fromArg != "" {
		d, err := parseDate(*fromArg)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		from = d
	}
	until := from.AddDate(1, 0, 0)
	if *untilArg != "" {
		d, err := parseDate(*untilArg)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		until = d
	}

	db, err := openDB(config.Database)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	occurrences, err := expandCalendar(store, *id, from, until)
	if err != nil {
		log.Fatalf("Error expanding calendar: %v", err)
	}

	fmt.Printf("📅 %d occurrences between %s and %s\n",
		len(occurrences), from.Format(dateLayout), until.Format(dateLayout))
	for _, occ := range occurrences {
		fmt.Printf("  %s  %s (seq %d)\n", occ.Date, occ.Summary, occ.Sequence)
	}
}
