package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"
)

const (
	garbageAPIURL  = "https://innherredrenovasjon.no/wp-json/ir/v1/garbage-disposal-dates-by-address"
	garbageSiteURL = "https://innherredrenovasjon.no/tommeplan/"
)

// GarbageFraction is one waste fraction in the pickup schedule JSON:
// a pickup every Frequency weeks on the reported dates.
type GarbageFraction struct {
	FractionID   string   `json:"fraction_id"`
	FractionName string   `json:"fraction_name"`
	Frequency    int      `json:"frequency"`
	Dates        []string `json:"dates"`
}

func newGarbageSource(address, input string, fromFile bool) scheduleSource {
	if fromFile {
		return &fileSource{path: input}
	}
	return newAPISource(garbageAPIURL+"?address="+url.QueryEscape(address), nil)
}

func wasteFractionName(id, name string) string {
	switch id {
	case "1111":
		return "Matavfall"
	case "4":
		return "Plastemballasje"
	case "5":
		return "Glass- og metallemballasje"
	case "1222":
		return "Papp/papir"
	case "9992":
		return "Restavfall"
	}
	return name
}

func wasteFractionIcon(id string) string {
	switch id {
	case "1111":
		return "🍌"
	case "4":
		return "♻️"
	case "5":
		return "🥫"
	case "1222":
		return "🧃"
	case "9992":
		return "🗑️"
	}
	return "❓"
}

// parseFractionDate accepts the naive datetime the schedule API uses as
// well as a bare date.
func parseFractionDate(value string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return d, nil
	}
	return parseDate(value)
}

// ingestGarbage maps a pickup schedule onto the store: one recurring
// event per fraction, anchored at the first reported date with a
// weekly rule at the reported interval, plus an exception for every
// reported date that deviates from the rule-computed one. Running it
// again against the same payload writes nothing new.
func ingestGarbage(store *Store, calendarID string, payload []byte) error {
	var schedule map[string]GarbageFraction
	if err := json.Unmarshal(payload, &schedule); err != nil {
		return fmt.Errorf("decoding schedule: %w", err)
	}

	keys := make([]string, 0, len(schedule))
	for k := range schedule {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fraction := schedule[key]
		if len(fraction.Dates) == 0 {
			continue
		}

		dates := make([]time.Time, 0, len(fraction.Dates))
		for _, raw := range fraction.Dates {
			d, err := parseFractionDate(raw)
			if err != nil {
				return fmt.Errorf("fraction %s: %w", fraction.FractionID, err)
			}
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		name := wasteFractionName(fraction.FractionID, fraction.FractionName)
		icon := wasteFractionIcon(fraction.FractionID)
		summary := icon + " " + name

		if fraction.Frequency <= 0 {
			if err := ingestOneOffDates(store, calendarID, summary, dates, garbageSiteURL); err != nil {
				return err
			}
			continue
		}

		if err := ingestRecurringDates(store, calendarID, summary, dates, fraction.Frequency, garbageSiteURL); err != nil {
			return err
		}
	}
	return nil
}

// ingestRecurringDates writes one weekly-interval event anchored at the
// first date, then reconciles the reported dates against the dates the
// rule would produce and upserts an exception for each deviation.
func ingestRecurringDates(store *Store, calendarID, summary string, dates []time.Time, intervalWeeks int, siteURL string) error {
	anchor := dates[0]
	rule := fmt.Sprintf("FREQ=WEEKLY;INTERVAL=%d", intervalWeeks)

	eventID, err := ensureEvent(store, calendarID, summary, NewEvent{
		Summary:        summary,
		URL:            siteURL,
		DtstartInitial: anchor.Format(dateLayout),
		DurationDays:   1,
		RRule:          rule,
	})
	if err != nil {
		return err
	}

	existing := make(map[string]EventException)
	err = store.ForEachEventException(eventID, func(ex EventException) error {
		existing[ex.OriginalDate] = ex
		return nil
	})
	if err != nil {
		return err
	}

	deviations := make(map[string]string, len(dates))
	for i, reported := range dates {
		expected := anchor.AddDate(0, 0, 7*intervalWeeks*i)
		if !reported.Equal(expected) {
			deviations[expected.Format(dateLayout)] = reported.Format(dateLayout)
		}
	}

	for original, moved := range deviations {
		if ex, ok := existing[original]; ok && ex.NewDate != nil && *ex.NewDate == moved {
			continue // already recorded, don't disturb the sequence
		}
		newDate := moved
		if _, err := store.UpsertException(eventID, original, &newDate, nil, nil); err != nil {
			return err
		}
		printVerbosely(3, "  ↪️ %s moved %s -> %s\n", summary, original, newDate)
	}

	// Overrides for dates that now match the rule again no longer apply.
	horizon := anchor.AddDate(0, 0, 7*intervalWeeks*(len(dates)-1)).Format(dateLayout)
	for original, ex := range existing {
		if _, still := deviations[original]; still {
			continue
		}
		if original > horizon {
			continue
		}
		if err := store.DeleteException(ex.ID); err != nil {
			return err
		}
		printVerbosely(3, "  🗑 %s override on %s no longer applies\n", summary, original)
	}
	return nil
}

// ingestOneOffDates writes one single-occurrence event per date, the
// summary suffixed with the Norwegian weekday and day of month.
func ingestOneOffDates(store *Store, calendarID, summary string, dates []time.Time, siteURL string) error {
	for _, date := range dates {
		daySummary := fmt.Sprintf("%s %s %d.", summary, norwegianWeekday(date), date.Day())
		_, err := ensureEvent(store, calendarID, daySummary, NewEvent{
			Summary:        daySummary,
			URL:            siteURL,
			DtstartInitial: date.Format(dateLayout),
			DurationDays:   1,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ensureEvent finds an event by summary in the calendar or creates it.
// Existing events get their anchor and rule realigned; UpdateEvent
// no-ops when nothing changed, so the sequence is not disturbed by a
// re-run.
func ensureEvent(store *Store, calendarID, summary string, ev NewEvent) (string, error) {
	var existingID string
	err := store.ForEachEvent(calendarID, func(row Event) error {
		if row.Summary == summary {
			existingID = row.ID
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if existingID == "" {
		printVerbosely(2, "  ✨ Creating event: %s\n", summary)
		return store.CreateEvent(calendarID, ev)
	}

	upd := EventUpdate{
		DtstartInitial: &ev.DtstartInitial,
		DurationDays:   &ev.DurationDays,
		RRule:          &ev.RRule,
	}
	if err := store.UpdateEvent(existingID, upd); err != nil {
		return "", err
	}
	return existingID, nil
}
