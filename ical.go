package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const prodID = "-//calfeed//Calendar//NO"

const (
	icalDateLayout      = "20060102"
	icalTimestampLayout = "20060102T150405Z"
)

// buildFeed renders one calendar as a VCALENDAR: one master VEVENT per
// event carrying its RRULE and an EXDATE per exception, plus an
// override VEVENT (RECURRENCE-ID pointing back at the master) for every
// exception that moves or relabels an occurrence. A cancelled
// occurrence is just an EXDATE with no override.
func buildFeed(store *Store, calendarID string) (*ical.Calendar, error) {
	if _, err := store.GetCalendar(calendarID); err != nil {
		return nil, err
	}

	collector := newFeedCollector()
	err := store.ForEachEvent(calendarID, func(ev Event) error {
		if err := collector.addEvent(ev); err != nil {
			return err
		}
		if ev.RRule == nil {
			return nil
		}
		return store.ForEachEventException(ev.ID, func(ex EventException) error {
			return collector.addException(ex)
		})
	})
	if err != nil {
		return nil, err
	}
	return collector.finalize(), nil
}

type feedCollector struct {
	order     []string
	masters   map[string]*ical.Component
	events    map[string]Event
	overrides []*ical.Component
}

func newFeedCollector() *feedCollector {
	return &feedCollector{
		masters: make(map[string]*ical.Component),
		events:  make(map[string]Event),
	}
}

func (c *feedCollector) addEvent(ev Event) error {
	comp, err := eventComponent(ev, ev.DtstartInitial, true)
	if err != nil {
		return err
	}
	c.order = append(c.order, ev.ID)
	c.masters[ev.ID] = comp
	c.events[ev.ID] = ev
	return nil
}

func (c *feedCollector) addException(ex EventException) error {
	master, ok := c.masters[ex.EventID]
	if !ok {
		return nil
	}
	origDate, err := parseDate(ex.OriginalDate)
	if err != nil {
		return err
	}

	// The original occurrence is always excluded from the master.
	master.Props.Add(newDateProp("EXDATE", origDate))

	// Only a move or relabel gets its own VEVENT; a bare cancellation
	// is the EXDATE alone.
	if ex.NewDate == nil && ex.NewSummary == nil {
		return nil
	}

	ev := c.events[ex.EventID]
	date := ex.OriginalDate
	if ex.NewDate != nil {
		date = *ex.NewDate
	}
	if ex.NewSummary != nil {
		ev.Summary = *ex.NewSummary
	}
	if ex.NewDescription != nil {
		ev.Description = ex.NewDescription
	}

	comp, err := eventComponent(ev, date, false)
	if err != nil {
		return err
	}
	comp.Props.Set(newDateProp("RECURRENCE-ID", origDate))
	c.overrides = append(c.overrides, comp)
	return nil
}

func (c *feedCollector) finalize() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText("VERSION", "2.0")
	cal.Props.SetText("PRODID", prodID)
	cal.Props.SetText("CALSCALE", "GREGORIAN")
	cal.Props.SetText("METHOD", "PUBLISH")
	for _, id := range c.order {
		cal.Component.Children = append(cal.Component.Children, c.masters[id])
	}
	for _, comp := range c.overrides {
		cal.Component.Children = append(cal.Component.Children, comp)
	}
	return cal
}

// eventComponent builds a VEVENT for ev starting on date. The master
// variant carries the RRULE; overrides must not, they stand for a
// single occurrence.
func eventComponent(ev Event, date string, master bool) (*ical.Component, error) {
	start, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	end := start.AddDate(0, 0, ev.DurationDays)

	e := ical.NewEvent()
	e.Component.Props.SetText("UID", formatUID(ev.ID))
	e.Component.Props.SetText("DTSTAMP", ev.LastModified.UTC().Format(icalTimestampLayout))
	e.Component.Props.SetText("SEQUENCE", strconv.FormatInt(ev.Sequence, 10))
	e.Component.Props.Set(newDateProp("DTSTART", start))
	e.Component.Props.Set(newDateProp("DTEND", end))
	e.Component.Props.SetText("SUMMARY", ev.Summary)
	if ev.Description != nil {
		e.Component.Props.SetText("DESCRIPTION", *ev.Description)
	}
	e.Component.Props.SetText("TRANSP", "TRANSPARENT")
	if ev.URL != nil {
		e.Component.Props.SetText("URL", *ev.URL)
	}
	if master && ev.RRule != nil {
		p := ical.NewProp("RRULE")
		p.Value = *ev.RRule
		e.Component.Props.Set(p)
	}
	return e.Component, nil
}

func newDateProp(name string, date time.Time) *ical.Prop {
	p := ical.NewProp(name)
	p.Params.Set("VALUE", "DATE")
	p.Value = date.Format(icalDateLayout)
	return p
}

func formatUID(id string) string {
	return strings.ToUpper(id)
}
