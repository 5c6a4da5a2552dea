package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"github.com/emersion/go-ical"
)

func runExport(config *Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	id := fs.String("id", "", "Calendar id")
	format := fs.String("format", "ical", "Output format (ical or json)")
	output := fs.String("output", "", "File path, print to stdout if omitted")
	fs.Parse(args)

	if *id == "" {
		log.Fatalf("Error: --id is required")
	}

	db, err := openDB(config.Database)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	out := io.Writer(os.Stdout)
	if *output != "" {
		// Create the file before touching the database
		file, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Error creating output file: %v", err)
		}
		defer file.Close()
		out = file
	}

	printVerbosely(1, "📤 Exporting calendar %s as %s\n", *id, *format)

	switch *format {
	case "ical":
		feed, err := buildFeed(store, *id)
		if err != nil {
			log.Fatalf("Error building calendar feed: %v", err)
		}
		if err := ical.NewEncoder(out).Encode(feed); err != nil {
			log.Fatalf("Error writing calendar feed: %v", err)
		}
	case "json":
		export, err := collectExport(store, *id)
		if err != nil {
			log.Fatalf("Error reading calendar: %v", err)
		}
		if err := json.NewEncoder(out).Encode(export); err != nil {
			log.Fatalf("Error writing JSON: %v", err)
		}
	default:
		log.Fatalf("Error: unknown format %q (must be 'ical' or 'json')", *format)
	}
}

type exportedEvent struct {
	Event      Event            `json:"event"`
	Exceptions []EventException `json:"exceptions"`
}

type exportedCalendar struct {
	Calendar Calendar        `json:"calendar"`
	Events   []exportedEvent `json:"events"`
}

func collectExport(store *Store, calendarID string) (*exportedCalendar, error) {
	cal, err := store.GetCalendar(calendarID)
	if err != nil {
		return nil, err
	}
	export := &exportedCalendar{Calendar: *cal}
	err = store.ForEachEvent(calendarID, func(ev Event) error {
		entry := exportedEvent{Event: ev, Exceptions: []EventException{}}
		err := store.ForEachEventException(ev.ID, func(ex EventException) error {
			entry.Exceptions = append(entry.Exceptions, ex)
			return nil
		})
		if err != nil {
			return err
		}
		export.Events = append(export.Events, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return export, nil
}

func runList(config *Config) {
	db, err := openDB(config.Database)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	var calendars []Calendar
	err = store.ForEachCalendar(func(cal Calendar) error {
		calendars = append(calendars, cal)
		return nil
	})
	if err != nil {
		log.Fatalf("Error listing calendars: %v", err)
	}

	if err := json.NewEncoder(os.Stdout).Encode(calendars); err != nil {
		log.Fatalf("Error writing JSON: %v", err)
	}
}
