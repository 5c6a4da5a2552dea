package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
)

func runIngest(config *Config, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: calfeed ingest (garbage|mailbox) [flags]")
		os.Exit(1)
	}
	provider := args[0]

	fs := flag.NewFlagSet("ingest "+provider, flag.ExitOnError)
	calendarID := fs.String("calendar", "", "Target calendar id")
	input := fs.String("input", "", "Read provider JSON from file instead of the API ('-' for stdin)")
	address := fs.String("address", "", "Address (garbage)")
	postalCode := fs.String("postal-code", "", "Norwegian postal code (mailbox)")
	fs.Parse(args[1:])

	if *calendarID == "" {
		log.Fatalf("Error: --calendar is required")
	}

	fromFile := *input != ""
	inputPath := *input
	if inputPath == "-" {
		inputPath = ""
	}

	var source scheduleSource
	switch provider {
	case "garbage":
		if !fromFile && *address == "" {
			log.Fatalf("Error: --address is required when fetching from the API")
		}
		source = newGarbageSource(*address, inputPath, fromFile)
	case "mailbox":
		if err := validatePostalCode(*postalCode); err != nil {
			log.Fatalf("Error: %v", err)
		}
		var err error
		source, err = newMailboxSource(config, *postalCode, inputPath, fromFile)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	default:
		log.Fatalf("Error: unknown provider %q (must be 'garbage' or 'mailbox')", provider)
	}

	db, err := openDB(config.Database)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	fmt.Printf("🚀 Ingesting %s schedule into calendar %s\n", provider, *calendarID)

	payload, err := source.Fetch(context.Background())
	if err != nil {
		log.Fatalf("Error fetching schedule: %v", err)
	}

	switch provider {
	case "garbage":
		err = ingestGarbage(store, *calendarID, payload)
	case "mailbox":
		err = ingestMailbox(store, *calendarID, *postalCode, payload)
	}
	if err != nil {
		log.Fatalf("Error ingesting schedule: %v", err)
	}

	fmt.Println("✅ Schedule ingested successfully")
}
