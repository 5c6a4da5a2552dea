package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: calfeed (migrate|list|export|occurrences|ingest|publish)")
		os.Exit(1)
	}
	config, err := readConfig(".calfeed.toml")
	if err != nil {
		// A config file is only needed for API credentials and CalDAV
		// servers; everything else works with defaults.
		config = &Config{}
	}
	if config.Database == "" {
		config.Database = ".calfeed.db"
	}

	command := os.Args[1]
	switch command {
	case "migrate":
		runMigrate(config)
	case "list":
		runList(config)
	case "export":
		runExport(config, os.Args[2:])
	case "occurrences":
		runOccurrences(config, os.Args[2:])
	case "ingest":
		runIngest(config, os.Args[2:])
	case "publish":
		runPublish(config, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}
