package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	_ "github.com/mattn/go-sqlite3"
)

type CalDAVConfig struct {
	Name      string `toml:"name"`
	ServerURL string `toml:"server_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

type BringConfig struct {
	APIUid string `toml:"api_uid"`
	APIKey string `toml:"api_key"`
}

type Config struct {
	Database       string                  `toml:"database"`
	VerbosityLevel int                     `toml:"verbosity_level"`
	Bring          BringConfig             `toml:"bring"`
	CalDAVs        map[string]CalDAVConfig `toml:"caldav"`
}

var verbosityLevel int
var configDir string

func readConfig(filename string) (*Config, error) {
	// Try first current dir, then `$HOME/.config/calfeed/`
	data, err := os.ReadFile(filename)
	if err != nil {
		data, err = os.ReadFile(os.Getenv("HOME") + "/.config/calfeed/" + filename)
		if err != nil {
			return nil, err
		}
		configDir = os.Getenv("HOME") + "/.config/calfeed/"
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	verbosityLevel = config.VerbosityLevel

	return &config, nil
}

func openDB(filename string) (*sql.DB, error) {
	// Try first the same dir, where the config file was found
	db, err := sql.Open("sqlite3", configDir+filename)
	if err != nil {
		// Try the current dir
		db, err = sql.Open("sqlite3", filename)
		if err != nil {
			return nil, err
		}
	}
	return db, nil
}

func printVerbosely(verbosity int, format string, a ...interface{}) {
	// Print only if verbosity is higher than verbosityLevel
	// verbosityLevel is set in the config file
	// 0 - no output, other than critical errors
	// 1 - report the command being run
	// 2 - report calendars and events being written
	// 3 - report exception rows and version bumps
	// 4 - report everything
	if verbosity <= verbosityLevel {
		fmt.Printf(format, a...)
	}
}
