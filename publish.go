package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

func runPublish(config *Config, args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	id := fs.String("id", "", "Calendar id")
	server := fs.String("server", "", "CalDAV server name from the config file")
	fs.Parse(args)

	if *id == "" || *server == "" {
		log.Fatalf("Error: --id and --server are required")
	}

	serverConfig, ok := config.CalDAVs[*server]
	if !ok {
		log.Fatalf("Error: CalDAV server %q not found in configuration", *server)
	}

	db, err := openDB(config.Database)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	feed, err := buildFeed(store, *id)
	if err != nil {
		log.Fatalf("Error building calendar feed: %v", err)
	}

	ctx := context.Background()
	fmt.Printf("🚀 Publishing calendar %s to %s\n", *id, serverConfig.ServerURL)

	baseURL, err := url.Parse(serverConfig.ServerURL)
	if err != nil {
		log.Fatalf("Error: invalid CalDAV server URL: %v", err)
	}

	var httpClient webdav.HTTPClient = http.DefaultClient
	if serverConfig.Username != "" && serverConfig.Password != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, serverConfig.Username, serverConfig.Password)
	}

	client, err := caldav.NewClient(httpClient, baseURL.String())
	if err != nil {
		log.Fatalf("Error creating CalDAV client: %v", err)
	}

	path := strings.TrimRight(baseURL.Path, "/") + "/" + *id + ".ics"
	if _, err := client.PutCalendarObject(ctx, path, feed); err != nil {
		log.Fatalf("Error publishing calendar: %v", err)
	}

	fmt.Printf("✅ Calendar published to %s\n", path)
}
