package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// scheduleSource is where a provider's JSON payload comes from: the
// remote API, or a local file (stdin when the path is empty). Ingest
// commands accept both so a fetched response can be replayed offline.
type scheduleSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type apiSource struct {
	client *http.Client
	url    string
	header http.Header
}

func newAPISource(url string, header http.Header) *apiSource {
	return &apiSource{
		client: &http.Client{Timeout: 30 * time.Second},
		url:    url,
		header: header,
	}
}

func (s *apiSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid provider URL: %w", err)
	}
	for name, values := range s.header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

type fileSource struct {
	path string
}

func (s *fileSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.path == "" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return data, nil
}
