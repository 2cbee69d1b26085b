package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const fetchTimeout = 10 * time.Second

// newHTTPClient builds the client used for all scraping requests. No retries
// happen at this layer; the supervisor handles failures.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}

// get performs a timed GET and returns the response headers and body.
func (s *Scraper) get(ctx context.Context, url string) (http.Header, []byte, error) {
	slog.Info("GET", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, &NetworkError{URL: url, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &NetworkError{URL: url, Err: err}
	}

	return resp.Header, body, nil
}
