package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPOpener fetches resources with HTTP GET.
type HTTPOpener struct {
	client *http.Client
	log    *slog.Logger
}

// NewHTTPOpener creates an HTTPOpener. A nil client gets a 30 second timeout.
func NewHTTPOpener(client *http.Client, logger *slog.Logger) *HTTPOpener {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPOpener{client: client, log: logger}
}

// Open implements Opener.
func (o *HTTPOpener) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	req.Header.Set("User-Agent", "mtlsclient-go")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resource: get %s: %w", req.URL.Redacted(), err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Redacted())
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return nil, fmt.Errorf("resource: get %s: status %d", req.URL.Redacted(), resp.StatusCode)
	}

	o.log.Debug("fetched resource over HTTP",
		slog.String("url", req.URL.Redacted()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))
	return resp.Body, nil
}
