// Package resource opens credential material by locator.
//
// A locator is a URI whose scheme selects an Opener:
//
//   - file:///etc/mtls/ca.pem, or a bare path - local filesystem
//   - https://example.com/ca.pem, http://... - HTTP GET
//   - s3://bucket/path/key.pem?region=eu-west-1&endpoint=... - Amazon S3 or compatible
//   - vault://secret/data/mtls/client?field=cert - HashiCorp Vault KV (v1 or v2)
//   - any scheme registered with Mux.Handle, e.g. an fs.FS via FS()
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

var (
	// ErrUnsupportedScheme is returned for locators whose scheme has no opener.
	ErrUnsupportedScheme = errors.New("resource: unsupported scheme")

	// ErrInvalidLocator is returned for locators that cannot be parsed.
	ErrInvalidLocator = errors.New("resource: invalid locator")

	// ErrNotFound is returned when the resource does not exist.
	ErrNotFound = errors.New("resource: not found")
)

// Opener opens the resource identified by locator.
// The caller must close the returned reader.
type Opener interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, locator string) (io.ReadCloser, error)

// Open calls f(ctx, locator).
func (f OpenerFunc) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	return f(ctx, locator)
}

// Mux dispatches locators to openers by URI scheme. Locators without a
// scheme are treated as file paths.
type Mux struct {
	mu      sync.RWMutex
	openers map[string]Opener
	log     *slog.Logger
}

// NewMux creates an empty Mux.
func NewMux(logger *slog.Logger) *Mux {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mux{
		openers: make(map[string]Opener),
		log:     logger,
	}
}

// Default returns a Mux serving file, http, https, s3 and vault locators.
// S3 and Vault clients are created on first use from the environment
// (AWS_* and VAULT_* variables).
func Default(logger *slog.Logger) *Mux {
	m := NewMux(logger)
	m.Handle("file", NewFileOpener(m.log))
	httpOpener := NewHTTPOpener(nil, m.log)
	m.Handle("http", httpOpener)
	m.Handle("https", httpOpener)
	m.Handle("s3", NewS3Opener(m.log))
	m.Handle("vault", NewVaultOpener(nil, m.log))
	return m
}

// Handle registers opener for scheme, replacing any previous one.
func (m *Mux) Handle(scheme string, opener Opener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openers[strings.ToLower(scheme)] = opener
}

// Open implements Opener.
func (m *Mux) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	scheme, err := Scheme(locator)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	opener, ok := m.openers[scheme]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}

	m.log.Debug("opening resource", slog.String("scheme", scheme))
	return opener.Open(ctx, locator)
}

// Scheme returns the lowercased scheme of locator, or "file" for plain paths
// (including Windows drive paths such as C:\certs\ca.pem).
func Scheme(locator string) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLocator)
	}
	i := strings.Index(locator, "://")
	if i <= 1 {
		// no scheme, or a single-letter drive
		return "file", nil
	}
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	if u.Scheme == "" {
		return "file", nil
	}
	return strings.ToLower(u.Scheme), nil
}
