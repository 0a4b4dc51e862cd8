package mtls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TLSContextFactory turns key and trust material into a client TLS
// configuration. km is nil in server-trust-only mode.
type TLSContextFactory interface {
	NewTLSConfig(km *KeyManager, tm *TrustManager, random io.Reader) (*tls.Config, error)
}

// TLSContextFactoryFunc adapts a function to TLSContextFactory.
type TLSContextFactoryFunc func(km *KeyManager, tm *TrustManager, random io.Reader) (*tls.Config, error)

// NewTLSConfig calls f.
func (f TLSContextFactoryFunc) NewTLSConfig(km *KeyManager, tm *TrustManager, random io.Reader) (*tls.Config, error) {
	return f(km, tm, random)
}

// TransportFactory wraps a TLS configuration into an HTTP client.
type TransportFactory interface {
	NewHTTPClient(cfg *tls.Config, tm *TrustManager) (*http.Client, error)
}

// TransportFactoryFunc adapts a function to TransportFactory.
type TransportFactoryFunc func(cfg *tls.Config, tm *TrustManager) (*http.Client, error)

// NewHTTPClient calls f.
func (f TransportFactoryFunc) NewHTTPClient(cfg *tls.Config, tm *TrustManager) (*http.Client, error) {
	return f(cfg, tm)
}

// DefaultTLSContextFactory builds a crypto/tls client configuration that
// trusts only the trust manager's anchors.
type DefaultTLSContextFactory struct {
	// MinVersion defaults to TLS 1.2.
	MinVersion uint16
	// ServerName overrides the name used for hostname verification and SNI.
	ServerName string
}

// NewTLSConfig implements TLSContextFactory.
func (f DefaultTLSContextFactory) NewTLSConfig(km *KeyManager, tm *TrustManager, random io.Reader) (*tls.Config, error) {
	if tm == nil {
		return nil, errors.New("nil trust manager")
	}
	minVersion := f.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}

	cfg := &tls.Config{
		RootCAs:    tm.Pool(),
		Rand:       random,
		MinVersion: minVersion,
		ServerName: f.ServerName,
	}
	if km != nil {
		cfg.Certificates = []tls.Certificate{km.Certificate()}
	}
	return cfg, nil
}

// DefaultTransportFactory clones http.DefaultTransport with the TLS
// configuration installed.
type DefaultTransportFactory struct {
	// Timeout is the http.Client timeout; zero means no timeout.
	Timeout time.Duration
}

// NewHTTPClient implements TransportFactory.
func (f DefaultTransportFactory) NewHTTPClient(cfg *tls.Config, _ *TrustManager) (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("unexpected default transport %T", http.DefaultTransport)
	}
	transport := base.Clone()
	transport.TLSClientConfig = cfg
	return &http.Client{
		Transport: transport,
		Timeout:   f.Timeout,
	}, nil
}

// Client is the result of a successful build.
type Client struct {
	// HTTP is ready for requests to servers trusted by TrustManager.
	HTTP *http.Client
	// TLSConfig is the configuration installed in HTTP's transport.
	TLSConfig *tls.Config
	// KeyManager is nil in server-trust-only mode.
	KeyManager   *KeyManager
	TrustManager *TrustManager
	// Store is the credential store the managers were derived from.
	Store *Store
	// BuildID identifies the build in logs.
	BuildID string
	// Mode is the configuration shape the client was built from.
	Mode Mode
}

// Do sends req with the client's HTTP client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.HTTP.Do(req)
}

// Get performs a GET request to url.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.HTTP.Do(req)
}

// CloseIdleConnections closes idle connections of the underlying transport.
func (c *Client) CloseIdleConnections() {
	c.HTTP.CloseIdleConnections()
}
