package mtls

import (
	"crypto/rand"
	"crypto/x509"
	"encoding/asn1"
	"io"
	"log/slog"
	"time"

	"github.com/yndnr/mtlsclient-go/pkg/resource"
)

// DefaultHTTPTimeout is the timeout of HTTP clients built with the default
// transport factory.
const DefaultHTTPTimeout = 30 * time.Second

// Observer receives build outcomes, e.g. for metrics.
type Observer interface {
	// ObserveBuild is called once per build with its outcome.
	ObserveBuild(mode Mode, duration time.Duration, err error)
	// ObserveClientCertificate is called after a successful build that
	// presents a client certificate.
	ObserveClientCertificate(leaf *x509.Certificate)
}

type nopObserver struct{}

func (nopObserver) ObserveBuild(Mode, time.Duration, error)   {}
func (nopObserver) ObserveClientCertificate(*x509.Certificate) {}

// Option configures how a build is carried out.
type Option func(*options)

type options struct {
	opener    resource.Opener
	logger    *slog.Logger
	tls       TLSContextFactory
	transport TransportFactory
	random    io.Reader
	decoders  *KeyDecoders
	observer  Observer
}

func newOptions(opts []Option) *options {
	o := &options{
		random:   rand.Reader,
		decoders: DefaultKeyDecoders(),
		observer: nopObserver{},
		tls:      DefaultTLSContextFactory{},
		transport: DefaultTransportFactory{
			Timeout: DefaultHTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.opener == nil {
		o.opener = resource.Default(o.logger)
	}
	return o
}

// WithOpener sets the resource opener. Defaults to resource.Default.
func WithOpener(opener resource.Opener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTLSContextFactory replaces DefaultTLSContextFactory.
func WithTLSContextFactory(f TLSContextFactory) Option {
	return func(o *options) {
		o.tls = f
	}
}

// WithTransportFactory replaces DefaultTransportFactory.
func WithTransportFactory(f TransportFactory) Option {
	return func(o *options) {
		o.transport = f
	}
}

// WithRandom sets the random source handed to the TLS context factory.
// Defaults to crypto/rand.Reader.
func WithRandom(r io.Reader) Option {
	return func(o *options) {
		o.random = r
	}
}

// WithKeyDecoder registers a private key decoder for a PKCS#8 algorithm
// identifier, in addition to the RSA, ECDSA and Ed25519 defaults.
func WithKeyDecoder(oid asn1.ObjectIdentifier, dec KeyDecoder) Option {
	return func(o *options) {
		o.decoders = o.decoders.clone().Register(oid, dec)
	}
}

// WithObserver sets the build observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}
