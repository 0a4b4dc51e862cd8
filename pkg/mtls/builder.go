package mtls

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// storePasswordSize is the length of the random password protecting an
// in-memory store during a PEM build.
const storePasswordSize = 32

// Builder accumulates a Config through chained calls. Builder values are
// immutable: every With method returns a modified copy, so a Builder can be
// shared and built from repeatedly.
//
// The With methods panic with a KindConfig *Error when given an empty
// locator or a nil password; use Build with a Config to get errors instead.
type Builder struct {
	cfg  Config
	opts []Option
}

// NewBuilder returns an empty Builder using opts for every build.
func NewBuilder(opts ...Option) Builder {
	return Builder{opts: append([]Option(nil), opts...)}
}

// WithCA sets the locator of the CA bundle. The bundle may hold several
// concatenated certificates.
func (b Builder) WithCA(locator string) Builder {
	mustLocator("with ca", locator)
	b.cfg.CA = locator
	return b
}

// WithClientKey sets the locator of the PEM-encoded PKCS#8 client key.
func (b Builder) WithClientKey(locator string) Builder {
	mustLocator("with client key", locator)
	b.cfg.ClientKey = locator
	return b
}

// WithClientCert sets the locator of the client certificate chain, leaf first.
func (b Builder) WithClientCert(locator string) Builder {
	mustLocator("with client cert", locator)
	b.cfg.ClientCert = locator
	return b
}

// WithKeyStore sets the locator of a PKCS#12 keystore.
func (b Builder) WithKeyStore(locator string) Builder {
	mustLocator("with keystore", locator)
	b.cfg.KeyStore = locator
	return b
}

// WithPassword sets the keystore password. An empty, non-nil password is allowed.
func (b Builder) WithPassword(password []byte) Builder {
	if password == nil {
		panic(configError("with password", errEmptyPassword))
	}
	b.cfg.Password = append([]byte{}, password...)
	return b
}

// Config returns the accumulated configuration.
func (b Builder) Config() Config {
	cfg := b.cfg
	if cfg.Password != nil {
		cfg.Password = append([]byte{}, cfg.Password...)
	}
	return cfg
}

// Build assembles a new credential store and returns a client built from it.
func (b Builder) Build(ctx context.Context) (*Client, error) {
	return Build(ctx, b.cfg, b.opts...)
}

func mustLocator(op, locator string) {
	if locator == "" {
		panic(configError(op, errEmptyLocator))
	}
}

// Build validates cfg, assembles a credential store from its resources,
// derives key and trust managers, and wraps them into a TLS-enabled HTTP
// client. Each call creates an independent store and client.
//
// Every failure is returned as an *Error.
func Build(ctx context.Context, cfg Config, opts ...Option) (client *Client, err error) {
	o := newOptions(opts)
	mode := cfg.Mode()
	id := newBuildID()
	log := o.logger.With(slog.String("build_id", id), slog.String("mode", string(mode)))

	start := time.Now()
	defer func() {
		o.observer.ObserveBuild(mode, time.Since(start), err)
		if err != nil {
			log.Warn("credential build failed",
				"error", err,
				slog.String("kind", KindOf(err).String()),
				slog.Duration("duration", time.Since(start)))
		}
	}()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, password, err := assemble(ctx, cfg, o, log)
	if err != nil {
		return nil, err
	}

	km, tm, err := DeriveManagers(store, password)
	if err != nil {
		return nil, err
	}

	tlsCfg, err := o.tls.NewTLSConfig(km, tm, o.random)
	if err != nil {
		return nil, &Error{Kind: KindTLS, Op: "create tls context", Err: err}
	}

	httpClient, err := o.transport.NewHTTPClient(tlsCfg, tm)
	if err != nil {
		return nil, &Error{Kind: KindTLS, Op: "create transport", Err: err}
	}

	if km != nil {
		o.observer.ObserveClientCertificate(km.Leaf())
		log.Info("client certificate loaded",
			slog.String("alias", km.Alias()),
			slog.String("subject", km.Leaf().Subject.String()),
			slog.Time("not_after", km.Leaf().NotAfter))
	}
	log.Info("credential build complete",
		slog.Int("trust_anchors", len(tm.Anchors())),
		slog.Bool("client_auth", km != nil),
		slog.Duration("duration", time.Since(start)))

	return &Client{
		HTTP:         httpClient,
		TLSConfig:    tlsCfg,
		KeyManager:   km,
		TrustManager: tm,
		Store:        store,
		BuildID:      id,
		Mode:         mode,
	}, nil
}

// assemble populates a fresh store and returns it with its password.
func assemble(ctx context.Context, cfg Config, o *options, log *slog.Logger) (*Store, []byte, error) {
	if cfg.KeyStore != "" {
		var store *Store
		err := o.read(ctx, "keystore", cfg.KeyStore, func(r io.Reader) error {
			var err error
			store, err = LoadKeyStore(r, cfg.Password)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		log.Debug("keystore loaded", slog.Int("entries", store.Len()))
		return store, cfg.Password, nil
	}

	password := make([]byte, storePasswordSize)
	if _, err := io.ReadFull(o.random, password); err != nil {
		return nil, nil, &Error{Kind: KindDerivation, Op: "generate store password", Err: err}
	}
	store := NewStore(password)

	caCerts, err := o.readCertificates(ctx, "ca", cfg.CA)
	if err != nil {
		return nil, nil, err
	}
	for i, cert := range caCerts {
		if err := store.SetCertificateEntry(strconv.Itoa(i), cert); err != nil {
			return nil, nil, &Error{Kind: KindDerivation, Op: "store ca certificate", Locator: cfg.CA, Err: err}
		}
	}
	log.Debug("trusted certificates loaded", slog.Int("count", len(caCerts)))

	if cfg.ClientKey == "" && cfg.ClientCert == "" {
		return store, password, nil
	}

	chain, err := o.readCertificates(ctx, "client certificate", cfg.ClientCert)
	if err != nil {
		return nil, nil, err
	}

	var key crypto.Signer
	err = o.read(ctx, "client key", cfg.ClientKey, func(r io.Reader) error {
		var err error
		key, err = DecodePrivateKey(r, o.decoders)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if err := store.SetKeyEntry(ClientKeyAlias, key, password, chain); err != nil {
		return nil, nil, &Error{Kind: KindDerivation, Op: "store client key", Locator: cfg.ClientKey, Err: err}
	}
	log.Debug("client key loaded", slog.Int("chain_length", len(chain)))

	return store, password, nil
}

func (o *options) readCertificates(ctx context.Context, what, locator string) (certs []*x509.Certificate, err error) {
	err = o.read(ctx, what, locator, func(r io.Reader) error {
		var err error
		certs, err = DecodeCertificates(r)
		return err
	})
	return certs, err
}

// read opens locator, hands the stream to fn and always closes it. Errors
// are annotated with what was being read and from where.
func (o *options) read(ctx context.Context, what, locator string, fn func(io.Reader) error) error {
	rc, err := o.opener.Open(ctx, locator)
	if err != nil {
		return &Error{Kind: KindIO, Op: "open " + what, Locator: locator, Err: err}
	}
	defer rc.Close()

	if err := fn(rc); err != nil {
		var e *Error
		if errors.As(err, &e) {
			annotated := *e
			annotated.Op = e.Op + " (" + what + ")"
			annotated.Locator = locator
			return &annotated
		}
		return &Error{Kind: KindDecode, Op: "decode " + what, Locator: locator, Err: err}
	}
	return nil
}

func newBuildID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return ""
	}
	return id.String()
}
