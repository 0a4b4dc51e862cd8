package mtls

import (
	"errors"
	"fmt"
)

// Kind classifies a build failure.
type Kind int

const (
	// KindConfig is a caller configuration error: a missing locator, or an
	// inconsistent combination of locators.
	KindConfig Kind = iota + 1
	// KindIO means a resource could not be opened or read.
	KindIO
	// KindDecode means certificate or key bytes were malformed, or a
	// certificate set was empty.
	KindDecode
	// KindDerivation means trust or key material could not be derived from
	// the credential store.
	KindDerivation
	// KindTLS means the TLS context or HTTP transport rejected the material.
	KindTLS
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindDerivation:
		return "derivation"
	case KindTLS:
		return "tls"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by every failing operation in this package.
type Error struct {
	Kind    Kind
	Op      string // e.g. "decode ca", "open client key"
	Locator string // resource involved, if any
	Err     error  // underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "mtls: " + e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Locator != "" {
		msg += " " + e.Locator
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
// This lets callers match with errors.Is(err, mtls.ErrDecode).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Kind sentinels for errors.Is.
var (
	ErrConfig     = &Error{Kind: KindConfig}
	ErrIO         = &Error{Kind: KindIO}
	ErrDecode     = &Error{Kind: KindDecode}
	ErrDerivation = &Error{Kind: KindDerivation}
	ErrTLS        = &Error{Kind: KindTLS}
)

var (
	// ErrNoCertificates is returned when a certificate resource holds no certificates.
	ErrNoCertificates = errors.New("no certificates found")

	// ErrPartialClientCredentials is returned when only one of client key and
	// client certificate is configured.
	ErrPartialClientCredentials = errors.New("client key and client certificate must be configured together")

	// ErrMixedSources is returned when a keystore is combined with PEM locators.
	ErrMixedSources = errors.New("keystore cannot be combined with PEM locators")

	// ErrMissingCA is returned when neither a CA bundle nor a keystore is configured.
	ErrMissingCA = errors.New("no CA bundle or keystore configured")

	// ErrMissingPassword is returned when a keystore is configured without a password.
	ErrMissingPassword = errors.New("keystore configured without password")

	// ErrUnsupportedKeyAlgorithm is returned when no decoder is registered
	// for a private key's algorithm identifier.
	ErrUnsupportedKeyAlgorithm = errors.New("unsupported private key algorithm")

	// ErrTrustManagerCount is returned when trust derivation does not yield
	// exactly one trust manager.
	ErrTrustManagerCount = errors.New("expected exactly one trust manager")

	// ErrKeyManagerCount is returned when the store holds more than one key entry.
	ErrKeyManagerCount = errors.New("expected at most one key entry")

	// ErrIncorrectPassword is returned when a store or keystore cannot be
	// unlocked with the supplied password.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrAliasExists is returned when an alias is inserted twice into a Store.
	ErrAliasExists = errors.New("alias already exists")
)

func configError(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}
