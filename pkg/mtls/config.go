package mtls

import "errors"

// Mode is the configuration shape of a build.
type Mode string

const (
	// ModeTrustOnly validates servers against a CA bundle without presenting
	// a client certificate.
	ModeTrustOnly Mode = "trust-only"
	// ModeMutual uses a CA bundle plus a PEM client key and certificate.
	ModeMutual Mode = "mutual"
	// ModeKeyStore uses a PKCS#12 keystore and its password.
	ModeKeyStore Mode = "keystore"
)

// Config holds the resource locators for a build.
//
// Valid shapes are CA alone, CA with ClientKey and ClientCert, or KeyStore
// with Password. A nil Password means absent; an empty non-nil Password is a
// valid (empty) keystore password.
type Config struct {
	CA         string
	ClientKey  string
	ClientCert string
	KeyStore   string
	Password   []byte
}

// Mode reports the configuration shape. It is meaningful only for a
// configuration that passes Validate.
func (c Config) Mode() Mode {
	switch {
	case c.KeyStore != "":
		return ModeKeyStore
	case c.ClientKey != "" && c.ClientCert != "":
		return ModeMutual
	default:
		return ModeTrustOnly
	}
}

// Validate checks that the configuration has one of the supported shapes.
// It inspects locators only, never resource content.
func (c Config) Validate() error {
	if c.KeyStore != "" {
		if c.CA != "" || c.ClientKey != "" || c.ClientCert != "" {
			return configError("validate", ErrMixedSources)
		}
		if c.Password == nil {
			return configError("validate", ErrMissingPassword)
		}
		return nil
	}

	if c.CA == "" {
		return configError("validate", ErrMissingCA)
	}
	if (c.ClientKey == "") != (c.ClientCert == "") {
		return configError("validate", ErrPartialClientCredentials)
	}
	return nil
}

var (
	errEmptyLocator  = errors.New("locator must not be empty")
	errEmptyPassword = errors.New("password must not be nil")
)
