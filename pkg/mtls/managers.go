package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// TrustManager decides whether a peer certificate chain is acceptable.
type TrustManager struct {
	pool    *x509.CertPool
	anchors []*x509.Certificate
}

// NewTrustManager creates a TrustManager over anchors.
func NewTrustManager(anchors []*x509.Certificate) *TrustManager {
	pool := x509.NewCertPool()
	for _, c := range anchors {
		pool.AddCert(c)
	}
	return &TrustManager{
		pool:    pool,
		anchors: append([]*x509.Certificate(nil), anchors...),
	}
}

// Pool returns the trust anchors as a certificate pool.
func (m *TrustManager) Pool() *x509.CertPool {
	return m.pool
}

// Anchors returns the trust anchors in store order.
func (m *TrustManager) Anchors() []*x509.Certificate {
	return append([]*x509.Certificate(nil), m.anchors...)
}

// CheckServerTrusted verifies chain (leaf first) as a server chain for
// serverName. An empty serverName skips hostname verification.
func (m *TrustManager) CheckServerTrusted(chain []*x509.Certificate, serverName string) ([][]*x509.Certificate, error) {
	return m.verify(chain, serverName, x509.ExtKeyUsageServerAuth)
}

// CheckClientTrusted verifies chain (leaf first) as a client chain.
func (m *TrustManager) CheckClientTrusted(chain []*x509.Certificate) ([][]*x509.Certificate, error) {
	return m.verify(chain, "", x509.ExtKeyUsageClientAuth)
}

func (m *TrustManager) verify(chain []*x509.Certificate, dnsName string, usage x509.ExtKeyUsage) ([][]*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("empty certificate chain")
	}
	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}
	return chain[0].Verify(x509.VerifyOptions{
		DNSName:       dnsName,
		Roots:         m.pool,
		Intermediates: intermediates,
		CurrentTime:   time.Now(),
		KeyUsages:     []x509.ExtKeyUsage{usage},
	})
}

// KeyManager supplies the client key and certificate chain during a handshake.
type KeyManager struct {
	alias string
	cert  tls.Certificate
}

// Alias returns the store alias the key was read from.
func (m *KeyManager) Alias() string {
	return m.alias
}

// Certificate returns the key pair presented to servers.
func (m *KeyManager) Certificate() tls.Certificate {
	return m.cert
}

// Leaf returns the client's leaf certificate.
func (m *KeyManager) Leaf() *x509.Certificate {
	return m.cert.Leaf
}

// Chain returns the parsed client chain, leaf first.
func (m *KeyManager) Chain() []*x509.Certificate {
	chain := make([]*x509.Certificate, 0, len(m.cert.Certificate))
	for _, der := range m.cert.Certificate {
		if c, err := x509.ParseCertificate(der); err == nil {
			chain = append(chain, c)
		}
	}
	return chain
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (m *KeyManager) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	cert := m.cert
	return &cert, nil
}

// DeriveManagers derives one trust manager from every trusted entry in store
// and, when present, one key manager from its key entry.
//
// The key manager is nil when the store has no key entry. Zero trusted
// entries, or more than one key entry, fails with a KindDerivation error.
func DeriveManagers(store *Store, password []byte) (*KeyManager, *TrustManager, error) {
	anchors := store.TrustedCertificates()
	if len(anchors) == 0 {
		return nil, nil, &Error{
			Kind: KindDerivation,
			Op:   "derive trust manager",
			Err:  fmt.Errorf("%w: store holds no trusted certificates", ErrTrustManagerCount),
		}
	}
	tm := NewTrustManager(anchors)

	aliases := store.KeyAliases()
	switch len(aliases) {
	case 0:
		return nil, tm, nil
	case 1:
	default:
		return nil, nil, &Error{
			Kind: KindDerivation,
			Op:   "derive key manager",
			Err:  fmt.Errorf("%w: found %d", ErrKeyManagerCount, len(aliases)),
		}
	}

	key, chain, err := store.Key(aliases[0], password)
	if err != nil {
		return nil, nil, &Error{Kind: KindDerivation, Op: "derive key manager", Err: err}
	}

	raw := make([][]byte, len(chain))
	for i, c := range chain {
		raw[i] = c.Raw
	}
	km := &KeyManager{
		alias: aliases[0],
		cert: tls.Certificate{
			Certificate: raw,
			PrivateKey:  key,
			Leaf:        chain[0],
		},
	}
	return km, tm, nil
}
