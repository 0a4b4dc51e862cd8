package mtls

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/mtlsclient-go/pkg/resource"
)

type testCA struct {
	cert *x509.Certificate
	key  crypto.Signer
}

func newTestCA(t *testing.T, cn string) *testCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &testCA{cert: cert, key: key}
}

var serials struct {
	sync.Mutex
	n int64
}

func nextSerial() *big.Int {
	serials.Lock()
	defer serials.Unlock()
	serials.n++
	return big.NewInt(100 + serials.n)
}

// issue signs pub as a leaf certificate for usage. Server leaves get
// localhost and 127.0.0.1 as names.
func (ca *testCA) issue(t *testing.T, cn string, pub crypto.PublicKey, usage x509.ExtKeyUsage) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: nextSerial(),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
	}
	if usage == x509.ExtKeyUsageServerAuth {
		tmpl.DNSNames = []string{"localhost"}
		tmpl.IPAddresses = []net.IP{net.ParseIP("127.0.0.1")}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, pub, ca.key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func certsPEM(certs ...*x509.Certificate) []byte {
	var buf bytes.Buffer
	for _, c := range certs {
		_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
	}
	return buf.Bytes()
}

func pkcs8PEM(t *testing.T, key crypto.Signer) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// memOpener serves locators from a map and counts opens and closes.
type memOpener struct {
	mu     sync.Mutex
	files  map[string][]byte
	opened int
	closed int
}

func newMemOpener(files map[string][]byte) *memOpener {
	return &memOpener{files: files}
}

func (m *memOpener) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", resource.ErrNotFound, locator)
	}
	m.opened++
	return &countingCloser{Reader: bytes.NewReader(data), m: m}, nil
}

func (m *memOpener) balanced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened == m.closed
}

type countingCloser struct {
	io.Reader
	m *memOpener
}

func (c *countingCloser) Close() error {
	c.m.mu.Lock()
	c.m.closed++
	c.m.mu.Unlock()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mutualFixture is a CA, a client key pair and a server key pair, served by
// a memOpener under the locators ca, client.key and client.crt.
type mutualFixture struct {
	ca         *testCA
	clientKey  crypto.Signer
	clientCert *x509.Certificate
	serverKey  crypto.Signer
	serverCert *x509.Certificate
	opener     *memOpener
}

func newMutualFixture(t *testing.T) *mutualFixture {
	t.Helper()
	ca := newTestCA(t, "test ca")

	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	serverKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	f := &mutualFixture{
		ca:         ca,
		clientKey:  clientKey,
		clientCert: ca.issue(t, "test client", clientKey.Public(), x509.ExtKeyUsageClientAuth),
		serverKey:  serverKey,
		serverCert: ca.issue(t, "localhost", serverKey.Public(), x509.ExtKeyUsageServerAuth),
	}
	f.opener = newMemOpener(map[string][]byte{
		"ca":         certsPEM(ca.cert),
		"client.key": pkcs8PEM(t, clientKey),
		"client.crt": certsPEM(f.clientCert, ca.cert),
	})
	return f
}

func (f *mutualFixture) builder() Builder {
	return NewBuilder(WithOpener(f.opener), WithLogger(discardLogger()))
}
