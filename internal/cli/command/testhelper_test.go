package command

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
)

const testClientCN = "mtlsctl test client"

// credentials are PEM files for one CA, one client and one server.
type credentials struct {
	dir        string
	ca         string
	clientKey  string
	clientCert string

	caPool     *x509.CertPool
	serverCert tls.Certificate
}

// flags returns the global flags selecting the PEM credentials.
func (c credentials) flags() []string {
	return []string{"--ca", c.ca, "--client-key", c.clientKey, "--client-cert", c.clientCert}
}

var serial int64 = 10

func issue(t *testing.T, cn string, parent *x509.Certificate, parentKey *ecdsa.PrivateKey, usage x509.ExtKeyUsage) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	serial++
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
	}
	if usage == x509.ExtKeyUsageServerAuth {
		tmpl.DNSNames = []string{"localhost"}
		tmpl.IPAddresses = []net.IP{net.ParseIP("127.0.0.1")}
	}
	signer := key
	if parent == nil {
		tmpl.IsCA = true
		tmpl.BasicConstraintsValid = true
		tmpl.KeyUsage = x509.KeyUsageCertSign
		tmpl.ExtKeyUsage = nil
		parent = tmpl
	} else {
		signer = parentKey
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, key.Public(), signer)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert, key
}

func writePEM(t *testing.T, path, blockType string, der []byte) {
	t.Helper()
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeCredentials writes ca.crt, client.key and client.crt into a new
// temporary directory.
func writeCredentials(t *testing.T) credentials {
	t.Helper()
	dir := t.TempDir()

	caCert, caKey := issue(t, "mtlsctl test CA", nil, nil, 0)
	clientCert, clientKey := issue(t, testClientCN, caCert, caKey, x509.ExtKeyUsageClientAuth)
	serverCert, serverKey := issue(t, "localhost", caCert, caKey, x509.ExtKeyUsageServerAuth)

	c := credentials{
		dir:        dir,
		ca:         filepath.Join(dir, "ca.crt"),
		clientKey:  filepath.Join(dir, "client.key"),
		clientCert: filepath.Join(dir, "client.crt"),
		caPool:     x509.NewCertPool(),
		serverCert: tls.Certificate{Certificate: [][]byte{serverCert.Raw}, PrivateKey: serverKey, Leaf: serverCert},
	}
	c.caPool.AddCert(caCert)

	keyDER, err := x509.MarshalPKCS8PrivateKey(clientKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	writePEM(t, c.ca, "CERTIFICATE", caCert.Raw)
	writePEM(t, c.clientKey, "PRIVATE KEY", keyDER)
	writePEM(t, c.clientCert, "CERTIFICATE", clientCert.Raw)
	return c
}

// newMTLSServer starts a TLS server that requires a client certificate
// issued by the test CA. GET /hello answers "hello <client CN>"; /header
// echoes X-Test; other paths are 404.
func newMTLSServer(t *testing.T, c credentials) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello " + r.TLS.PeerCertificates[0].Subject.CommonName))
	})
	mux.HandleFunc("/header", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("X-Test")))
	})

	srv := httptest.NewUnstartedServer(mux)
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{c.serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    c.caPool,
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

// run executes mtlsctl with args and returns stdout, stderr and the error.
// Exit errors are returned rather than terminating the test binary.
func run(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.RunContext(ctx, append([]string{"mtlsctl"}, args...))
	return stdout.String(), stderr.String(), err
}

// isolate points HOME at an empty directory so no user profile is read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func exitCode(err error) int {
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return -1
}
