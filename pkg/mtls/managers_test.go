package mtls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustManager_Check(t *testing.T) {
	f := newMutualFixture(t)
	tm := NewTrustManager([]*x509.Certificate{f.ca.cert})

	_, err := tm.CheckServerTrusted([]*x509.Certificate{f.serverCert}, "localhost")
	assert.NoError(t, err)
	_, err = tm.CheckServerTrusted([]*x509.Certificate{f.serverCert}, "")
	assert.NoError(t, err)
	_, err = tm.CheckServerTrusted([]*x509.Certificate{f.serverCert}, "example.com")
	assert.Error(t, err)

	_, err = tm.CheckClientTrusted([]*x509.Certificate{f.clientCert})
	assert.NoError(t, err)
	_, err = tm.CheckClientTrusted([]*x509.Certificate{f.serverCert})
	assert.Error(t, err, "server-only certificate must not pass as client")

	_, err = tm.CheckClientTrusted(nil)
	assert.Error(t, err)

	other := newTestCA(t, "other")
	_, err = NewTrustManager([]*x509.Certificate{other.cert}).CheckClientTrusted([]*x509.Certificate{f.clientCert})
	assert.Error(t, err)
}

func TestTrustManager_Intermediates(t *testing.T) {
	root := newTestCA(t, "root")
	interKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          nextSerial(),
		Subject:               pkix.Name{CommonName: "intermediate"},
		NotBefore:             root.cert.NotBefore,
		NotAfter:              root.cert.NotAfter,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, root.cert, interKey.Public(), root.key)
	require.NoError(t, err)
	interCert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	inter := &testCA{cert: interCert, key: interKey}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leaf := inter.issue(t, "leaf", leafKey.Public(), x509.ExtKeyUsageClientAuth)

	tm := NewTrustManager([]*x509.Certificate{root.cert})
	chains, err := tm.CheckClientTrusted([]*x509.Certificate{leaf, interCert})
	require.NoError(t, err)
	require.NotEmpty(t, chains)
	assert.Len(t, chains[0], 3)

	_, err = tm.CheckClientTrusted([]*x509.Certificate{leaf})
	assert.Error(t, err)
}

func TestDeriveManagers(t *testing.T) {
	password := []byte("pw")
	ca := newTestCA(t, "ca")
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leaf := ca.issue(t, "client", key.Public(), x509.ExtKeyUsageClientAuth)

	t.Run("no trusted entries", func(t *testing.T) {
		s := NewStore(password)
		require.NoError(t, s.SetKeyEntry("client", key, password, []*x509.Certificate{leaf}))

		_, _, err := DeriveManagers(s, password)
		assert.ErrorIs(t, err, ErrDerivation)
		assert.ErrorIs(t, err, ErrTrustManagerCount)
	})

	t.Run("trust only", func(t *testing.T) {
		s := NewStore(password)
		require.NoError(t, s.SetCertificateEntry("0", ca.cert))

		km, tm, err := DeriveManagers(s, password)
		require.NoError(t, err)
		assert.Nil(t, km)
		assert.Len(t, tm.Anchors(), 1)
	})

	t.Run("two keys", func(t *testing.T) {
		s := NewStore(password)
		require.NoError(t, s.SetCertificateEntry("0", ca.cert))
		require.NoError(t, s.SetKeyEntry("a", key, password, []*x509.Certificate{leaf}))
		require.NoError(t, s.SetKeyEntry("b", key, password, []*x509.Certificate{leaf}))

		_, _, err := DeriveManagers(s, password)
		assert.ErrorIs(t, err, ErrDerivation)
		assert.ErrorIs(t, err, ErrKeyManagerCount)
	})

	t.Run("wrong password", func(t *testing.T) {
		s := NewStore(password)
		require.NoError(t, s.SetCertificateEntry("0", ca.cert))
		require.NoError(t, s.SetKeyEntry("client", key, password, []*x509.Certificate{leaf}))

		_, _, err := DeriveManagers(s, []byte("other"))
		assert.ErrorIs(t, err, ErrDerivation)
		assert.ErrorIs(t, err, ErrIncorrectPassword)
	})

	t.Run("key entry", func(t *testing.T) {
		s := NewStore(password)
		require.NoError(t, s.SetCertificateEntry("0", ca.cert))
		require.NoError(t, s.SetKeyEntry("client", key, password, []*x509.Certificate{leaf, ca.cert}))

		km, _, err := DeriveManagers(s, password)
		require.NoError(t, err)
		require.NotNil(t, km)
		assert.Equal(t, "client", km.Alias())
		assert.Equal(t, leaf.Raw, km.Leaf().Raw)
		assert.Same(t, key, km.Certificate().PrivateKey)
		assert.Equal(t, [][]byte{leaf.Raw, ca.cert.Raw}, km.Certificate().Certificate)

		got, err := km.GetClientCertificate(&tls.CertificateRequestInfo{})
		require.NoError(t, err)
		assert.Equal(t, leaf.Raw, got.Leaf.Raw)
	})
}
