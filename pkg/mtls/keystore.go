package mtls

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"strconv"

	"software.sslmate.com/src/go-pkcs12"
)

// Aliases used when populating a Store.
const (
	ClientKeyAlias = "client"
)

// LoadKeyStore reads a PKCS#12 container from r and returns a Store protected
// by the same password.
//
// A container holding a private key yields a key entry under ClientKeyAlias
// whose chain is the key's certificate followed by the CA certificates; the
// CA certificates also become trusted entries under positional aliases. A
// Java-style trust store without a key yields trusted entries only.
func LoadKeyStore(r io.Reader, password []byte) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: KindIO, Op: "read keystore", Err: err}
	}

	store := NewStore(password)

	key, leaf, cas, err := pkcs12.DecodeChain(data, string(password))
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, &Error{Kind: KindDerivation, Op: "unlock keystore", Err: ErrIncorrectPassword}
		}
		trusted, terr := pkcs12.DecodeTrustStore(data, string(password))
		if terr != nil {
			return nil, &Error{Kind: KindDecode, Op: "decode keystore", Err: err}
		}
		if err := populateKeyStore(store, password, nil, nil, trusted); err != nil {
			return nil, &Error{Kind: KindDecode, Op: "decode keystore", Err: err}
		}
		return store, nil
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, &Error{Kind: KindDecode, Op: "decode keystore", Err: fmt.Errorf("%w: %T", ErrUnsupportedKeyAlgorithm, key)}
	}
	if err := populateKeyStore(store, password, signer, leaf, cas); err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode keystore", Err: err}
	}
	return store, nil
}

// populateKeyStore adds the key entry, when signer is set, and one trusted
// entry per CA certificate.
func populateKeyStore(store *Store, password []byte, signer crypto.Signer, leaf *x509.Certificate, cas []*x509.Certificate) error {
	if leaf == nil && len(cas) == 0 {
		return ErrNoCertificates
	}

	if signer != nil {
		if leaf == nil {
			return errors.New("private key without certificate")
		}
		pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
		if !ok || !pub.Equal(leaf.PublicKey) {
			return errors.New("private key does not match its certificate")
		}
		chain := append([]*x509.Certificate{leaf}, cas...)
		if err := store.SetKeyEntry(ClientKeyAlias, signer, password, chain); err != nil {
			return err
		}
	}

	for i, c := range cas {
		if err := store.SetCertificateEntry(strconv.Itoa(i), c); err != nil {
			return err
		}
	}
	return nil
}
