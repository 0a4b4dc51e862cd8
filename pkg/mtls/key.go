package mtls

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// PKCS#8 algorithm identifiers with a default decoder.
var (
	OIDPublicKeyRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	OIDPublicKeyECDSA   = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	OIDPublicKeyEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}
)

var (
	beginArmor = regexp.MustCompile(`-----BEGIN [^-]*-----`)
	endArmor   = regexp.MustCompile(`-----END [^-]*-----`)
)

// pkcs8Info mirrors the leading fields of a PKCS#8 PrivateKeyInfo.
type pkcs8Info struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// KeyDecoder turns PKCS#8 DER bytes into a signing key.
type KeyDecoder func(der []byte) (crypto.Signer, error)

// KeyDecoders maps PKCS#8 algorithm identifiers to decoders.
type KeyDecoders struct {
	decoders map[string]KeyDecoder
}

// NewKeyDecoders returns an empty registry.
func NewKeyDecoders() *KeyDecoders {
	return &KeyDecoders{decoders: make(map[string]KeyDecoder)}
}

// DefaultKeyDecoders returns a registry with RSA, ECDSA and Ed25519 decoders.
func DefaultKeyDecoders() *KeyDecoders {
	return NewKeyDecoders().
		Register(OIDPublicKeyRSA, pkcs8Decoder[*rsa.PrivateKey]("RSA")).
		Register(OIDPublicKeyECDSA, pkcs8Decoder[*ecdsa.PrivateKey]("ECDSA")).
		Register(OIDPublicKeyEd25519, pkcs8Decoder[ed25519.PrivateKey]("Ed25519"))
}

// Register sets the decoder for oid, replacing any previous one.
// Returns the registry for method chaining.
func (d *KeyDecoders) Register(oid asn1.ObjectIdentifier, dec KeyDecoder) *KeyDecoders {
	d.decoders[oid.String()] = dec
	return d
}

// Lookup returns the decoder registered for oid.
func (d *KeyDecoders) Lookup(oid asn1.ObjectIdentifier) (KeyDecoder, bool) {
	dec, ok := d.decoders[oid.String()]
	return dec, ok
}

func (d *KeyDecoders) clone() *KeyDecoders {
	c := NewKeyDecoders()
	for k, v := range d.decoders {
		c.decoders[k] = v
	}
	return c
}

func pkcs8Decoder[K crypto.Signer](name string) KeyDecoder {
	return func(der []byte) (crypto.Signer, error) {
		key, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, err
		}
		k, ok := key.(K)
		if !ok {
			return nil, fmt.Errorf("expected %s key, got %T", name, key)
		}
		return k, nil
	}
}

// DecodePrivateKey reads a PEM-armored PKCS#8 private key from r.
//
// The armor lines and all whitespace (any newline convention) are removed,
// the remainder is Base64-decoded, and the key algorithm is read from the
// PKCS#8 AlgorithmIdentifier to select a decoder from decoders. A nil
// registry means DefaultKeyDecoders.
func DecodePrivateKey(r io.Reader, decoders *KeyDecoders) (crypto.Signer, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: KindIO, Op: "read private key", Err: err}
	}

	der, err := base64.StdEncoding.DecodeString(stripArmor(string(text)))
	if err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode private key", Err: fmt.Errorf("base64: %w", err)}
	}

	key, err := decodePKCS8(der, decoders)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode private key", Err: err}
	}
	return key, nil
}

// stripArmor removes PEM header/footer lines and every whitespace character.
func stripArmor(text string) string {
	text = beginArmor.ReplaceAllString(text, "")
	text = endArmor.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), "")
}

func decodePKCS8(der []byte, decoders *KeyDecoders) (crypto.Signer, error) {
	if decoders == nil {
		decoders = DefaultKeyDecoders()
	}

	var info pkcs8Info
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, fmt.Errorf("pkcs8: %w", err)
	}

	dec, ok := decoders.Lookup(info.Algo.Algorithm)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyAlgorithm, info.Algo.Algorithm)
	}
	return dec(der)
}
