package mtls

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
)

const certificateBlockType = "CERTIFICATE"

var certificateMarker = []byte("-----BEGIN " + certificateBlockType + "-----")

// DecodeCertificates reads every X.509 certificate from r, in order.
//
// The input is either a sequence of PEM blocks (blocks of other types are
// skipped) or, when it holds no PEM at all, concatenated DER certificates.
// An input yielding no certificate fails with ErrNoCertificates.
func DecodeCertificates(r io.Reader) ([]*x509.Certificate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: KindIO, Op: "read certificates", Err: err}
	}

	certs, err := parseCertificates(data)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Op: "decode certificates", Err: err}
	}
	return certs, nil
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var (
		certs   []*x509.Certificate
		sawPEM  bool
		rest    = data
		blockNo int
	)

	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		sawPEM = true

		if block.Type != certificateBlockType {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate %d: %w", blockNo, err)
		}
		certs = append(certs, cert)
		blockNo++
	}

	// pem.Decode skips blocks it cannot decode, so every certificate
	// marker must have produced a certificate.
	if want := bytes.Count(data, certificateMarker); want != len(certs) {
		return nil, fmt.Errorf("malformed PEM: decoded %d of %d certificate blocks", len(certs), want)
	}

	if !sawPEM {
		// DER certificates start with an ASN.1 SEQUENCE tag. Trailing bytes
		// belong to the signature and must not be trimmed.
		if der := bytes.TrimLeft(data, " \t\r\n"); len(der) > 0 && der[0] == 0x30 {
			parsed, err := x509.ParseCertificates(der)
			if err != nil {
				return nil, fmt.Errorf("parse DER certificates: %w", err)
			}
			certs = parsed
		}
	}

	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}
	return certs, nil
}
