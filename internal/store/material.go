package store

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
)

var pemPrefix = []byte("-----BEGIN ")

// PEM returns the certificate and key as PEM, decoding Traefik's base64
// encoding when present. Values that are neither PEM nor base64-encoded PEM
// are returned unchanged.
func (m *Material) PEM() (cert, key []byte) {
	return decodePEM(m.Certificate), decodePEM(m.Key)
}

// NotAfter returns the expiry of the leaf certificate, or the zero time when
// it cannot be parsed.
func (m *Material) NotAfter() time.Time {
	cert, err := certcrypto.ParsePEMCertificate(decodePEM(m.Certificate))
	if err != nil {
		return time.Time{}
	}
	return cert.NotAfter
}

// IssuedAt returns the NotBefore of the record's leaf certificate, or the zero
// time when the certificate cannot be parsed.
func (r *Record) IssuedAt() time.Time {
	cert, err := r.parseCertificate()
	if err != nil {
		return time.Time{}
	}
	return cert.NotBefore
}

func (r *Record) parseCertificate() (*x509.Certificate, error) {
	return certcrypto.ParsePEMCertificate(decodePEM([]byte(r.Certificate)))
}

func decodePEM(value []byte) []byte {
	trimmed := bytes.TrimSpace(value)
	if bytes.HasPrefix(trimmed, pemPrefix) {
		return value
	}

	decoded, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return value
	}
	if !bytes.HasPrefix(bytes.TrimSpace(decoded), pemPrefix) {
		return value
	}
	return decoded
}
