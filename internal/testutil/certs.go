// Package testutil builds certificate fixtures for tests across the module.
package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"net"
	"testing"
	"time"
)

var oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// CertOptions controls the certificate produced by NewCertificate.
type CertOptions struct {
	CommonName string
	DNSNames   []string
	IPs        []net.IP
	NotBefore  time.Time
	NotAfter   time.Time
	Serial     *big.Int
	// RSABits selects an RSA key of the given size; zero means ECDSA P-256.
	RSABits         int
	ExtraExtensions []pkix.Extension
}

// NewCertificate returns the DER encoding of a self-signed leaf certificate.
func NewCertificate(t testing.TB, opts CertOptions) []byte {
	t.Helper()

	if opts.CommonName == "" {
		opts.CommonName = "www.example.com"
	}
	if opts.NotBefore.IsZero() {
		opts.NotBefore = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = opts.NotBefore.Add(90 * 24 * time.Hour)
	}
	if opts.Serial == nil {
		opts.Serial = big.NewInt(4242)
	}

	var (
		signer crypto.Signer
		err    error
	)
	if opts.RSABits > 0 {
		signer, err = rsa.GenerateKey(rand.Reader, opts.RSABits)
	} else {
		signer, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:    opts.Serial,
		Subject:         pkix.Name{CommonName: opts.CommonName, Organization: []string{"Example Org"}},
		Issuer:          pkix.Name{CommonName: "Example Test CA"},
		NotBefore:       opts.NotBefore,
		NotAfter:        opts.NotAfter,
		DNSNames:        opts.DNSNames,
		IPAddresses:     opts.IPs,
		KeyUsage:        x509.KeyUsageDigitalSignature,
		ExtKeyUsage:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		ExtraExtensions: opts.ExtraExtensions,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, signer.Public(), signer)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return der
}

// StrictDER returns a well-formed certificate that decodes cleanly in strict mode.
func StrictDER(t testing.TB) []byte {
	t.Helper()
	return NewCertificate(t, CertOptions{DNSNames: []string{"www.example.com", "example.com"}})
}

// MalformedIPDER returns a certificate whose subjectAltName carries a 5-byte
// iPAddress. It fails strict decoding but is still interpretable.
func MalformedIPDER(t testing.TB) []byte {
	t.Helper()

	san, err := asn1.Marshal([]asn1.RawValue{
		{Class: asn1.ClassContextSpecific, Tag: 2, Bytes: []byte("www.example.com")},
		{Class: asn1.ClassContextSpecific, Tag: 7, Bytes: []byte{10, 0, 0, 1, 9}},
	})
	if err != nil {
		t.Fatalf("marshal SAN: %v", err)
	}

	return NewCertificate(t, CertOptions{
		ExtraExtensions: []pkix.Extension{{Id: oidSubjectAltName, Value: san}},
	})
}

// PEM wraps DER bytes in a CERTIFICATE PEM block.
func PEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}
