// Package certdecode turns raw DER bytes from a CT log entry into a structured
// certificate.
//
// Two strictness levels are supported. Strict decoding accepts only
// certificates that parse without any complaint. Lenient decoding also accepts
// certificates whose only problems are known-tolerable deviations (for example
// a malformed iPAddress in the subjectAltName extension); those deviations are
// kept on the decoded certificate as StrictViolations.
//
// Resolve applies the two-phase policy used by the scanner: strict first,
// lenient second, failure last.
package certdecode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/certificate-transparency-go/x509"

	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

// DecodedCertificate is the structured view handed to checks.
// Checks must treat it as read-only.
type DecodedCertificate struct {
	Certificate      *x509.Certificate
	DER              []byte
	EntryType        scan.EntryType
	StrictViolations []string
}

// DecodeError reports bytes that could not be decoded at the requested strictness.
type DecodeError struct {
	Strict bool
	Err    error
}

func (e *DecodeError) Error() string {
	mode := "lenient"
	if e.Strict {
		mode = "strict"
	}
	return fmt.Sprintf("%s decode failed: %v", mode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses der. In strict mode any parser complaint is an error; in
// lenient mode only fatal parse errors are.
func Decode(der []byte, strict bool) (*DecodedCertificate, error) {
	if len(der) == 0 {
		return nil, &DecodeError{Strict: strict, Err: sharedErrors.ErrNotCertificate}
	}

	cert, err := x509.ParseCertificate(der)
	if err == nil && cert != nil {
		return newDecoded(cert, der, nil), nil
	}

	if strict {
		switch {
		case err == nil:
			err = sharedErrors.ErrNotCertificate
		case !x509.IsFatal(err) && cert != nil:
			err = fmt.Errorf("%w: %v", sharedErrors.ErrStrictViolation, err)
		}
		return nil, &DecodeError{Strict: true, Err: err}
	}

	if x509.IsFatal(err) || cert == nil {
		return nil, &DecodeError{Strict: false, Err: fmt.Errorf("%w: %v", sharedErrors.ErrNotCertificate, err)}
	}

	return newDecoded(cert, der, nonFatalMessages(err)), nil
}

func newDecoded(cert *x509.Certificate, der []byte, violations []string) *DecodedCertificate {
	raw := make([]byte, len(der))
	copy(raw, der)
	return &DecodedCertificate{
		Certificate:      cert,
		DER:              raw,
		StrictViolations: violations,
	}
}

func nonFatalMessages(err error) []string {
	var nfe x509.NonFatalErrors
	if errors.As(err, &nfe) && len(nfe.Errors) > 0 {
		msgs := make([]string, 0, len(nfe.Errors))
		for _, e := range nfe.Errors {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

// Violations joins the strict violations into a single detail string.
func (d *DecodedCertificate) Violations() string {
	return strings.Join(d.StrictViolations, "; ")
}

// Clone returns an independent copy. The certificate is parsed again from DER
// so that changes made through one copy are never visible through another.
func (d *DecodedCertificate) Clone() *DecodedCertificate {
	if d == nil {
		return nil
	}
	out := newDecoded(nil, d.DER, append([]string(nil), d.StrictViolations...))
	out.EntryType = d.EntryType
	if d.Certificate != nil {
		cert, err := x509.ParseCertificate(out.DER)
		if cert == nil || x509.IsFatal(err) {
			cp := *d.Certificate
			cert = &cp
		}
		out.Certificate = cert
	}
	return out
}
