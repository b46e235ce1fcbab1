package checker

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/google/certificate-transparency-go/x509"
	"golang.org/x/net/publicsuffix"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
)

// KindCompliance is the observation kind emitted by ComplianceCheck.
const KindCompliance observation.Kind = "compliance"

const (
	minRSAKeyBits   = 2048
	minECDSAKeyBits = 224
	// maxValidityDays is the CA/Browser Forum limit for subscriber certificates.
	maxValidityDays = 398
)

// ComplianceCheck validates a leaf certificate against baseline CA/Browser
// Forum profile rules: signature and key strength, validity period, serial
// number and subjectAltName contents.
type ComplianceCheck struct {
	MaxValidityDays int
}

// NewComplianceCheck returns a ComplianceCheck with default limits.
func NewComplianceCheck() *ComplianceCheck {
	return &ComplianceCheck{MaxValidityDays: maxValidityDays}
}

func (c *ComplianceCheck) Name() string {
	return "compliance"
}

// CertificateInfo is the subset of certificate fields the compliance rules look at.
type CertificateInfo struct {
	Subject      string
	Issuer       string
	NotBefore    time.Time
	NotAfter     time.Time
	DNSNames     []string
	SANCount     int
	SignatureAlg string
	PublicKeyAlg string
	KeySize      int
	SerialSign   int
}

func (c *ComplianceCheck) Check(cert *certdecode.DecodedCertificate) ([]observation.Observation, error) {
	if cert == nil || cert.Certificate == nil {
		return nil, fmt.Errorf("no certificate to check")
	}

	info := analyzeCertificate(cert.Certificate)
	obs := []observation.Observation{}

	obs = checkSignatureAlgorithm(info, obs)
	obs = checkKeyStrength(info, obs)
	obs = c.checkValidity(info, obs)
	obs = checkSerialNumber(info, obs)
	obs = checkSubjectAltNames(info, obs)

	return obs, nil
}

// analyzeCertificate extracts certificate information
func analyzeCertificate(cert *x509.Certificate) *CertificateInfo {
	info := &CertificateInfo{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		DNSNames:     cert.DNSNames,
		SANCount:     len(cert.DNSNames) + len(cert.IPAddresses) + len(cert.EmailAddresses) + len(cert.URIs),
		SignatureAlg: cert.SignatureAlgorithm.String(),
		PublicKeyAlg: cert.PublicKeyAlgorithm.String(),
	}

	if cert.SerialNumber != nil {
		info.SerialSign = cert.SerialNumber.Sign()
	}

	// Extract key size based on public key type
	switch pubKey := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		info.KeySize = pubKey.N.BitLen()
	case *ecdsa.PublicKey:
		info.KeySize = pubKey.Curve.Params().BitSize
	}

	return info
}

func checkSignatureAlgorithm(info *CertificateInfo, obs []observation.Observation) []observation.Observation {
	alg := strings.ToLower(info.SignatureAlg)
	if strings.Contains(alg, "md5") || strings.Contains(alg, "md2") || strings.Contains(alg, "sha1") {
		obs = append(obs, observation.WithDetail(KindCompliance, "weak signature algorithm", info.SignatureAlg))
	}
	return obs
}

func checkKeyStrength(info *CertificateInfo, obs []observation.Observation) []observation.Observation {
	if info.KeySize <= 0 {
		return obs
	}
	if strings.Contains(info.PublicKeyAlg, "RSA") && info.KeySize < minRSAKeyBits {
		obs = append(obs, observation.WithDetail(KindCompliance, "RSA key too small",
			fmt.Sprintf("%d bits (minimum %d)", info.KeySize, minRSAKeyBits)))
	} else if strings.Contains(info.PublicKeyAlg, "ECDSA") && info.KeySize < minECDSAKeyBits {
		obs = append(obs, observation.WithDetail(KindCompliance, "ECDSA key too small",
			fmt.Sprintf("%d bits (minimum %d)", info.KeySize, minECDSAKeyBits)))
	}
	return obs
}

func (c *ComplianceCheck) checkValidity(info *CertificateInfo, obs []observation.Observation) []observation.Observation {
	if info.NotAfter.Before(info.NotBefore) {
		return append(obs, observation.WithDetail(KindCompliance, "validity period inverted",
			fmt.Sprintf("notAfter %s before notBefore %s", info.NotAfter.Format(time.RFC3339), info.NotBefore.Format(time.RFC3339))))
	}

	limit := c.MaxValidityDays
	if limit <= 0 {
		limit = maxValidityDays
	}
	days := int(info.NotAfter.Sub(info.NotBefore).Hours() / 24)
	if days > limit {
		obs = append(obs, observation.WithDetail(KindCompliance, "validity period too long",
			fmt.Sprintf("%d days (maximum %d)", days, limit)))
	}
	return obs
}

func checkSerialNumber(info *CertificateInfo, obs []observation.Observation) []observation.Observation {
	if info.SerialSign <= 0 {
		obs = append(obs, observation.New(KindCompliance, "serial number is not positive"))
	}
	return obs
}

func checkSubjectAltNames(info *CertificateInfo, obs []observation.Observation) []observation.Observation {
	if info.SANCount == 0 {
		obs = append(obs, observation.New(KindCompliance, "certificate has no subjectAltName entries"))
	}

	for _, name := range info.DNSNames {
		base := strings.TrimPrefix(strings.ToLower(strings.TrimSuffix(name, ".")), "*.")
		if base == "" {
			continue
		}
		suffix, icann := publicsuffix.PublicSuffix(base)
		if icann && suffix == base {
			obs = append(obs, observation.WithDetail(KindCompliance, "name covers a public suffix", name))
		}
	}
	return obs
}
