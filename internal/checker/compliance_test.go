package checker

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509/pkix"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/testutil"
)

func decodeForTest(t *testing.T, der []byte) *certdecode.DecodedCertificate {
	t.Helper()
	cert, err := certdecode.Decode(der, false)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return cert
}

func descriptions(obs []observation.Observation) []string {
	out := make([]string, 0, len(obs))
	for _, o := range obs {
		out = append(out, o.Description())
	}
	return out
}

func hasDescription(obs []observation.Observation, desc string) bool {
	for _, o := range obs {
		if o.Description() == desc {
			return true
		}
	}
	return false
}

func TestComplianceCheck_CleanCertificate(t *testing.T) {
	chk := NewComplianceCheck()
	obs, err := chk.Check(decodeForTest(t, testutil.StrictDER(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected empty, non-nil observations")
	}
	if len(obs) != 0 {
		t.Errorf("expected no observations, got %v", descriptions(obs))
	}
}

func TestComplianceCheck_Findings(t *testing.T) {
	tests := []struct {
		name string
		opts testutil.CertOptions
		want string
	}{
		{
			name: "small RSA key",
			opts: testutil.CertOptions{DNSNames: []string{"www.example.com"}, RSABits: 1024},
			want: "RSA key too small",
		},
		{
			name: "long validity",
			opts: testutil.CertOptions{
				DNSNames:  []string{"www.example.com"},
				NotBefore: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				NotAfter:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			want: "validity period too long",
		},
		{
			name: "no SAN",
			opts: testutil.CertOptions{},
			want: "certificate has no subjectAltName entries",
		},
		{
			name: "wildcard on public suffix",
			opts: testutil.CertOptions{DNSNames: []string{"*.co.uk"}},
			want: "name covers a public suffix",
		},
	}

	chk := NewComplianceCheck()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := chk.Check(decodeForTest(t, testutil.NewCertificate(t, tt.opts)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !hasDescription(obs, tt.want) {
				t.Errorf("expected %q in %v", tt.want, descriptions(obs))
			}
			for _, o := range obs {
				if o.Kind() != KindCompliance {
					t.Errorf("unexpected kind %s", o.Kind())
				}
			}
		})
	}
}

func TestComplianceCheck_OrderOfFindings(t *testing.T) {
	cert := &certdecode.DecodedCertificate{
		Certificate: &x509.Certificate{
			Subject:            pkix.Name{CommonName: "legacy.example.com"},
			SerialNumber:       big.NewInt(0),
			NotBefore:          time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
			NotAfter:           time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			SignatureAlgorithm: x509.SHA1WithRSA,
			PublicKeyAlgorithm: x509.RSA,
		},
	}

	obs, err := NewComplianceCheck().Check(cert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"weak signature algorithm",
		"validity period inverted",
		"serial number is not positive",
		"certificate has no subjectAltName entries",
	}
	got := descriptions(obs)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("finding %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestComplianceCheck_CustomValidityLimit(t *testing.T) {
	chk := &ComplianceCheck{MaxValidityDays: 30}
	obs, err := chk.Check(decodeForTest(t, testutil.StrictDER(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasDescription(obs, "validity period too long") {
		t.Errorf("expected 90-day certificate to exceed a 30-day limit, got %v", descriptions(obs))
	}
}

func TestComplianceCheck_NilCertificate(t *testing.T) {
	if _, err := NewComplianceCheck().Check(nil); err == nil {
		t.Error("expected error for nil certificate")
	}
}
