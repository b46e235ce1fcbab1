package checker

import (
	"fmt"
	"sort"

	zx509 "github.com/zmap/zcrypto/x509"
	"github.com/zmap/zlint/v3"
	"github.com/zmap/zlint/v3/lint"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
)

// KindZLint is the observation kind emitted by ZLintCheck.
const KindZLint observation.Kind = "zlint"

const notLintableDescription = "certificate not lintable"

// ZLintCheck runs the zlint rule set against the certificate DER.
// Lints at Warn, Error or Fatal become observations; IncludeWarnings
// controls whether warnings are reported. A decoded certificate that zcrypto
// cannot parse yields a single "certificate not lintable" observation.
type ZLintCheck struct {
	IncludeWarnings bool
}

// NewZLintCheck returns a ZLintCheck reporting warnings and errors.
func NewZLintCheck() *ZLintCheck {
	return &ZLintCheck{IncludeWarnings: true}
}

func (z *ZLintCheck) Name() string {
	return "zlint"
}

func (z *ZLintCheck) Check(cert *certdecode.DecodedCertificate) ([]observation.Observation, error) {
	if cert == nil || len(cert.DER) == 0 {
		return nil, fmt.Errorf("no certificate to lint")
	}

	parsed, err := zx509.ParseCertificate(cert.DER)
	if err != nil {
		// zcrypto rejects some encodings the lenient decoder accepts. Such a
		// certificate is still reported, just without lint results.
		if cert.Certificate != nil {
			return []observation.Observation{observation.WithDetail(KindZLint, notLintableDescription, err.Error())}, nil
		}
		return nil, fmt.Errorf("zcrypto parse: %w", err)
	}

	results := zlint.LintCertificate(parsed)
	if results == nil {
		return []observation.Observation{}, nil
	}

	// Results is a map; sort lint names so output order is stable.
	names := make([]string, 0, len(results.Results))
	for name := range results.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	obs := []observation.Observation{}
	for _, name := range names {
		res := results.Results[name]
		if res == nil || !z.reportable(res.Status) {
			continue
		}
		detail := res.Details
		if detail == "" {
			detail = res.Status.String()
		}
		obs = append(obs, observation.WithDetail(KindZLint, name, detail))
	}
	return obs, nil
}

func (z *ZLintCheck) reportable(status lint.LintStatus) bool {
	switch status {
	case lint.Error, lint.Fatal:
		return true
	case lint.Warn:
		return z.IncludeWarnings
	default:
		return false
	}
}
