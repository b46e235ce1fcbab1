package certdecode

import (
	"fmt"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
)

// Outcome is the result of the strict-then-lenient decode policy.
type Outcome int

const (
	StrictOK Outcome = iota
	LenientOK
	Failed
)

func (o Outcome) String() string {
	switch o {
	case StrictOK:
		return "strict_ok"
	case LenientOK:
		return "lenient_ok"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Decoded reports whether a certificate is available for checks.
func (o Outcome) Decoded() bool {
	return o == StrictOK || o == LenientOK
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "strict_ok":
		*o = StrictOK
	case "lenient_ok":
		*o = LenientOK
	case "failed":
		*o = Failed
	default:
		return fmt.Errorf("unknown decode outcome %q", text)
	}
	return nil
}

const strictFailureDescription = "certificate failed strict decoding"

// Resolution holds the outcome of Resolve together with what it produced.
type Resolution struct {
	Outcome     Outcome
	Certificate *DecodedCertificate
	StrictErr   error
	LenientErr  error
}

// Resolve decodes der strictly, falling back to lenient decoding, and records
// the entry type on the decoded certificate.
func Resolve(der []byte, entryType scan.EntryType) Resolution {
	cert, strictErr := Decode(der, true)
	if strictErr == nil {
		cert.EntryType = entryType
		return Resolution{Outcome: StrictOK, Certificate: cert}
	}

	cert, lenientErr := Decode(der, false)
	if lenientErr == nil {
		cert.EntryType = entryType
		return Resolution{Outcome: LenientOK, Certificate: cert, StrictErr: strictErr}
	}

	return Resolution{Outcome: Failed, StrictErr: strictErr, LenientErr: lenientErr}
}

// Observations returns the decode-related observations: none for StrictOK,
// one Strict for LenientOK and one All for Failed.
func (r Resolution) Observations() []observation.Observation {
	switch r.Outcome {
	case LenientOK:
		detail := ""
		if r.Certificate != nil {
			detail = r.Certificate.Violations()
		}
		if detail == "" && r.StrictErr != nil {
			detail = r.StrictErr.Error()
		}
		return []observation.Observation{observation.StrictWithDetail(strictFailureDescription, detail)}
	case Failed:
		return []observation.Observation{observation.All()}
	default:
		return nil
	}
}
