package checker

import (
	"testing"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/testutil"
)

func TestZLintCheck_Deterministic(t *testing.T) {
	cert := decodeForTest(t, testutil.StrictDER(t))
	chk := NewZLintCheck()

	first, err := chk.Check(cert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := chk.Check(cert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected stable output, got %d then %d observations", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("observation %d differs: %v vs %v", i, first[i], second[i])
		}
		if first[i].Kind() != KindZLint {
			t.Errorf("unexpected kind %s", first[i].Kind())
		}
	}
}

func TestZLintCheck_WarningsFiltered(t *testing.T) {
	cert := decodeForTest(t, testutil.StrictDER(t))

	all, err := (&ZLintCheck{IncludeWarnings: true}).Check(cert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	errorsOnly, err := (&ZLintCheck{IncludeWarnings: false}).Check(cert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errorsOnly) > len(all) {
		t.Errorf("filtering warnings must not add findings: %d > %d", len(errorsOnly), len(all))
	}
}

func TestZLintCheck_UnparseableDER(t *testing.T) {
	_, err := NewZLintCheck().Check(&certdecode.DecodedCertificate{DER: []byte("asdf")})
	if err == nil {
		t.Fatal("expected error for unparseable DER")
	}
}

func TestZLintCheck_LenientCertificateStillReported(t *testing.T) {
	cert := decodeForTest(t, testutil.MalformedIPDER(t))
	if len(cert.StrictViolations) == 0 {
		t.Fatal("fixture should only decode leniently")
	}

	obs, err := NewZLintCheck().Check(cert)
	if err != nil {
		t.Fatalf("lenient certificate must not fail the check: %v", err)
	}
	if len(obs) == 0 {
		t.Fatal("expected zlint observations")
	}
	for _, o := range obs {
		if o.Kind() != KindZLint {
			t.Errorf("unexpected kind %s", o.Kind())
		}
		if o.Description() == notLintableDescription {
			if detail, ok := o.Detail(); !ok || detail == "" {
				t.Error("expected the zcrypto error as detail")
			}
		}
	}
}
