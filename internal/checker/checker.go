package checker

import (
	"fmt"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

// Check is the interface that all certificate checks must satisfy
type Check interface {
	// Name returns the unique name used to configure this check (e.g., "compliance", "zlint")
	Name() string

	// Check inspects a decoded certificate. It returns an empty slice when
	// nothing is found and must not modify cert.
	Check(cert *certdecode.DecodedCertificate) ([]observation.Observation, error)
}

// CheckError is a failure of a single check on a single certificate.
type CheckError struct {
	Check string
	Err   error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %s: %v", e.Check, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// Run executes chk against cert. Errors and panics are both reported as a
// *CheckError so one misbehaving check cannot take down a scan.
func Run(chk Check, cert *certdecode.DecodedCertificate) (obs []observation.Observation, err error) {
	if chk == nil {
		return nil, &CheckError{Check: "<nil>", Err: sharedErrors.ErrNilCheck}
	}
	name := fmt.Sprintf("%T", chk)
	defer func() {
		if r := recover(); r != nil {
			obs = nil
			err = &CheckError{Check: name, Err: fmt.Errorf("%w: %v", sharedErrors.ErrCheckPanicked, r)}
		}
	}()

	name = chk.Name()
	obs, err = chk.Check(cert)
	if err != nil {
		return nil, &CheckError{Check: name, Err: err}
	}
	return obs, nil
}
