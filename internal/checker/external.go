package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	consts "github.com/khanhnv2901/ctaudit/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

type ExternalCheckConfig struct {
	Name           string
	Command        string
	Args           []string
	Env            map[string]string
	TimeoutSeconds int
}

// ExternalCheck runs a plugin command once per certificate. The command reads
// a JSON request on stdin and writes a JSON array of observations to stdout.
type ExternalCheck struct {
	name    string
	command string
	args    []string
	env     map[string]string
	timeout time.Duration
}

type externalRequest struct {
	DER       []byte         `json:"der"`
	EntryType scan.EntryType `json:"entry_type"`
}

type externalObservation struct {
	Kind        string  `json:"kind,omitempty"`
	Description string  `json:"description"`
	Detail      *string `json:"detail,omitempty"`
}

func NewExternalCheck(cfg ExternalCheckConfig) *ExternalCheck {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = consts.DefaultPluginTimeoutSecs * time.Second
	}
	return &ExternalCheck{
		name:    cfg.Name,
		command: cfg.Command,
		args:    cfg.Args,
		env:     cfg.Env,
		timeout: timeout,
	}
}

// Name is prefixed with "plugin:" so plugins cannot shadow built-in checks.
func (e *ExternalCheck) Name() string {
	return "plugin:" + e.name
}

func (e *ExternalCheck) Check(cert *certdecode.DecodedCertificate) ([]observation.Observation, error) {
	if e.command == "" {
		return nil, fmt.Errorf("external check command is empty")
	}
	if cert == nil {
		return nil, fmt.Errorf("no certificate to check")
	}

	payload, err := json.Marshal(externalRequest{DER: cert.DER, EntryType: cert.EntryType})
	if err != nil {
		return nil, fmt.Errorf("encode plugin request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = os.Environ()
	for k, v := range e.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: plugin %s: %s", sharedErrors.ErrCheckFailed, e.name, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%w: plugin %s: %v", sharedErrors.ErrCheckFailed, e.name, err)
	}

	var raw []externalObservation
	if err := json.Unmarshal(bytes.TrimSpace(output), &raw); err != nil {
		return nil, fmt.Errorf("invalid plugin output: %w", err)
	}

	obs := make([]observation.Observation, 0, len(raw))
	for _, r := range raw {
		kind := observation.Kind(r.Kind)
		if kind == "" {
			kind = observation.Kind(e.Name())
		}
		if r.Detail != nil {
			obs = append(obs, observation.WithDetail(kind, r.Description, *r.Detail))
		} else {
			obs = append(obs, observation.New(kind, r.Description))
		}
	}
	return obs, nil
}
