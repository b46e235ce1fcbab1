// Package observation models a single finding produced while auditing a
// certificate: a strict-encoding violation, an undecodable entry, or the output
// of a configured check.
//
// Observations are plain values. Two observations are equal when every field is
// equal, so they can be compared with == and used as map keys.
package observation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an observation.
type Kind string

const (
	// KindStrict marks a certificate that only decoded in lenient mode.
	KindStrict Kind = "strict"
	// KindAll marks bytes that are not a parseable certificate at all.
	KindAll Kind = "all"
	// KindCheckFailure marks a check that returned an error instead of findings.
	KindCheckFailure Kind = "check_failure"
)

const allDescription = "entry is not a parseable certificate"

// Observation is an immutable finding.
type Observation struct {
	kind        Kind
	description string
	detail      string
	hasDetail   bool
}

// New creates an observation without detail.
func New(kind Kind, description string) Observation {
	return Observation{kind: kind, description: description}
}

// WithDetail creates an observation carrying an optional detail string.
func WithDetail(kind Kind, description, detail string) Observation {
	return Observation{kind: kind, description: description, detail: detail, hasDetail: true}
}

// Strict reports a strict-mode decoding violation.
func Strict(description string) Observation {
	return New(KindStrict, description)
}

// StrictWithDetail reports a strict-mode decoding violation with the parser's reasons.
func StrictWithDetail(description, detail string) Observation {
	return WithDetail(KindStrict, description, detail)
}

// All reports an entry that could not be decoded in any mode.
func All() Observation {
	return New(KindAll, allDescription)
}

// CheckFailure reports that the named check failed on an otherwise decodable certificate.
func CheckFailure(checkName string, err error) Observation {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return WithDetail(KindCheckFailure, fmt.Sprintf("check %s failed", checkName), detail)
}

func (o Observation) Kind() Kind {
	return o.kind
}

func (o Observation) Description() string {
	return o.description
}

// Detail returns the detail and whether one was set.
func (o Observation) Detail() (string, bool) {
	return o.detail, o.hasDetail
}

// Is reports whether the observation is of the given kind.
func (o Observation) Is(kind Kind) bool {
	return o.kind == kind
}

func (o Observation) String() string {
	var b strings.Builder
	b.WriteString(string(o.kind))
	if o.description != "" {
		b.WriteString(": ")
		b.WriteString(o.description)
	}
	if o.hasDetail && o.detail != "" {
		b.WriteString(" (")
		b.WriteString(o.detail)
		b.WriteString(")")
	}
	return b.String()
}

// Compare orders observations by kind, description, then detail.
// An observation without detail sorts before one with detail.
func Compare(a, b Observation) int {
	if c := strings.Compare(string(a.kind), string(b.kind)); c != 0 {
		return c
	}
	if c := strings.Compare(a.description, b.description); c != 0 {
		return c
	}
	switch {
	case a.hasDetail == b.hasDetail:
		return strings.Compare(a.detail, b.detail)
	case !a.hasDetail:
		return -1
	default:
		return 1
	}
}

// Sort sorts observations in place using Compare.
func Sort(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return Compare(obs[i], obs[j]) < 0
	})
}

// Contains reports whether target is a member of obs.
func Contains(obs []Observation, target Observation) bool {
	for _, o := range obs {
		if o == target {
			return true
		}
	}
	return false
}

// CountKind returns how many observations in obs have the given kind.
func CountKind(obs []Observation, kind Kind) int {
	n := 0
	for _, o := range obs {
		if o.kind == kind {
			n++
		}
	}
	return n
}

type observationDTO struct {
	Kind        Kind    `json:"kind"`
	Description string  `json:"description"`
	Detail      *string `json:"detail,omitempty"`
}

func (o Observation) MarshalJSON() ([]byte, error) {
	dto := observationDTO{Kind: o.kind, Description: o.description}
	if o.hasDetail {
		detail := o.detail
		dto.Detail = &detail
	}
	return json.Marshal(dto)
}

func (o *Observation) UnmarshalJSON(data []byte) error {
	var dto observationDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	if dto.Kind == "" {
		return fmt.Errorf("observation kind is required")
	}
	*o = Observation{kind: dto.Kind, description: dto.Description}
	if dto.Detail != nil {
		o.detail = *dto.Detail
		o.hasDetail = true
	}
	return nil
}
