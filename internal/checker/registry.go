package checker

import (
	"fmt"
	"sort"
	"strings"

	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

// Registry holds the checks available for configuration, in registration order.
type Registry struct {
	order  []string
	checks map[string]Check
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

// DefaultRegistry returns a registry with every built-in check.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NewComplianceCheck())
	_ = r.Register(NewZLintCheck())
	return r
}

// Register adds a check. Names must be unique.
func (r *Registry) Register(chk Check) error {
	if chk == nil {
		return sharedErrors.ErrNilCheck
	}
	name := chk.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: check name", sharedErrors.ErrMissingRequired)
	}
	if _, exists := r.checks[name]; exists {
		return fmt.Errorf("%w: %s", sharedErrors.ErrDuplicateCheck, name)
	}
	r.checks[name] = chk
	r.order = append(r.order, name)
	return nil
}

// Get returns the check registered under name.
func (r *Registry) Get(name string) (Check, bool) {
	chk, ok := r.checks[name]
	return chk, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered checks.
func (r *Registry) Count() int {
	return len(r.order)
}

// Build resolves configured names into an ordered check list.
// Unknown or repeated names are rejected.
func (r *Registry) Build(names []string) ([]Check, error) {
	checks := make([]Check, 0, len(names))
	used := make(map[string]struct{}, len(names))
	var unknown []string

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, dup := used[name]; dup {
			return nil, fmt.Errorf("%w: %s configured twice", sharedErrors.ErrDuplicateCheck, name)
		}
		chk, ok := r.checks[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		used[name] = struct{}{}
		checks = append(checks, chk)
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s (available: %s)", sharedErrors.ErrUnknownCheck,
			strings.Join(unknown, ", "), strings.Join(r.order, ", "))
	}
	return checks, nil
}
