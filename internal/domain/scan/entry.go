package scan

import (
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

// EntryType distinguishes final certificates from precertificates in a CT log.
type EntryType int

const (
	X509Entry EntryType = iota
	PrecertEntry
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == X509Entry || t == PrecertEntry
}

func (t EntryType) String() string {
	switch t {
	case X509Entry:
		return "x509_entry"
	case PrecertEntry:
		return "precert_entry"
	default:
		return fmt.Sprintf("unknown_entry(%d)", int(t))
	}
}

// ParseEntryType parses the textual form produced by String.
func ParseEntryType(s string) (EntryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x509_entry", "x509":
		return X509Entry, nil
	case "precert_entry", "precert":
		return PrecertEntry, nil
	default:
		return 0, fmt.Errorf("%w: %q", sharedErrors.ErrInvalidEntryType, s)
	}
}

func (t EntryType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", sharedErrors.ErrInvalidEntryType, int(t))
	}
	return []byte(t.String()), nil
}

func (t *EntryType) UnmarshalText(text []byte) error {
	parsed, err := ParseEntryType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// LogEntry is one position of a CT log as handed over by the fetch side.
type LogEntry struct {
	LogIndex  int64     `json:"log_index"`
	DER       []byte    `json:"der"`
	Chain     [][]byte  `json:"chain,omitempty"`
	EntryType EntryType `json:"entry_type"`
}

// ConfigurationError reports caller misuse that makes a whole batch unscannable.
type ConfigurationError struct {
	LogIndex int64
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid batch at log index %d: %v", e.LogIndex, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ValidateBatch rejects duplicate log indices and unknown entry types.
func ValidateBatch(entries []LogEntry) error {
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if !e.EntryType.Valid() {
			return &ConfigurationError{
				LogIndex: e.LogIndex,
				Err:      fmt.Errorf("%w: %d", sharedErrors.ErrInvalidEntryType, int(e.EntryType)),
			}
		}
		if _, dup := seen[e.LogIndex]; dup {
			return &ConfigurationError{LogIndex: e.LogIndex, Err: sharedErrors.ErrDuplicateLogIndex}
		}
		seen[e.LogIndex] = struct{}{}
	}
	return nil
}
