package scan

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

func TestEntryType_ParseAndString(t *testing.T) {
	tests := []struct {
		in   string
		want EntryType
	}{
		{"x509_entry", X509Entry},
		{"X509", X509Entry},
		{" precert_entry ", PrecertEntry},
		{"precert", PrecertEntry},
	}
	for _, tt := range tests {
		got, err := ParseEntryType(tt.in)
		if err != nil {
			t.Fatalf("ParseEntryType(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseEntryType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseEntryType("tiled"); !errors.Is(err, sharedErrors.ErrInvalidEntryType) {
		t.Errorf("expected ErrInvalidEntryType, got %v", err)
	}
	if EntryType(5).Valid() {
		t.Error("EntryType(5) should be invalid")
	}
	if _, err := EntryType(5).MarshalText(); err == nil {
		t.Error("expected marshal error for invalid entry type")
	}
}

func TestLogEntry_JSON(t *testing.T) {
	e := LogEntry{LogIndex: 42, DER: []byte{0x30, 0x01}, EntryType: PrecertEntry}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"log_index":42,"der":"MAE=","entry_type":"precert_entry"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestValidateBatch(t *testing.T) {
	ok := []LogEntry{{LogIndex: 1}, {LogIndex: 2, EntryType: PrecertEntry}}
	if err := ValidateBatch(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateBatch(nil); err != nil {
		t.Fatalf("empty batch should validate: %v", err)
	}

	err := ValidateBatch([]LogEntry{{LogIndex: 1}, {LogIndex: 2}, {LogIndex: 1}})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if cfgErr.LogIndex != 1 || !errors.Is(err, sharedErrors.ErrDuplicateLogIndex) {
		t.Errorf("unexpected error %v", err)
	}

	err = ValidateBatch([]LogEntry{{LogIndex: 8, EntryType: EntryType(-1)}})
	if !errors.Is(err, sharedErrors.ErrInvalidEntryType) {
		t.Errorf("expected ErrInvalidEntryType, got %v", err)
	}
}

func TestReport_AddRegistersEmptyIndex(t *testing.T) {
	r := NewReport()
	r.Add(9)
	r.Add(3, observation.All())
	r.Add(9, observation.Strict("late"))

	if got := r.Indices(); len(got) != 2 || got[0] != 9 || got[1] != 3 {
		t.Errorf("unexpected index order %v", got)
	}
	obs, ok := r.Observations(9)
	if !ok || len(obs) != 1 {
		t.Errorf("expected one observation for 9, got %v", obs)
	}
	if _, ok := r.Observations(100); ok {
		t.Error("unknown index should not be present")
	}
	if r.Len() != 2 || r.Total() != 2 {
		t.Errorf("Len/Total = %d/%d", r.Len(), r.Total())
	}
}

func TestReport_ObservationsAreCopies(t *testing.T) {
	r := NewReport()
	r.Add(1, observation.Strict("a"))
	obs, _ := r.Observations(1)
	obs[0] = observation.All()

	again, _ := r.Observations(1)
	if again[0] != observation.Strict("a") {
		t.Error("report was mutated through returned slice")
	}
}

func TestReport_JSON(t *testing.T) {
	r := NewReport()
	r.Add(5)
	r.Add(2, observation.StrictWithDetail("certificate failed strict decoding", "bad IP"), observation.New("zlint", "e_x"))

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.Equal(&decoded) {
		t.Errorf("decoded report differs: %s", data)
	}

	if err := json.Unmarshal([]byte(`[{"log_index":1,"observations":[]},{"log_index":1,"observations":[]}]`), &decoded); err == nil {
		t.Error("expected duplicate index error")
	}
}

func TestReport_Equal(t *testing.T) {
	a, b := NewReport(), NewReport()
	a.Add(1, observation.All())
	b.Add(1, observation.All())
	if !a.Equal(b) {
		t.Error("expected equal reports")
	}
	b.Add(2)
	if a.Equal(b) {
		t.Error("expected different reports")
	}
	var nilReport *Report
	if nilReport.Equal(a) || !nilReport.Equal(nil) {
		t.Error("nil comparison mismatch")
	}
}

func TestLogIDFromURL(t *testing.T) {
	tests := map[string]string{
		"https://ct.example.com/logs/2025h1/": "ct.example.com_logs_2025h1",
		"http://localhost:8080":               "localhost_8080",
		" HTTPS://Oak.CT.example/2026 ":       "oak.ct.example_2026",
	}
	for in, want := range tests {
		got := LogIDFromURL(in)
		if got != want {
			t.Errorf("LogIDFromURL(%q) = %q, want %q", in, got, want)
		}
		if err := ValidateLogID(got); err != nil {
			t.Errorf("derived ID %q should validate: %v", got, err)
		}
	}

	for _, bad := range []string{"", "  ", "..", "a/b", `a\b`, "x..y"} {
		if err := ValidateLogID(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
	if err := ValidateLogID(""); !errors.Is(err, sharedErrors.ErrEmptyLogID) {
		t.Errorf("expected ErrEmptyLogID, got %v", err)
	}
}
