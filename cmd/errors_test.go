package cmd

import (
	"errors"
	"os"
	"testing"
)

func TestInputFileError(t *testing.T) {
	err := &InputFileError{Path: "leaf.pem", Err: os.ErrNotExist}
	if err.Error() != "input leaf.pem: file does not exist" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected InputFileError to unwrap to the cause")
	}
}

func TestFindingsError(t *testing.T) {
	tests := []struct {
		err  *FindingsError
		want string
	}{
		{&FindingsError{Observations: 3, Entries: 2}, "3 observations across 2 entries"},
		{&FindingsError{Observations: 1, Entries: 1}, "1 observations on 1 entry"},
		{&FindingsError{Observations: 4}, "4 observations"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestUnsupportedFormatError(t *testing.T) {
	err := validateFormat("xml")
	var formatErr *UnsupportedFormatError
	if !errors.As(err, &formatErr) || formatErr.Format != "xml" {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	for _, ok := range []string{"text", "json", "JSON"} {
		if err := validateFormat(ok); err != nil {
			t.Errorf("validateFormat(%q) = %v", ok, err)
		}
	}
}
