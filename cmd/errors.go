package cmd

import "fmt"

// InputFileError indicates a scan input that could not be read or parsed.
type InputFileError struct {
	Path string
	Err  error
}

func (e *InputFileError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Path, e.Err)
}

func (e *InputFileError) Unwrap() error {
	return e.Err
}

// FindingsError signals that --fail-on-findings was set and the scan produced observations.
type FindingsError struct {
	Observations int
	Entries      int
}

func (e *FindingsError) Error() string {
	switch {
	case e.Entries == 1:
		return fmt.Sprintf("%d observations on 1 entry", e.Observations)
	case e.Entries > 1:
		return fmt.Sprintf("%d observations across %d entries", e.Observations, e.Entries)
	}
	return fmt.Sprintf("%d observations", e.Observations)
}

// UnsupportedFormatError reports an unknown --format value.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported output format %q (use text or json)", e.Format)
}
