package errors

import "errors"

// Domain errors
var (
	// Scan configuration errors
	ErrDuplicateLogIndex = errors.New("duplicate log index in batch")
	ErrInvalidEntryType  = errors.New("invalid entry type")
	ErrEmptyBatch        = errors.New("batch cannot be empty")

	// Decode errors
	ErrNotCertificate  = errors.New("input is not a parseable certificate")
	ErrStrictViolation = errors.New("certificate violates strict encoding rules")

	// Check errors
	ErrCheckFailed    = errors.New("check failed")
	ErrCheckPanicked  = errors.New("check panicked")
	ErrDuplicateCheck = errors.New("check already registered")
	ErrUnknownCheck   = errors.New("unknown check")
	ErrNilCheck       = errors.New("check cannot be nil")

	// Log errors
	ErrEmptyLogID     = errors.New("log ID cannot be empty")
	ErrInvalidRange   = errors.New("invalid entry range")
	ErrLogUnavailable = errors.New("log unavailable")

	// Repository errors
	ErrReportNotFound        = errors.New("report not found")
	ErrProgressNotFound      = errors.New("scan progress not found")
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)
