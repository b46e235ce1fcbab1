package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	"github.com/khanhnv2901/ctaudit/internal/scanner"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

const (
	defaultMaxBatchSize = 1024
	maxScanBodyBytes    = 32 << 20
)

// ScanRequest is the body of POST /api/v1/scan. DER is base64 in JSON.
type ScanRequest struct {
	Entries []scan.LogEntry `json:"entries"`
}

type ScanResponse struct {
	Report      *scan.Report             `json:"report"`
	Descriptors []scanner.CertDescriptor `json:"descriptors"`
	Stats       scanner.Stats            `json:"stats"`
}

type EntryResponse struct {
	LogID        string                    `json:"log_id"`
	LogIndex     int64                     `json:"log_index"`
	Observations []observation.Observation `json:"observations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Check(r.Context()); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Reports == nil {
		s.writeError(w, r, http.StatusNotImplemented, errors.New("reports are not available"))
		return
	}
	p, err := s.cfg.Reports.Progress(r.Context(), chi.URLParam(r, "logID"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Reports == nil {
		s.writeError(w, r, http.StatusNotImplemented, errors.New("reports are not available"))
		return
	}
	reports, err := s.cfg.Reports.Reports(r.Context(), chi.URLParam(r, "logID"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Reports == nil {
		s.writeError(w, r, http.StatusNotImplemented, errors.New("reports are not available"))
		return
	}
	logID := chi.URLParam(r, "logID")
	index, err := strconv.ParseInt(chi.URLParam(r, "index"), 10, 64)
	if err != nil || index < 0 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid log index %q", chi.URLParam(r, "index")))
		return
	}

	obs, err := s.cfg.Reports.Observations(r.Context(), logID, index)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{LogID: logID, LogIndex: index, Observations: obs})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scans == nil {
		s.writeError(w, r, http.StatusNotImplemented, errors.New("scanning is not available"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxScanBodyBytes)
	var req ScanRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Entries) == 0 {
		s.writeError(w, r, http.StatusBadRequest, sharedErrors.ErrEmptyBatch)
		return
	}
	if len(req.Entries) > s.cfg.MaxBatchSize {
		s.writeError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Errorf("batch of %d entries exceeds limit of %d", len(req.Entries), s.cfg.MaxBatchSize))
		return
	}

	result, err := s.cfg.Scans.Scan(r.Context(), req.Entries)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	descriptors := make([]scanner.CertDescriptor, 0, len(result.Descriptors))
	for _, d := range result.Descriptors {
		descriptors = append(descriptors, d)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].LogIndex < descriptors[j].LogIndex })

	writeJSON(w, http.StatusOK, ScanResponse{
		Report:      result.Report,
		Descriptors: descriptors,
		Stats:       result.Stats,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var cfgErr *scan.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, sharedErrors.ErrProgressNotFound), errors.Is(err, sharedErrors.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, sharedErrors.ErrEmptyLogID),
		errors.Is(err, sharedErrors.ErrValidation),
		errors.Is(err, sharedErrors.ErrInvalidInput),
		errors.Is(err, sharedErrors.ErrInvalidRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
