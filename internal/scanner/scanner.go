// Package scanner decodes batches of CT log entries, runs the configured
// checks on every certificate it can decode and aggregates the findings into
// a Report keyed by log index.
package scanner

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/checker"
	"github.com/khanhnv2901/ctaudit/internal/domain/observation"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
)

const defaultConcurrency = 4

// CertDescriptor records what the scanner learned about one log entry.
// Certificate is nil when Outcome is certdecode.Failed. It is never handed to a
// check, but callers share it and must treat it as read-only.
type CertDescriptor struct {
	LogIndex    int64                          `json:"log_index"`
	Outcome     certdecode.Outcome             `json:"outcome"`
	Certificate *certdecode.DecodedCertificate `json:"-"`
	EntryType   scan.EntryType                 `json:"entry_type"`
}

// Stats summarises the most recent scan.
type Stats struct {
	Entries       int           `json:"entries"`
	StrictOK      int           `json:"strict_ok"`
	LenientOK     int           `json:"lenient_ok"`
	Failed        int           `json:"failed"`
	Observations  int           `json:"observations"`
	CheckFailures int           `json:"check_failures"`
	Duration      time.Duration `json:"duration"`
}

type Option func(*Scanner)

// WithConcurrency sets the number of decode/check workers. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scanner is safe for concurrent use; Descriptors and Stats reflect the scan
// that finished last.
type Scanner struct {
	checks      []checker.Check
	names       []string
	concurrency int
	logger      *zap.Logger

	mu          sync.RWMutex
	descriptors map[int64]CertDescriptor
	stats       Stats
}

// New creates a scanner that runs checks, in the given order, on every
// decodable certificate.
func New(checks []checker.Check, opts ...Option) *Scanner {
	s := &Scanner{
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
		descriptors: map[int64]CertDescriptor{},
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, chk := range checks {
		if chk == nil {
			s.logger.Warn("ignoring nil check")
			continue
		}
		s.checks = append(s.checks, chk)
		s.names = append(s.names, checkName(chk))
	}
	return s
}

// checkName reads a check's name once; a Name method that panics is reported
// under a placeholder instead of taking down a worker later.
func checkName(chk checker.Check) (name string) {
	defer func() {
		if r := recover(); r != nil {
			name = fmt.Sprintf("%T", chk)
		}
	}()
	return chk.Name()
}

// Checks returns the configured check names in execution order.
func (s *Scanner) Checks() []string {
	return append([]string(nil), s.names...)
}

type job struct {
	pos   int
	entry scan.LogEntry
}

type result struct {
	pos           int
	descriptor    CertDescriptor
	observations  []observation.Observation
	checkFailures int
}

// Scan builds a fresh Report for entries. Every entry gets a key in the
// Report, even when nothing was observed. Only a malformed batch (duplicate
// log index or unknown entry type) returns an error, and then no Report.
func (s *Scanner) Scan(entries []scan.LogEntry) (*scan.Report, error) {
	started := time.Now()
	if err := scan.ValidateBatch(entries); err != nil {
		return nil, err
	}

	workers := s.concurrency
	if workers > len(entries) {
		workers = len(entries)
	}

	jobs := make(chan job, len(entries))
	results := make(chan result, len(entries))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- s.scanEntry(j)
			}
		}()
	}

	for i, e := range entries {
		jobs <- job{pos: i, entry: e}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single aggregator; positions restore input order.
	collected := make([]result, len(entries))
	for r := range results {
		collected[r.pos] = r
	}

	report := scan.NewReport()
	descriptors := make(map[int64]CertDescriptor, len(entries))
	stats := Stats{Entries: len(entries)}
	for _, r := range collected {
		report.Add(r.descriptor.LogIndex, r.observations...)
		descriptors[r.descriptor.LogIndex] = r.descriptor
		stats.Observations += len(r.observations)
		stats.CheckFailures += r.checkFailures
		switch r.descriptor.Outcome {
		case certdecode.StrictOK:
			stats.StrictOK++
		case certdecode.LenientOK:
			stats.LenientOK++
		default:
			stats.Failed++
		}
	}
	stats.Duration = time.Since(started)

	s.mu.Lock()
	s.descriptors = descriptors
	s.stats = stats
	s.mu.Unlock()

	s.logger.Debug("scan complete",
		zap.Int("entries", stats.Entries),
		zap.Int("observations", stats.Observations),
		zap.Int("failed", stats.Failed),
		zap.Int("check_failures", stats.CheckFailures),
		zap.Duration("duration", stats.Duration),
	)

	return report, nil
}

func (s *Scanner) scanEntry(j job) result {
	res := s.resolve(j.entry)
	out := result{
		pos: j.pos,
		descriptor: CertDescriptor{
			LogIndex:    j.entry.LogIndex,
			Outcome:     res.Outcome,
			Certificate: res.Certificate,
			EntryType:   j.entry.EntryType,
		},
		observations: res.Observations(),
	}
	if !res.Outcome.Decoded() {
		return out
	}

	for i, chk := range s.checks {
		// Each check gets its own copy so one check cannot change what the
		// next check or the descriptor table sees.
		found, err := checker.Run(chk, res.Certificate.Clone())
		if err != nil {
			s.logger.Warn("check failed",
				zap.String("check", s.names[i]),
				zap.Int64("log_index", j.entry.LogIndex),
				zap.Error(err),
			)
			out.observations = append(out.observations, observation.CheckFailure(s.names[i], err))
			out.checkFailures++
			continue
		}
		out.observations = append(out.observations, found...)
	}
	return out
}

func (s *Scanner) resolve(e scan.LogEntry) certdecode.Resolution {
	res := certdecode.Resolve(e.DER, e.EntryType)
	if res.Outcome == certdecode.LenientOK {
		s.logger.Debug("strict decode failed",
			zap.Int64("log_index", e.LogIndex),
			zap.NamedError("strict_error", res.StrictErr),
		)
	}
	return res
}

// Descriptors returns a copy of the descriptor table from the latest scan.
func (s *Scanner) Descriptors() map[int64]CertDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]CertDescriptor, len(s.descriptors))
	for k, v := range s.descriptors {
		out[k] = v
	}
	return out
}

// Descriptor returns the descriptor for one log index of the latest scan.
func (s *Scanner) Descriptor(logIndex int64) (CertDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[logIndex]
	return d, ok
}

// Stats returns the statistics of the latest scan.
func (s *Scanner) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
