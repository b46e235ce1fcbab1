// Package ctlog fetches entries from an RFC 6962 Certificate Transparency log
// and converts them into scan.LogEntry batches.
package ctlog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/client"
	"github.com/google/certificate-transparency-go/jsonclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

const userAgent = "ctaudit"

// Config controls how a Fetcher talks to a log.
type Config struct {
	URL string
	// RateLimit is the maximum number of requests per second; 0 disables limiting.
	RateLimit float64
	Timeout   time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Fetcher reads tree heads and entries from one log.
type Fetcher struct {
	url     string
	client  *client.LogClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewFetcher(cfg Config) (*Fetcher, error) {
	url := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if url == "" {
		return nil, fmt.Errorf("%w: log url", sharedErrors.ErrMissingRequired)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	lc, err := client.New(url, hc, jsonclient.Options{UserAgent: userAgent})
	if err != nil {
		return nil, fmt.Errorf("create log client for %s: %w", url, err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		url:     url,
		client:  lc,
		limiter: limiter,
		logger:  logger.With(zap.String("log", url)),
	}, nil
}

// URL returns the normalised log URL.
func (f *Fetcher) URL() string {
	return f.url
}

// TreeSize returns the size of the log's latest signed tree head.
func (f *Fetcher) TreeSize(ctx context.Context) (int64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	sth, err := f.client.GetSTH(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: get-sth: %v", sharedErrors.ErrLogUnavailable, err)
	}
	return int64(sth.TreeSize), nil
}

// FetchBatch returns the entries in the inclusive range [start, end]. Logs may
// answer get-entries with fewer entries than requested, in which case the
// remainder is requested again from the next index.
func (f *Fetcher) FetchBatch(ctx context.Context, start, end int64) ([]scan.LogEntry, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: [%d, %d]", sharedErrors.ErrInvalidRange, start, end)
	}

	entries := make([]scan.LogEntry, 0, end-start+1)
	next := start
	for next <= end {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := f.client.GetRawEntries(ctx, next, end)
		if err != nil {
			return nil, fmt.Errorf("%w: get-entries [%d, %d]: %v", sharedErrors.ErrLogUnavailable, next, end, err)
		}
		if len(resp.Entries) == 0 {
			return nil, fmt.Errorf("%w: get-entries [%d, %d] returned no entries", sharedErrors.ErrLogUnavailable, next, end)
		}

		for i := range resp.Entries {
			if next > end {
				break
			}
			entries = append(entries, f.convert(next, &resp.Entries[i]))
			next++
		}

		f.logger.Debug("fetched entries",
			zap.Int64("start", start),
			zap.Int64("next", next),
			zap.Int64("end", end),
		)
	}
	return entries, nil
}

// convert maps a leaf onto a LogEntry. A leaf that cannot be parsed keeps its
// index with empty DER, so the scanner reports it rather than losing it.
func (f *Fetcher) convert(index int64, leaf *ct.LeafEntry) scan.LogEntry {
	entry := scan.LogEntry{LogIndex: index, EntryType: scan.X509Entry}

	raw, err := ct.RawLogEntryFromLeaf(index, leaf)
	if err != nil || raw == nil {
		f.logger.Warn("unparseable leaf", zap.Int64("log_index", index), zap.Error(err))
		return entry
	}

	if raw.Leaf.TimestampedEntry != nil && raw.Leaf.TimestampedEntry.EntryType == ct.PrecertLogEntryType {
		entry.EntryType = scan.PrecertEntry
	}
	entry.DER = raw.Cert.Data
	for _, c := range raw.Chain {
		entry.Chain = append(entry.Chain, c.Data)
	}
	return entry
}
