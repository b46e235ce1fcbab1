package ctlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"

	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

// fakeLog serves get-sth and get-entries for a fixed slice of leaves,
// returning at most pageSize entries per request.
type fakeLog struct {
	leaves   []ct.LeafEntry
	pageSize int
	requests atomic.Int32
}

func (l *fakeLog) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ct/v1/get-sth", func(w http.ResponseWriter, r *http.Request) {
		sig, err := tls.Marshal(ct.DigitallySigned{
			Algorithm: tls.SignatureAndHashAlgorithm{Hash: tls.SHA256, Signature: tls.ECDSA},
			Signature: []byte{0x01},
		})
		if err != nil {
			t.Errorf("marshal signature: %v", err)
		}
		writeJSON(t, w, ct.GetSTHResponse{
			TreeSize:          uint64(len(l.leaves)),
			Timestamp:         1700000000000,
			SHA256RootHash:    bytes.Repeat([]byte{0xab}, 32),
			TreeHeadSignature: sig,
		})
	})
	mux.HandleFunc("/ct/v1/get-entries", func(w http.ResponseWriter, r *http.Request) {
		l.requests.Add(1)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		end, _ := strconv.Atoi(r.URL.Query().Get("end"))
		if end >= len(l.leaves) {
			end = len(l.leaves) - 1
		}
		if l.pageSize > 0 && end-start+1 > l.pageSize {
			end = start + l.pageSize - 1
		}
		if start > end {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		writeJSON(t, w, ct.GetEntriesResponse{Entries: l.leaves[start : end+1]})
	})
	return mux
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func x509Leaf(t *testing.T, der []byte) ct.LeafEntry {
	t.Helper()
	leaf, err := tls.Marshal(ct.MerkleTreeLeaf{
		Version:  ct.V1,
		LeafType: ct.TimestampedEntryLeafType,
		TimestampedEntry: &ct.TimestampedEntry{
			Timestamp: 1700000000000,
			EntryType: ct.X509LogEntryType,
			X509Entry: &ct.ASN1Cert{Data: der},
		},
	})
	if err != nil {
		t.Fatalf("marshal leaf: %v", err)
	}
	extra, err := tls.Marshal(ct.CertificateChain{Entries: []ct.ASN1Cert{{Data: []byte("issuer")}}})
	if err != nil {
		t.Fatalf("marshal chain: %v", err)
	}
	return ct.LeafEntry{LeafInput: leaf, ExtraData: extra}
}

func precertLeaf(t *testing.T, precert []byte) ct.LeafEntry {
	t.Helper()
	leaf, err := tls.Marshal(ct.MerkleTreeLeaf{
		Version:  ct.V1,
		LeafType: ct.TimestampedEntryLeafType,
		TimestampedEntry: &ct.TimestampedEntry{
			Timestamp: 1700000000000,
			EntryType: ct.PrecertLogEntryType,
			PrecertEntry: &ct.PreCert{
				TBSCertificate: []byte("tbs"),
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal leaf: %v", err)
	}
	extra, err := tls.Marshal(ct.PrecertChainEntry{
		PreCertificate:   ct.ASN1Cert{Data: precert},
		CertificateChain: []ct.ASN1Cert{{Data: []byte("issuer")}},
	})
	if err != nil {
		t.Fatalf("marshal precert chain: %v", err)
	}
	return ct.LeafEntry{LeafInput: leaf, ExtraData: extra}
}

func newTestFetcher(t *testing.T, log *fakeLog) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(log.handler(t))
	t.Cleanup(srv.Close)

	f, err := NewFetcher(Config{URL: srv.URL + "/", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func TestFetcher_TreeSize(t *testing.T) {
	log := &fakeLog{leaves: []ct.LeafEntry{x509Leaf(t, []byte("a")), x509Leaf(t, []byte("b"))}}
	f := newTestFetcher(t, log)

	size, err := f.TreeSize(context.Background())
	if err != nil {
		t.Fatalf("TreeSize: %v", err)
	}
	if size != 2 {
		t.Errorf("expected tree size 2, got %d", size)
	}
}

func TestFetcher_FetchBatchConvertsEntries(t *testing.T) {
	log := &fakeLog{leaves: []ct.LeafEntry{
		x509Leaf(t, []byte("cert-0")),
		precertLeaf(t, []byte("precert-1")),
		{LeafInput: []byte("garbage"), ExtraData: nil},
	}}
	f := newTestFetcher(t, log)

	entries, err := f.FetchBatch(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].EntryType != scan.X509Entry || string(entries[0].DER) != "cert-0" {
		t.Errorf("unexpected x509 entry %+v", entries[0])
	}
	if len(entries[0].Chain) != 1 || string(entries[0].Chain[0]) != "issuer" {
		t.Errorf("unexpected chain %q", entries[0].Chain)
	}
	if entries[1].EntryType != scan.PrecertEntry || string(entries[1].DER) != "precert-1" {
		t.Errorf("unexpected precert entry %+v", entries[1])
	}
	if entries[2].LogIndex != 2 || len(entries[2].DER) != 0 {
		t.Errorf("unparseable leaf should keep its index with empty DER, got %+v", entries[2])
	}
}

func TestFetcher_FetchBatchFollowsShortResponses(t *testing.T) {
	leaves := make([]ct.LeafEntry, 0, 7)
	for i := 0; i < 7; i++ {
		leaves = append(leaves, x509Leaf(t, []byte{byte(i)}))
	}
	log := &fakeLog{leaves: leaves, pageSize: 2}
	f := newTestFetcher(t, log)

	entries, err := f.FetchBatch(context.Background(), 1, 6)
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.LogIndex != int64(i+1) || e.DER[0] != byte(i+1) {
			t.Errorf("entry %d: unexpected %+v", i, e)
		}
	}
	if got := log.requests.Load(); got != 3 {
		t.Errorf("expected 3 get-entries requests, got %d", got)
	}
}

func TestFetcher_Errors(t *testing.T) {
	if _, err := NewFetcher(Config{URL: "  "}); !errors.Is(err, sharedErrors.ErrMissingRequired) {
		t.Errorf("expected missing url error, got %v", err)
	}

	log := &fakeLog{leaves: []ct.LeafEntry{x509Leaf(t, []byte("a"))}}
	f := newTestFetcher(t, log)

	if _, err := f.FetchBatch(context.Background(), 3, 1); !errors.Is(err, sharedErrors.ErrInvalidRange) {
		t.Errorf("expected invalid range error, got %v", err)
	}
	if _, err := f.FetchBatch(context.Background(), 5, 6); !errors.Is(err, sharedErrors.ErrLogUnavailable) {
		t.Errorf("expected log unavailable error, got %v", err)
	}
}
