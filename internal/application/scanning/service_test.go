package scanning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/ctaudit/internal/certdecode"
	"github.com/khanhnv2901/ctaudit/internal/checker"
	"github.com/khanhnv2901/ctaudit/internal/domain/scan"
	"github.com/khanhnv2901/ctaudit/internal/infrastructure/persistence/json"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
	"github.com/khanhnv2901/ctaudit/internal/testutil"
)

func TestService_Scan(t *testing.T) {
	svc, err := NewService(checker.DefaultRegistry(), []string{"compliance"}, 2, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"compliance"}, svc.CheckNames())

	result, err := svc.Scan(context.Background(), []scan.LogEntry{
		{LogIndex: 1, DER: testutil.StrictDER(t)},
		{LogIndex: 2, DER: []byte("asdf"), EntryType: scan.PrecertEntry},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Report.Len())
	assert.Equal(t, 1, result.Stats.Failed)
	assert.Equal(t, certdecode.StrictOK, result.Descriptors[1].Outcome)
	assert.Equal(t, scan.PrecertEntry, result.Descriptors[2].EntryType)
}

func TestService_UnknownCheck(t *testing.T) {
	_, err := NewService(checker.DefaultRegistry(), []string{"ocsp"}, 1, nil, nil)
	assert.ErrorIs(t, err, sharedErrors.ErrUnknownCheck)
}

func TestService_ScanAndSave(t *testing.T) {
	repo, err := json.NewReportRepository(t.TempDir())
	require.NoError(t, err)

	svc, err := NewService(checker.NewRegistry(), nil, 1, repo, nil)
	require.NoError(t, err)

	entries := []scan.LogEntry{{LogIndex: 4, DER: []byte("x")}, {LogIndex: 3, DER: []byte("y")}}
	start, end, ok := IndexRange(entries)
	require.True(t, ok)
	assert.Equal(t, int64(3), start)
	assert.Equal(t, int64(4), end)

	_, err = svc.ScanAndSave(context.Background(), "log_a", start, end, entries)
	require.NoError(t, err)

	reports, err := repo.ListReports(context.Background(), "log_a")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, []int64{4, 3}, reports[0].Report.Indices())

	_, err = svc.ScanAndSave(context.Background(), "log_a", 0, 0, []scan.LogEntry{{LogIndex: 0}, {LogIndex: 0}})
	var cfgErr *scan.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestService_CanceledContext(t *testing.T) {
	svc, err := NewService(checker.NewRegistry(), nil, 1, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Scan(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
