package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/ctaudit/internal/checker"
	"github.com/khanhnv2901/ctaudit/internal/infrastructure/persistence/json"
	sharedErrors "github.com/khanhnv2901/ctaudit/internal/shared/errors"
)

func TestNewContainer_JSONStorage(t *testing.T) {
	c, err := NewContainer(context.Background(), Config{
		ResultsDir:  t.TempDir(),
		Checks:      []string{"compliance", "plugin:caa"},
		Concurrency: 2,
		Plugins:     []checker.ExternalCheckConfig{{Name: "caa", Command: "true"}},
	})
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &json.ReportRepository{}, c.ReportRepo)
	assert.IsType(t, &json.ProgressRepository{}, c.ProgressRepo)
	assert.Equal(t, []string{"compliance", "zlint", "plugin:caa"}, c.Registry.Names())
	assert.Equal(t, []string{"compliance", "plugin:caa"}, c.ScanService.CheckNames())
	assert.NotNil(t, c.ReportService)
	assert.NotNil(t, c.MonitorService(nil))
}

func TestNewContainer_UnknownCheck(t *testing.T) {
	_, err := NewContainer(context.Background(), Config{ResultsDir: t.TempDir(), Checks: []string{"nope"}})
	assert.ErrorIs(t, err, sharedErrors.ErrUnknownCheck)
}

func TestNewContainer_MissingResultsDir(t *testing.T) {
	_, err := NewContainer(context.Background(), Config{})
	assert.Error(t, err)
}
