package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReportFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	asOf := time.Date(2026, 8, 1, 17, 30, 0, 0, time.Local)

	path, err := WriteReportFile(dir, ReportPrefixBatch, "# daily\n", asOf)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_20260801.md"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# daily\n", string(got))
}

func TestWriteReportFile_OverwritesSameDay(t *testing.T) {
	dir := t.TempDir()
	asOf := time.Date(2026, 8, 1, 9, 0, 0, 0, time.Local)

	_, err := WriteReportFile(dir, ReportPrefixMarketReview, "draft", asOf)
	require.NoError(t, err)
	path, err := WriteReportFile(dir, ReportPrefixMarketReview, "final", asOf)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "final", string(got))
	assert.Equal(t, filepath.Join(dir, "market_review_20260801.md"), path)
}
