package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector-cli/internal/model"
)

func sampleReport() *model.Report {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	return &model.Report{
		RunID: "run-1",
		Records: []model.Contact{
			{Name: "Pat Lee", Email: "pat@acme.com", Company: "Acme Inc", Position: "CTO", Source: "LinkedIn", ExtractedAt: now, Confidence: 0.9, Verified: true},
			{Name: "Ray Kim", Phone: "555-0102", Source: "Directory:yellowpages.com", ExtractedAt: now, Confidence: 0.6},
		},
		Errors:           []string{"task t9 (website_extract): approval denied"},
		CompletedTaskIDs: []string{"t1", "t2"},
		Metrics: model.Metrics{
			TasksSubmitted:      2,
			Dispatches:          3,
			Retries:             1,
			ValidationDrops:     1,
			DuplicatesCollapsed: 1,
			StateTransitions:    map[string]int{"route": 3, "dispatch": 3},
			Duration:            1500 * time.Millisecond,
			CacheHits:           1,
			CacheMisses:         1,
			CacheHitRate:        0.5,
		},
		StartedAt:  now.Add(-2 * time.Second),
		FinishedAt: now,
	}
}

func TestWriteCSVColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.csv")
	report := sampleReport()
	require.NoError(t, WriteCSV(report.Records, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvColumns, rows[0])
	assert.Equal(t, []string{
		"Pat Lee", "pat@acme.com", "", "Acme Inc", "CTO", "", "", "",
		"LinkedIn", "2025-06-10T12:00:00Z", "0.90", "true",
	}, rows[1])
	assert.Equal(t, "Ray Kim", rows[2][0])
	assert.Equal(t, "0.60", rows[2][10])
	assert.Equal(t, "false", rows[2][11])
}

func TestWriteCSVEmptyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteCSV(nil, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1) // header only
	assert.Equal(t, csvColumns, rows[0])
}

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := sampleReport()
	require.NoError(t, WriteJSON(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got model.Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, report.RunID, got.RunID)
	require.Len(t, got.Records, 2)
	assert.Equal(t, "Pat Lee", got.Records[0].Name)
	assert.Equal(t, 3, got.Metrics.Dispatches)
	assert.Equal(t, report.Errors, got.Errors)
}

func TestParseFormats(t *testing.T) {
	t.Parallel()

	formats, err := ParseFormats("csv, json,CSV")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV, FormatJSON}, formats)

	_, err = ParseFormats("csv,bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "bogus"`)

	_, err = ParseFormats("")
	require.Error(t, err)
}

func TestWriteFilesAllFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	report := sampleReport()

	paths, err := WriteFiles(report, dir, []Format{FormatCSV, FormatJSON, FormatHTML, FormatXLSX})
	require.NoError(t, err)
	require.Len(t, paths, 4)
	assert.Equal(t, filepath.Join(dir, "run-1.csv"), paths[0])

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}
