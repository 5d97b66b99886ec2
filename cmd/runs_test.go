//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospector-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:     "abc12345-6789-0000-0000-000000000000",
			Status: model.RunStatusComplete,
			Tasks: []model.Task{
				{Type: model.TaskLinkedInSearch, Target: "linkedin.com"},
				{Type: model.TaskWebsiteExtract, Target: "https://acme.com"},
			},
			Report: &model.Report{
				Records: []model.Contact{{Name: "Pat Lee"}, {Name: "Ray Kim"}},
				Errors:  []string{"task t1 failed"},
			},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusRunning,
			Tasks:     []model.Task{{Type: model.TaskDirectoryScan, Target: "yellowpages.com"}},
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "TASKS")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "def12345")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
}

func TestFormatRunsList_NoReport(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	// Record and error counts show as dashes until a report exists.
	assert.Contains(t, buf.String(), "-")
	assert.Contains(t, buf.String(), "queued")
}

func TestComputeRunStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	runs := []model.Run{
		{
			ID:     "1",
			Status: model.RunStatusComplete,
			Report: &model.Report{
				Records: []model.Contact{{Name: "A"}, {Name: "B"}},
				Metrics: model.Metrics{Retries: 1},
			},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:     "2",
			Status: model.RunStatusComplete,
			Report: &model.Report{
				Records: []model.Contact{{Name: "C"}},
			},
			CreatedAt: now.Add(5 * time.Minute),
			UpdatedAt: now.Add(8 * time.Minute),
		},
		{
			ID:        "3",
			Status:    model.RunStatusFailed,
			CreatedAt: now.Add(10 * time.Minute),
			UpdatedAt: now.Add(10*time.Minute + 30*time.Second),
		},
		{
			ID:        "4",
			Status:    model.RunStatusCancelled,
			CreatedAt: now.Add(15 * time.Minute),
			UpdatedAt: now.Add(15*time.Minute + 10*time.Second),
		},
		{
			ID:        "5",
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(20 * time.Minute),
			UpdatedAt: now.Add(20 * time.Minute),
		},
	}

	stats := computeRunStats(runs)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Complete)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 3, stats.Contacts)
	assert.Equal(t, 1, stats.Retries)
	// Average duration of the 2 complete runs: (120s + 180s) / 2 = 150s.
	assert.InDelta(t, 150.0, stats.AvgDurSecs, 0.1)
}

func TestFormatRunStats(t *testing.T) {
	s := runStats{
		Total:      4,
		Complete:   2,
		Failed:     1,
		Cancelled:  1,
		Contacts:   7,
		Retries:    3,
		AvgDurSecs: 150.0,
	}

	var buf bytes.Buffer
	formatRunStats(&buf, s)

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "Complete:")
	assert.Contains(t, output, "Failed:")
	assert.Contains(t, output, "Cancelled:")
	assert.Contains(t, output, "Contacts:")
	assert.Contains(t, output, "Retries:")
	assert.Contains(t, output, "150.0s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
