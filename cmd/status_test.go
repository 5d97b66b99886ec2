//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospector-cli/internal/monitoring"
)

func TestFormatSnapshot(t *testing.T) {
	snap := &monitoring.Snapshot{
		RunsTotal:           8,
		RunsComplete:        5,
		RunsFailed:          2,
		RunsCancelled:       1,
		RunFailRate:         0.25,
		ContactsExtracted:   40,
		ContactsTotal:       1200,
		AvgConfidence:       0.85,
		DuplicatesCollapsed: 3,
		LookbackHours:       24,
		CollectedAt:         time.Now().UTC(),
	}

	var buf bytes.Buffer
	formatSnapshot(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "last 24h")
	assert.Contains(t, output, "Runs:")
	assert.Contains(t, output, "Complete:")
	assert.Contains(t, output, "Failure rate:")
	assert.Contains(t, output, "25.0%")
	assert.Contains(t, output, "Avg confidence:")
	assert.Contains(t, output, "0.85")
	assert.Contains(t, output, "Duplicates collapsed:")
}

func TestFormatSnapshot_NoContacts(t *testing.T) {
	snap := &monitoring.Snapshot{LookbackHours: 24}

	var buf bytes.Buffer
	formatSnapshot(&buf, snap)

	// Confidence line is suppressed when nothing was extracted.
	assert.NotContains(t, buf.String(), "Avg confidence:")
}
