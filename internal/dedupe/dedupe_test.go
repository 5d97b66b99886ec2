package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector-cli/internal/model"
)

func TestIdentityKeyPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  model.Contact
		want string
	}{
		{
			"email wins",
			model.Contact{Name: "Jane Doe", Email: "Jane@Acme.COM", Phone: "5550102030", Company: "Acme"},
			"jane@acme.com",
		},
		{
			"phone when no email",
			model.Contact{Name: "Jane Doe", Phone: "(555) 010-2030", Company: "Acme"},
			"5550102030",
		},
		{
			"name and company fallback",
			model.Contact{Name: "Jane Doe", Company: "Acme Plumbing"},
			"jane doe-acme plumbing",
		},
		{
			"diacritics and case folded",
			model.Contact{Name: "José  GARCÍA", Company: "Señor Söft"},
			"jose garcia-senor soft",
		},
		{
			"digit-free phone falls through to name",
			model.Contact{Name: "Jane Doe", Phone: "ext.", Company: "Acme"},
			"jane doe-acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IdentityKey(tt.rec))
		})
	}
}

func TestMergeHigherConfidenceWins(t *testing.T) {
	t.Parallel()

	records := []model.Contact{
		{Name: "Jane Doe", Email: "jane@acme.com", Source: "Directory:yp", Confidence: 0.4},
		{Name: "Jane Doe", Email: "jane@acme.com", Source: "LinkedIn", Confidence: 0.9},
	}

	merged := Merge(records)
	require.Len(t, merged, 1)
	assert.Equal(t, 0.9, merged[0].Confidence)
	assert.Equal(t, "LinkedIn", merged[0].Source)
}

func TestMergeTieKeepsEarlier(t *testing.T) {
	t.Parallel()

	records := []model.Contact{
		{Name: "Jane Doe", Email: "jane@acme.com", Source: "first", Confidence: 0.7},
		{Name: "Jane Doe", Email: "jane@acme.com", Source: "second", Confidence: 0.7},
	}

	merged := Merge(records)
	require.Len(t, merged, 1)
	assert.Equal(t, "first", merged[0].Source)
}

func TestMergeReplacesInOriginalPosition(t *testing.T) {
	t.Parallel()

	records := []model.Contact{
		{Name: "Ann Lee", Email: "ann@a.com", Confidence: 0.8},
		{Name: "Jane Doe", Email: "jane@acme.com", Confidence: 0.8},
		{Name: "Jane Doe", Email: "jane@acme.com", Confidence: 0.95},
	}

	merged := Merge(records)
	require.Len(t, merged, 2)
	// The upgraded duplicate sorts first on confidence, ahead of Ann.
	assert.Equal(t, "jane@acme.com", merged[0].Email)
	assert.Equal(t, 0.95, merged[0].Confidence)
}

func TestMergeSortsDescendingByConfidence(t *testing.T) {
	t.Parallel()

	records := []model.Contact{
		{Name: "Low Person", Email: "low@x.com", Confidence: 0.2},
		{Name: "High Person", Email: "high@x.com", Confidence: 0.9},
		{Name: "Mid Person", Email: "mid@x.com", Confidence: 0.5},
	}

	merged := Merge(records)
	require.Len(t, merged, 3)
	assert.Equal(t, "high@x.com", merged[0].Email)
	assert.Equal(t, "mid@x.com", merged[1].Email)
	assert.Equal(t, "low@x.com", merged[2].Email)
}

func TestMergeSortIsStable(t *testing.T) {
	t.Parallel()

	records := []model.Contact{
		{Name: "Person A", Email: "a@x.com", Confidence: 0.5},
		{Name: "Person B", Email: "b@x.com", Confidence: 0.5},
	}

	merged := Merge(records)
	require.Len(t, merged, 2)
	assert.Equal(t, "a@x.com", merged[0].Email)
	assert.Equal(t, "b@x.com", merged[1].Email)
}

func TestMergeIdempotent(t *testing.T) {
	t.Parallel()

	records := []model.Contact{
		{Name: "Jane Doe", Email: "jane@acme.com", Confidence: 0.4},
		{Name: "Jane Doe", Email: "jane@acme.com", Confidence: 0.9},
		{Name: "John Roe", Phone: "5550102031", Confidence: 0.6},
		{Name: "Ann Lee", Company: "Acme", Confidence: 0.6},
	}

	once := Merge(records)
	twice := Merge(once)
	assert.Equal(t, once, twice)
}

func TestMergeCrossSourceEmailCollision(t *testing.T) {
	t.Parallel()

	// Three sources, two records each, one email shared across sources.
	records := []model.Contact{
		{Name: "L One", Email: "l1@x.com", Source: "LinkedIn", Confidence: 0.85},
		{Name: "Shared Person", Email: "shared@x.com", Source: "LinkedIn", Confidence: 0.85},
		{Name: "D One", Email: "d1@x.com", Source: "Directory:yp", Confidence: 0.65},
		{Name: "Shared Person", Email: "shared@x.com", Source: "Directory:yp", Confidence: 0.65},
		{Name: "W One", Email: "w1@x.com", Source: "Website:acme.com", Confidence: 0.7},
		{Name: "W Two", Email: "w2@x.com", Source: "Website:acme.com", Confidence: 0.7},
	}

	merged := Merge(records)
	require.Len(t, merged, 5)

	var shared *model.Contact
	for i := range merged {
		if merged[i].Email == "shared@x.com" {
			shared = &merged[i]
		}
	}
	require.NotNil(t, shared)
	assert.Equal(t, "LinkedIn", shared.Source, "higher-confidence member survives")

	for i := 1; i < len(merged); i++ {
		assert.GreaterOrEqual(t, merged[i-1].Confidence, merged[i].Confidence)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Merge(nil))
	assert.Empty(t, Merge([]model.Contact{}))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  Jane   Doe ", "jane doe"},
		{"JOSÉ", "jose"},
		{"", ""},
		{"Straße", "strasse"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
