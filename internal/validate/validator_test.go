package validate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector-cli/internal/cache"
	"github.com/sells-group/prospector-cli/internal/model"
)

func newTestValidator() (*Validator, *cache.Cache) {
	store := cache.New(time.Hour)
	return New(store), store
}

func TestValidateRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  model.Contact
		want bool
	}{
		{"name only", model.Contact{Name: "Jane Doe"}, true},
		{"name too short", model.Contact{Name: "J"}, false},
		{"name whitespace padded short", model.Contact{Name: "  J  "}, false},
		{"two rune name", model.Contact{Name: "Jo"}, true},
		{"missing name", model.Contact{Email: "jane@acme.com"}, false},
		{"good email", model.Contact{Name: "Jane Doe", Email: "jane@acme.com"}, true},
		{"email no tld dot", model.Contact{Name: "Jane Doe", Email: "jane@acme"}, false},
		{"email double at", model.Contact{Name: "Jane Doe", Email: "jane@@acme.com"}, false},
		{"email embedded space", model.Contact{Name: "Jane Doe", Email: "jane doe@acme.com"}, false},
		{"email missing local", model.Contact{Name: "Jane Doe", Email: "@acme.com"}, false},
		{"good phone", model.Contact{Name: "Jane Doe", Phone: "(555) 010-2030"}, true},
		{"phone ten digits", model.Contact{Name: "Jane Doe", Phone: "5550102030"}, true},
		{"phone fifteen digits", model.Contact{Name: "Jane Doe", Phone: "123456789012345"}, true},
		{"phone too short", model.Contact{Name: "Jane Doe", Phone: "555-0102"}, false},
		{"phone too long", model.Contact{Name: "Jane Doe", Phone: "1234567890123456"}, false},
		{"bad email good phone", model.Contact{Name: "Jane Doe", Email: "nope", Phone: "5550102030"}, false},
		{"international phone", model.Contact{Name: "Jane Doe", Phone: "+1 555 010 2030"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, _ := newTestValidator()
			assert.Equal(t, tt.want, v.Validate(tt.rec))
		})
	}
}

func TestValidateMemoized(t *testing.T) {
	t.Parallel()

	v, store := newTestValidator()
	rec := model.Contact{Name: "Jane Doe", Email: "jane@acme.com"}

	before := store.Stats().Sets
	assert.True(t, v.Validate(rec))
	assert.True(t, v.Validate(rec))
	assert.True(t, v.Validate(rec))
	assert.Equal(t, before+1, store.Stats().Sets, "verdict computed once")
}

func TestValidateDeterministicWithinWindow(t *testing.T) {
	t.Parallel()

	v, _ := newTestValidator()
	rec := model.Contact{Name: "Jane Doe", Email: "jane@acme.com", Phone: "5550102030"}

	first := v.Validate(rec)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, v.Validate(rec))
	}
}

func TestFilterMarksVerified(t *testing.T) {
	t.Parallel()

	v, _ := newTestValidator()
	records := []model.Contact{
		{Name: "Jane Doe", Email: "jane@acme.com", Confidence: 0.8},
		{Name: "John Roe", Phone: "5550102031", Confidence: 0.6},
	}

	valid, errs := v.Filter(records)
	require.Len(t, valid, 2)
	assert.Empty(t, errs)
	for _, rec := range valid {
		assert.True(t, rec.Verified)
	}
	assert.False(t, records[0].Verified, "input slice untouched")
}

func TestFilterDropsFailingSilently(t *testing.T) {
	t.Parallel()

	v, _ := newTestValidator()
	records := []model.Contact{
		{Name: "Jane Doe", Email: "jane@acme.com"},
		{Name: "X"},                                  // name too short
		{Name: "John Roe", Email: "not-an-email"},    // bad email
		{Name: "Ann Lee", Phone: "12345"},            // bad phone
	}

	valid, errs := v.Filter(records)
	assert.Len(t, valid, 1)
	assert.Empty(t, errs, "rule failures drop without error strings")
}

func TestFilterReportsMalformed(t *testing.T) {
	t.Parallel()

	v, _ := newTestValidator()
	records := []model.Contact{
		{Name: "", Email: "ghost@acme.com", SourceURL: "https://acme.com/team"},
		{Name: "   ", Source: "Directory:yellowpages"},
	}

	valid, errs := v.Filter(records)
	assert.Empty(t, valid)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "https://acme.com/team")
	assert.Contains(t, errs[1], "Directory:yellowpages")
}

func TestFilterIdempotent(t *testing.T) {
	t.Parallel()

	v, _ := newTestValidator()
	records := []model.Contact{
		{Name: "Jane Doe", Email: "jane@acme.com"},
		{Name: "John Roe", Phone: "5550102031"},
	}

	once, errs1 := v.Filter(records)
	twice, errs2 := v.Filter(once)
	assert.Equal(t, once, twice)
	assert.Empty(t, errs1)
	assert.Empty(t, errs2)
}

func TestFilterManyUniqueRecords(t *testing.T) {
	t.Parallel()

	v, _ := newTestValidator()
	var records []model.Contact
	for i := 0; i < 50; i++ {
		records = append(records, model.Contact{
			Name:  fmt.Sprintf("Person %02d", i),
			Email: fmt.Sprintf("person%02d@acme.com", i),
		})
	}

	valid, errs := v.Filter(records)
	assert.Len(t, valid, 50)
	assert.Empty(t, errs)
}
