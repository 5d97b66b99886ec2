// Package validate applies structural checks to extracted contact records.
// Verdicts are memoized in the shared cache so identical candidates are
// validated at most once per day.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/prospector-cli/internal/cache"
	"github.com/sells-group/prospector-cli/internal/model"
)

const (
	memoPrefix = "validate:"
	memoTTL    = 24 * time.Hour
)

// emailPattern accepts the conventional local@domain.tld shape and nothing
// fancier: no whitespace, a single @, at least one dot in the domain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator checks contact records against structural rules.
type Validator struct {
	cache *cache.Cache
}

// New builds a validator memoizing through the shared cache.
func New(store *cache.Cache) *Validator {
	return &Validator{cache: store}
}

// Validate reports whether the record passes all structural rules. The
// verdict is cached under the record's candidate key (email, else phone, else
// name) for 24 hours.
func (v *Validator) Validate(rec model.Contact) bool {
	key := memoKey(rec)
	if cached, ok := v.cache.Get(key); ok {
		if verdict, ok := cached.(bool); ok {
			return verdict
		}
	}

	verdict := check(rec)
	v.cache.Set(key, verdict, memoTTL)
	return verdict
}

// Filter splits records into those passing validation (marked Verified) and
// error strings for structurally malformed ones. Records that merely fail a
// rule are dropped without an error entry; a record with no name at all is
// malformed and reported.
func (v *Validator) Filter(records []model.Contact) ([]model.Contact, []string) {
	valid := make([]model.Contact, 0, len(records))
	var errs []string

	for _, rec := range records {
		if strings.TrimSpace(rec.Name) == "" {
			errs = append(errs, malformedError(rec))
			continue
		}
		if !v.Validate(rec) {
			continue
		}
		rec.Verified = true
		valid = append(valid, rec)
	}
	return valid, errs
}

func check(rec model.Contact) bool {
	if utf8.RuneCountInString(strings.TrimSpace(rec.Name)) < 2 {
		return false
	}
	if rec.Email != "" && !emailPattern.MatchString(rec.Email) {
		return false
	}
	if rec.Phone != "" {
		n := digitCount(rec.Phone)
		if n < 10 || n > 15 {
			return false
		}
	}
	return true
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func memoKey(rec model.Contact) string {
	switch {
	case rec.Email != "":
		return memoPrefix + strings.ToLower(strings.TrimSpace(rec.Email))
	case rec.Phone != "":
		return memoPrefix + strings.TrimSpace(rec.Phone)
	default:
		return memoPrefix + strings.ToLower(strings.TrimSpace(rec.Name))
	}
}

func malformedError(rec model.Contact) string {
	origin := rec.SourceURL
	if origin == "" {
		origin = rec.Source
	}
	if origin == "" {
		origin = "unknown source"
	}
	return fmt.Sprintf("validation: record from %s is missing a name", origin)
}
