// Package dedupe collapses duplicate contact records and orders the final
// list by confidence. Identity is email first, phone second, then the
// normalized name and company pair.
package dedupe

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/prospector-cli/internal/model"
)

// IdentityKey computes the duplicate-detection key for a record: lowercased
// email when present, else the phone's digits, else normalized name and
// company joined by a dash.
func IdentityKey(rec model.Contact) string {
	if email := strings.TrimSpace(rec.Email); email != "" {
		return strings.ToLower(email)
	}
	if digits := digitsOnly(rec.Phone); digits != "" {
		return digits
	}
	return Normalize(rec.Name) + "-" + Normalize(rec.Company)
}

// Merge deduplicates records by identity key, keeping the higher-confidence
// member of each duplicate pair in the position where the key first appeared
// (ties keep the earlier record). The surviving records are then stably
// sorted by confidence descending. Idempotent.
func Merge(records []model.Contact) []model.Contact {
	out := make([]model.Contact, 0, len(records))
	index := make(map[string]int, len(records))

	for _, rec := range records {
		key := IdentityKey(rec)
		if at, seen := index[key]; seen {
			if rec.Confidence > out[at].Confidence {
				out[at] = rec
			}
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Normalize casefolds, strips diacritics, and collapses interior whitespace
// so that "José  GARCÍA" and "jose garcia" share an identity.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripper, s); err == nil {
		s = out
	}
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
