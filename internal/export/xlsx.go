package export

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospector-cli/internal/model"
)

// WriteXLSX writes the report as a workbook: a Contacts sheet in csvColumns
// order and a Metrics sheet of key/value rows.
func WriteXLSX(report *model.Report, path string) error {
	f := xlsx.NewFile()

	contacts, err := f.AddSheet("Contacts")
	if err != nil {
		return eris.Wrap(err, "export: add contacts sheet")
	}
	header := contacts.AddRow()
	for _, col := range csvColumns {
		header.AddCell().SetString(col)
	}
	for _, c := range report.Records {
		row := contacts.AddRow()
		row.AddCell().SetString(c.Name)
		row.AddCell().SetString(c.Email)
		row.AddCell().SetString(c.Phone)
		row.AddCell().SetString(c.Company)
		row.AddCell().SetString(c.Position)
		row.AddCell().SetString(c.Location)
		row.AddCell().SetString(c.ProfileURL)
		row.AddCell().SetString(c.SourceURL)
		row.AddCell().SetString(c.Source)
		if c.ExtractedAt.IsZero() {
			row.AddCell().SetString("")
		} else {
			row.AddCell().SetString(c.ExtractedAt.UTC().Format(time.RFC3339))
		}
		row.AddCell().SetFloat(c.Confidence)
		row.AddCell().SetBool(c.Verified)
	}

	metrics, err := f.AddSheet("Metrics")
	if err != nil {
		return eris.Wrap(err, "export: add metrics sheet")
	}
	m := report.Metrics
	for _, kv := range [][2]string{
		{"Run", report.RunID},
		{"Tasks submitted", strconv.Itoa(m.TasksSubmitted)},
		{"Dispatches", strconv.Itoa(m.Dispatches)},
		{"Retries", strconv.Itoa(m.Retries)},
		{"Validation drops", strconv.Itoa(m.ValidationDrops)},
		{"Duplicates collapsed", strconv.Itoa(m.DuplicatesCollapsed)},
		{"Cache hits", strconv.FormatUint(m.CacheHits, 10)},
		{"Cache misses", strconv.FormatUint(m.CacheMisses, 10)},
		{"Duration", m.Duration.String()},
		{"Errors", strconv.Itoa(len(report.Errors))},
	} {
		row := metrics.AddRow()
		row.AddCell().SetString(kv[0])
		row.AddCell().SetString(kv[1])
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}
