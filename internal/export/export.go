// Package export writes finished run reports to files (CSV, JSON, HTML, XLSX)
// and pushes them to outbound sinks (report webhook, Notion database). Records
// arrive already validated, deduplicated, and sorted; sinks preserve that
// order.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector-cli/internal/model"
)

// Format names a file output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

// ParseFormats parses a comma-separated format list ("csv,json"). Unknown
// formats are an error; duplicates are collapsed keeping first position.
func ParseFormats(s string) ([]Format, error) {
	var formats []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		f := Format(part)
		switch f {
		case FormatCSV, FormatJSON, FormatHTML, FormatXLSX:
		default:
			return nil, eris.Errorf("export: unknown format %q", part)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		return nil, eris.New("export: no formats given")
	}
	return formats, nil
}

// WriteFiles writes the report to dir in each requested format, one file per
// format named after the run id. Returns the paths written.
func WriteFiles(report *model.Report, dir string, formats []Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "export: create output dir")
	}

	var paths []string
	for _, f := range formats {
		path := filepath.Join(dir, report.RunID+"."+string(f))
		var err error
		switch f {
		case FormatCSV:
			err = WriteCSV(report.Records, path)
		case FormatJSON:
			err = WriteJSON(report, path)
		case FormatHTML:
			err = WriteHTML(report, path)
		case FormatXLSX:
			err = WriteXLSX(report, path)
		default:
			err = eris.Errorf("export: unknown format %q", f)
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// csvColumns defines the ordered contact CSV output columns.
var csvColumns = []string{
	"Name",
	"Email",
	"Phone",
	"Company",
	"Position",
	"Location",
	"Profile URL",
	"Source URL",
	"Source",
	"Extracted At",
	"Confidence",
	"Verified",
}

// WriteCSV writes contact records as a CSV file in csvColumns order.
func WriteCSV(records []model.Contact, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, c := range records {
		if err := w.Write(buildCSVRow(c)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	return nil
}

// buildCSVRow maps a Contact to a CSV row in csvColumns order.
func buildCSVRow(c model.Contact) []string {
	extracted := ""
	if !c.ExtractedAt.IsZero() {
		extracted = c.ExtractedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		c.Name,
		c.Email,
		c.Phone,
		c.Company,
		c.Position,
		c.Location,
		c.ProfileURL,
		c.SourceURL,
		c.Source,
		extracted,
		strconv.FormatFloat(c.Confidence, 'f', 2, 64),
		strconv.FormatBool(c.Verified),
	}
}

// WriteJSON writes the full report as indented JSON.
func WriteJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write json file")
	}
	return nil
}
