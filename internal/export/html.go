package export

import (
	"fmt"
	"html/template"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector-cli/internal/model"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}).Parse(reportHTML))

// WriteHTML renders the report as a standalone HTML page. Record fields go
// through html/template escaping.
func WriteHTML(report *model.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create html file")
	}
	defer f.Close() //nolint:errcheck

	if err := reportTemplate.Execute(f, report); err != nil {
		return eris.Wrap(err, "export: render html")
	}
	return nil
}

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Scrape Report {{.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; font-size: 14px; }
th { background: #f5f5f5; }
.errors li { color: #a00; }
.meta { color: #666; }
</style>
</head>
<body>
<h1>Scrape Report</h1>
<p class="meta">Run {{.RunID}}<br>
Started {{.StartedAt.Format "2006-01-02 15:04:05 MST"}}, finished {{.FinishedAt.Format "2006-01-02 15:04:05 MST"}}</p>

<h2>Records ({{len .Records}})</h2>
{{if .Records}}
<table>
<tr><th>Name</th><th>Email</th><th>Phone</th><th>Company</th><th>Position</th><th>Source</th><th>Confidence</th><th>Verified</th></tr>
{{range .Records}}
<tr>
<td>{{.Name}}</td>
<td>{{.Email}}</td>
<td>{{.Phone}}</td>
<td>{{.Company}}</td>
<td>{{.Position}}</td>
<td>{{.Source}}</td>
<td>{{pct .Confidence}}</td>
<td>{{if .Verified}}yes{{else}}no{{end}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No records extracted.</p>
{{end}}

<h2>Metrics</h2>
<table>
<tr><td>Tasks submitted</td><td>{{.Metrics.TasksSubmitted}}</td></tr>
<tr><td>Dispatches</td><td>{{.Metrics.Dispatches}}</td></tr>
<tr><td>Retries</td><td>{{.Metrics.Retries}}</td></tr>
<tr><td>Validation drops</td><td>{{.Metrics.ValidationDrops}}</td></tr>
<tr><td>Duplicates collapsed</td><td>{{.Metrics.DuplicatesCollapsed}}</td></tr>
<tr><td>Cache hit rate</td><td>{{pct .Metrics.CacheHitRate}}</td></tr>
<tr><td>Duration</td><td>{{.Metrics.Duration}}</td></tr>
</table>

{{if .Errors}}
<h2>Errors ({{len .Errors}})</h2>
<ul class="errors">
{{range .Errors}}<li>{{.}}</li>
{{end}}</ul>
{{end}}

{{if .Approvals}}
<h2>Approvals</h2>
<table>
<tr><th>Task</th><th>Type</th><th>Action</th><th>Approved</th></tr>
{{range .Approvals}}
<tr><td>{{.TaskID}}</td><td>{{.TaskType}}</td><td>{{.Action}}</td><td>{{if .Approved}}yes{{else}}no{{end}}</td></tr>
{{end}}
</table>
{{end}}
</body>
</html>
`
