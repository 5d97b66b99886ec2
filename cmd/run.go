package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/export"
	"github.com/sells-group/prospector-cli/internal/model"
)

var (
	runLinkedIn    string
	runDirectories []string
	runWebsites    []string
	runQuery       string
	runMax         int
	runPriority    string
	runFilters     []string
	runOut         string
	runFormats     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a single scrape run from task flags",
	Long: `Builds one task per flag occurrence and drives them through the engine.

Examples:
  # Search LinkedIn for fintech CTOs
  prospector-cli run --linkedin linkedin.com --query "CTO fintech" --max 10

  # Mix sources in one run
  prospector-cli run --directory yellowpages.com --website https://acme.com/team --priority high`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filters, err := parseFilters(runFilters)
		if err != nil {
			return err
		}
		tasks := buildTasks(runLinkedIn, runDirectories, runWebsites, runQuery, runMax, runPriority, filters)
		if len(tasks) == 0 {
			return eris.New("no tasks: pass at least one of --linkedin, --directory, --website")
		}

		env, err := initEngine(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Engine.Run(ctx, tasks)
		if err != nil {
			return eris.Wrap(err, "engine run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", report.RunID),
			zap.Int("records", len(report.Records)),
			zap.Int("errors", len(report.Errors)),
			zap.Duration("duration", report.Metrics.Duration),
		)

		if runOut != "" {
			formats, err := export.ParseFormats(runFormats)
			if err != nil {
				return err
			}
			paths, err := export.WriteFiles(report, runOut, formats)
			if err != nil {
				return eris.Wrap(err, "export report")
			}
			zap.L().Info("report exported", zap.Strings("paths", paths))
		}

		deliverReport(ctx, report)

		// Print report JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	runCmd.Flags().StringVar(&runLinkedIn, "linkedin", "", "LinkedIn search target (e.g. linkedin.com)")
	runCmd.Flags().StringArrayVar(&runDirectories, "directory", nil, "business directory to scan (repeatable)")
	runCmd.Flags().StringArrayVar(&runWebsites, "website", nil, "website URL to extract contacts from (repeatable)")
	runCmd.Flags().StringVar(&runQuery, "query", "", "search terms for search-style tasks")
	runCmd.Flags().IntVar(&runMax, "max", 0, "max records per task (0 = default)")
	runCmd.Flags().StringVar(&runPriority, "priority", "medium", "task priority: low, medium, high")
	runCmd.Flags().StringArrayVar(&runFilters, "filter", nil, "extraction filter as key=value (repeatable)")
	runCmd.Flags().StringVar(&runOut, "out", "", "export the report to this directory")
	runCmd.Flags().StringVar(&runFormats, "formats", "json", "comma-separated export formats: csv, json, html, xlsx")
	rootCmd.AddCommand(runCmd)
}

// parseFilters turns repeated key=value flags into a filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, eris.Errorf("bad filter %q: want key=value", pair)
		}
		filters[key] = strings.TrimSpace(value)
	}
	return filters, nil
}

// buildTasks translates the run flags into engine tasks. Every flag occurrence
// becomes its own task so each source carries an independent retry budget.
func buildTasks(linkedin string, directories, websites []string, query string, maxResults int, priority string, filters map[string]string) []model.Task {
	opts := []model.TaskOption{
		model.WithPriority(model.ParsePriority(priority)),
		model.WithFilters(filters),
	}
	if query != "" {
		opts = append(opts, model.WithQuery(query))
	}
	if maxResults > 0 {
		opts = append(opts, model.WithMaxResults(maxResults))
	}

	var tasks []model.Task
	if linkedin != "" {
		tasks = append(tasks, model.NewTask(model.TaskLinkedInSearch, linkedin, opts...))
	}
	for _, d := range directories {
		tasks = append(tasks, model.NewTask(model.TaskDirectoryScan, d, opts...))
	}
	for _, w := range websites {
		tasks = append(tasks, model.NewTask(model.TaskWebsiteExtract, w, opts...))
	}
	return tasks
}

// deliverReport pushes a finished report to the configured downstream sinks.
// Delivery failures are logged, never fatal: the run itself already succeeded.
func deliverReport(ctx context.Context, report *model.Report) {
	if cfg.Webhook.ReportURL != "" {
		if err := export.NewWebhookNotifier(cfg.Webhook.ReportURL).Notify(ctx, report); err != nil {
			zap.L().Error("report webhook delivery failed",
				zap.String("run_id", report.RunID),
				zap.Error(err),
			)
		} else {
			zap.L().Info("report delivered to webhook", zap.String("run_id", report.RunID))
		}
	}

	if cfg.Notion.Token != "" && cfg.Notion.ContactsDB != "" && len(report.Records) > 0 {
		sink := export.NewNotionSink(cfg.Notion.Token, cfg.Notion.ContactsDB)
		created, err := sink.Push(ctx, report.RunID, report.Records)
		if err != nil {
			zap.L().Error("notion push failed",
				zap.String("run_id", report.RunID),
				zap.Int("created", created),
				zap.Error(err),
			)
		} else {
			zap.L().Info("contacts pushed to notion",
				zap.String("run_id", report.RunID),
				zap.Int("created", created),
			)
		}
	}
}
