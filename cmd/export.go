package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/export"
	"github.com/sells-group/prospector-cli/internal/model"
)

var (
	exportDir     string
	exportFormats string
	exportNotion  bool
	exportWebhook bool
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Re-export a persisted run's report",
	Long: `Writes a stored run's report to files and optional downstream sinks.

Examples:
  # CSV and spreadsheet to the configured export directory
  prospector-cli export 4f6b21aa-... --formats csv,xlsx

  # Push the run's contacts to Notion as well
  prospector-cli export 4f6b21aa-... --notion`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export: get run")
		}

		report := run.Report
		if report == nil {
			// Runs that never completed have no stored report; rebuild a
			// minimal one from the persisted contacts.
			records, listErr := st.ListContacts(ctx, run.ID)
			if listErr != nil {
				return eris.Wrap(listErr, "export: list contacts")
			}
			report = &model.Report{
				RunID:      run.ID,
				Records:    records,
				StartedAt:  run.CreatedAt,
				FinishedAt: run.UpdatedAt,
			}
		}

		dir := exportDir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		formatSpec := exportFormats
		if formatSpec == "" {
			formatSpec = cfg.Export.Formats
		}
		formats, err := export.ParseFormats(formatSpec)
		if err != nil {
			return err
		}

		paths, err := export.WriteFiles(report, dir, formats)
		if err != nil {
			return eris.Wrap(err, "export: write files")
		}
		for _, p := range paths {
			fmt.Fprintln(os.Stdout, p)
		}

		if exportWebhook {
			if cfg.Webhook.ReportURL == "" {
				return eris.New("export: --webhook requires webhook.report_url")
			}
			if err := export.NewWebhookNotifier(cfg.Webhook.ReportURL).Notify(ctx, report); err != nil {
				return eris.Wrap(err, "export: webhook")
			}
			zap.L().Info("report delivered to webhook", zap.String("run_id", report.RunID))
		}

		if exportNotion {
			if cfg.Notion.Token == "" || cfg.Notion.ContactsDB == "" {
				return eris.New("export: --notion requires notion.token and notion.contacts_db")
			}
			sink := export.NewNotionSink(cfg.Notion.Token, cfg.Notion.ContactsDB)
			created, err := sink.Push(ctx, report.RunID, report.Records)
			if err != nil {
				return eris.Wrap(err, "export: notion push")
			}
			zap.L().Info("contacts pushed to notion",
				zap.String("run_id", report.RunID),
				zap.Int("created", created),
			)
		}

		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default from config)")
	exportCmd.Flags().StringVar(&exportFormats, "formats", "", "comma-separated formats: csv, json, html, xlsx (default from config)")
	exportCmd.Flags().BoolVar(&exportNotion, "notion", false, "also push contacts to the configured Notion database")
	exportCmd.Flags().BoolVar(&exportWebhook, "webhook", false, "also deliver the report to the configured webhook")
	rootCmd.AddCommand(exportCmd)
}
