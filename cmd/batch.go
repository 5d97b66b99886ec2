package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector-cli/internal/model"
)

var (
	batchCSV         string
	batchLimit       int
	batchConcurrency int
	batchDryRun      bool
	batchOutput      string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run scrape tasks from a CSV, one engine run per row",
	Long: `Reads a task CSV and executes each row as an independent engine run.

The CSV needs a header with at least type and target columns:
  type,target,query,max_results,priority
  linkedin_search,linkedin.com,CTO fintech,10,high
  directory_scan,yellowpages.com,plumbers chicago,25,medium

Runs share one cache, compliance checker, and store, so robots verdicts and
rate-limit pacing carry across the whole batch.

Examples:
  # Parse only, print the tasks that would run
  prospector-cli batch --csv tasks.csv --dry-run

  # First 10 rows, 2 runs at a time, reports to a file
  prospector-cli batch --csv tasks.csv --limit 10 --concurrency 2 --output reports.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tasks, err := parseTaskCSV(batchCSV)
		if err != nil {
			return eris.Wrap(err, "batch: parse csv")
		}
		zap.L().Info("parsed csv", zap.Int("tasks", len(tasks)))

		// Dry run: print parsed tasks and exit.
		if batchDryRun {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tasks)
		}

		env, err := initEngine(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentRuns
		}

		reports := processBatch(ctx, tasks, batchLimit, concurrency, func(ctx context.Context, task model.Task) (*model.Report, error) {
			return env.Engine.Run(ctx, []model.Task{task})
		})

		for _, r := range reports {
			deliverReport(ctx, r)
		}

		return writeReports(reports, batchOutput)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "path to task CSV file (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max rows to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent runs (default from config)")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "parse CSV and print tasks, skip execution")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write reports JSON to file (default: stdout)")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}

// runFunc is the callback signature for executing one task as its own run.
type runFunc func(ctx context.Context, task model.Task) (*model.Report, error)

// processBatch applies limit, then executes each task as an independent run,
// at most concurrency at a time. Individual run failures are logged and
// counted; they never abort the batch.
func processBatch(ctx context.Context, tasks []model.Task, limit, concurrency int, run runFunc) []*model.Report {
	if len(tasks) == 0 {
		zap.L().Info("no tasks in batch")
		return nil
	}

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("tasks", len(tasks)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var reports []*model.Report
	var succeeded, failed atomic.Int64

	for _, task := range tasks {
		g.Go(func() error {
			log := zap.L().With(
				zap.String("task_type", string(task.Type)),
				zap.String("target", task.Target),
			)

			report, err := run(gctx, task)
			if err != nil {
				failed.Add(1)
				log.Error("batch run failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("batch run complete",
				zap.String("run_id", report.RunID),
				zap.Int("records", len(report.Records)),
				zap.Int("errors", len(report.Errors)),
			)
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int("total", len(tasks)),
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return reports
}

// splitFilterCell breaks a CSV filters cell ("location=Austin; industry=roofing")
// into key=value pairs, dropping empty segments.
func splitFilterCell(cell string) []string {
	var pairs []string
	for _, part := range strings.Split(cell, ";") {
		if part = strings.TrimSpace(part); part != "" {
			pairs = append(pairs, part)
		}
	}
	return pairs
}

// parseTaskCSV reads scrape tasks from the CSV at path. The header must name
// type and target columns; query, max_results, priority, and filters are
// optional.
func parseTaskCSV(path string) ([]model.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open csv")
	}
	defer f.Close() //nolint:errcheck
	return readTasks(f)
}

// readTasks parses CSV task rows from r. Column order is free; unknown
// columns are ignored.
func readTasks(r io.Reader) ([]model.Task, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"type", "target"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("csv header missing %q column", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var tasks []model.Task
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "csv line %d", line)
		}

		typ := model.TaskType(field(row, "type"))
		if !typ.Valid() {
			return nil, eris.Errorf("csv line %d: unknown task type %q", line, string(typ))
		}
		target := field(row, "target")
		if target == "" {
			return nil, eris.Errorf("csv line %d: target is required", line)
		}

		opts := []model.TaskOption{
			model.WithPriority(model.ParsePriority(field(row, "priority"))),
		}
		if q := field(row, "query"); q != "" {
			opts = append(opts, model.WithQuery(q))
		}
		if m := field(row, "max_results"); m != "" {
			n, convErr := strconv.Atoi(m)
			if convErr != nil {
				return nil, eris.Errorf("csv line %d: bad max_results %q", line, m)
			}
			opts = append(opts, model.WithMaxResults(n))
		}
		if fs := field(row, "filters"); fs != "" {
			filters, fErr := parseFilters(splitFilterCell(fs))
			if fErr != nil {
				return nil, eris.Wrapf(fErr, "csv line %d", line)
			}
			opts = append(opts, model.WithFilters(filters))
		}

		tasks = append(tasks, model.NewTask(typ, target, opts...))
	}
	return tasks, nil
}

// writeReports writes the collected reports to the output file or stdout.
func writeReports(reports []*model.Report, path string) error {
	var w *os.File
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "batch: create output file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	} else {
		w = os.Stdout
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
