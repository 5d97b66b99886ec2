package agents

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/compliance"
	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/pkg/extractor"
)

// maxDirectoryPages bounds pagination within one listing scan.
const maxDirectoryPages = 5

const listingExtractInstruction = "List every business or person entry on this directory page. " +
	"For each, capture the contact name (or business name), phone number, email if shown, " +
	"company, and location."

const nextPageInstruction = "Go to the next page of results."

// DirectoryAgent scans business directory listings page by page.
type DirectoryAgent struct {
	client  extractor.Client
	checker *compliance.Checker
}

// NewDirectory builds the directory scan agent.
func NewDirectory(client extractor.Client, checker *compliance.Checker) *DirectoryAgent {
	return &DirectoryAgent{client: client, checker: checker}
}

// Kind implements Agent.
func (a *DirectoryAgent) Kind() model.TaskType { return model.TaskDirectoryScan }

// Execute walks the listing at the task target, following pagination until
// the result cap or page bound is reached.
func (a *DirectoryAgent) Execute(ctx context.Context, task model.Task) ([]model.Contact, error) {
	target := task.Target
	log := zap.L().With(
		zap.String("agent", "directory"),
		zap.String("task_id", task.ID),
		zap.String("target", target),
	)

	decision, err := preflight(ctx, a.checker, target)
	if err != nil {
		return nil, err
	}
	source := "Directory:" + siteName(target)

	var records []model.Contact
	err = withPage(ctx, a.client, func(page string) error {
		if err := a.client.Navigate(ctx, page, target, 0); err != nil {
			return err
		}

		for pageNum := 1; pageNum <= maxDirectoryPages; pageNum++ {
			result, err := a.client.Extract(ctx, page, extractor.ExtractRequest{
				Instruction: withFilters(listingExtractInstruction, task),
				Schema:      contactListSchema,
				Limit:       task.MaxResults - len(records),
			})
			if err != nil {
				// A failed first page fails the task; later pages keep
				// whatever was already collected.
				if pageNum == 1 {
					return err
				}
				log.Warn("listing page extraction failed", zap.Int("page", pageNum), zap.Error(err))
				return nil
			}

			pageTask := task
			pageTask.MaxResults = task.MaxResults - len(records)
			batch, err := decodeContacts(result.Data, pageTask, source, target)
			if err != nil {
				if pageNum == 1 {
					return err
				}
				return nil
			}
			records = append(records, batch...)

			if len(records) >= task.MaxResults || len(batch) == 0 {
				return nil
			}
			if pageNum == maxDirectoryPages {
				return nil
			}

			pause(ctx, decision.RateLimit)
			if err := a.client.Act(ctx, page, nextPageInstruction); err != nil {
				log.Debug("pagination stopped", zap.Int("page", pageNum), zap.Error(err))
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("directory scan complete", zap.Int("records", len(records)))
	return records, nil
}

// siteName reduces a directory URL to a short source label, e.g.
// "yellowpages.com".
func siteName(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return target
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
