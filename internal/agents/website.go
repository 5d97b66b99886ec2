package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/compliance"
	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/pkg/extractor"
)

const websiteExtractInstruction = "List every team member or contact person shown on this page. " +
	"For each, capture their name, position, email address, phone number, and location. " +
	"Include general company contact details as a record when no individuals are listed."

const findContactPageInstruction = "Navigate to the page listing the team, staff, or contact information."

// WebsiteAgent extracts people from a company's own site, starting at the
// given URL and steering toward a team or contact page when the landing page
// has nothing.
type WebsiteAgent struct {
	client  extractor.Client
	checker *compliance.Checker
}

// NewWebsite builds the website extraction agent.
func NewWebsite(client extractor.Client, checker *compliance.Checker) *WebsiteAgent {
	return &WebsiteAgent{client: client, checker: checker}
}

// Kind implements Agent.
func (a *WebsiteAgent) Kind() model.TaskType { return model.TaskWebsiteExtract }

// Execute pulls contact records from the target site.
func (a *WebsiteAgent) Execute(ctx context.Context, task model.Task) ([]model.Contact, error) {
	target := task.Target
	log := zap.L().With(
		zap.String("agent", "website"),
		zap.String("task_id", task.ID),
		zap.String("target", target),
	)

	decision, err := preflight(ctx, a.checker, target)
	if err != nil {
		return nil, err
	}
	source := "Website:" + siteName(target)

	var records []model.Contact
	err = withPage(ctx, a.client, func(page string) error {
		if err := a.client.Navigate(ctx, page, target, 0); err != nil {
			return err
		}

		records, err = a.extractPeople(ctx, page, task, source, target)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			return nil
		}

		// Nothing on the landing page; steer toward a team/contact page.
		pause(ctx, decision.RateLimit)
		if err := a.client.Act(ctx, page, findContactPageInstruction); err != nil {
			log.Debug("no contact page found", zap.Error(err))
			return nil
		}
		records, err = a.extractPeople(ctx, page, task, source, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("website extraction complete", zap.Int("records", len(records)))
	return records, nil
}

func (a *WebsiteAgent) extractPeople(ctx context.Context, page string, task model.Task, source, target string) ([]model.Contact, error) {
	result, err := a.client.Extract(ctx, page, extractor.ExtractRequest{
		Instruction: withFilters(websiteExtractInstruction, task),
		Schema:      contactListSchema,
		Limit:       task.MaxResults,
	})
	if err != nil {
		return nil, err
	}
	records, err := decodeContacts(result.Data, task, source, target)
	if err != nil {
		return nil, err
	}

	// Company context helps downstream dedup when the page omits it.
	host := siteName(target)
	for i := range records {
		if records[i].Company == "" {
			records[i].Company = host
			records[i].Confidence = scoreConfidence(records[i])
		}
	}
	return records, nil
}
