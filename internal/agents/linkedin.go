package agents

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/compliance"
	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/pkg/extractor"
)

// enrichmentLimit caps how many individual profiles a single search task may
// visit to fill in missing contact channels.
const enrichmentLimit = 3

const searchExtractInstruction = "List every person visible in these search results. " +
	"For each, capture their full name, current position, company, location, and profile URL. " +
	"Include an email or phone number only if it is shown on the results page."

const profileExtractInstruction = "From this profile page, capture the person's full name, " +
	"current position, company, location, and any publicly listed email address or phone number."

// LinkedInAgent searches the professional network for people matching a query
// and extracts their public profile details.
type LinkedInAgent struct {
	client  extractor.Client
	checker *compliance.Checker
}

// NewLinkedIn builds the LinkedIn search agent.
func NewLinkedIn(client extractor.Client, checker *compliance.Checker) *LinkedInAgent {
	return &LinkedInAgent{client: client, checker: checker}
}

// Kind implements Agent.
func (a *LinkedInAgent) Kind() model.TaskType { return model.TaskLinkedInSearch }

// Execute runs a people search and returns the extracted records. Profiles
// are visited sparingly and only behind the decision's rate-limit pause.
func (a *LinkedInAgent) Execute(ctx context.Context, task model.Task) ([]model.Contact, error) {
	target := searchURL(task)
	log := zap.L().With(
		zap.String("agent", "linkedin"),
		zap.String("task_id", task.ID),
		zap.String("target", target),
	)

	decision, err := preflight(ctx, a.checker, target)
	if err != nil {
		return nil, err
	}

	var records []model.Contact
	err = withPage(ctx, a.client, func(page string) error {
		if err := a.client.Navigate(ctx, page, target, 0); err != nil {
			return err
		}

		result, err := a.client.Extract(ctx, page, extractor.ExtractRequest{
			Instruction: withFilters(searchExtractInstruction, task),
			Schema:      contactListSchema,
			Limit:       task.MaxResults,
		})
		if err != nil {
			return err
		}

		records, err = decodeContacts(result.Data, task, "LinkedIn", target)
		if err != nil {
			return err
		}

		a.enrichProfiles(ctx, page, records, decision, log)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("search complete", zap.Int("records", len(records)))
	return records, nil
}

// enrichProfiles visits a bounded number of result profiles that lack any
// direct contact channel. Enrichment failures never fail the task; the
// un-enriched record stands.
func (a *LinkedInAgent) enrichProfiles(ctx context.Context, page string, records []model.Contact, decision *compliance.Decision, log *zap.Logger) {
	visited := 0
	for i := range records {
		if visited >= enrichmentLimit {
			return
		}
		if records[i].HasContactInfo() || records[i].ProfileURL == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		pause(ctx, decision.RateLimit)
		visited++

		detail, err := a.visitProfile(ctx, page, records[i].ProfileURL)
		if err != nil {
			log.Warn("profile enrichment failed", zap.String("profile", records[i].ProfileURL), zap.Error(err))
			continue
		}
		if detail.Email != "" {
			records[i].Email = detail.Email
		}
		if detail.Phone != "" {
			records[i].Phone = detail.Phone
		}
		if records[i].Position == "" {
			records[i].Position = detail.Position
		}
		if records[i].Company == "" {
			records[i].Company = detail.Company
		}
		records[i].Confidence = scoreConfidence(records[i])
	}
}

func (a *LinkedInAgent) visitProfile(ctx context.Context, page, profileURL string) (*wireContact, error) {
	if err := a.client.Navigate(ctx, page, profileURL, 0); err != nil {
		return nil, err
	}
	result, err := a.client.Extract(ctx, page, extractor.ExtractRequest{
		Instruction: profileExtractInstruction,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	var detail wireContact
	if err := json.Unmarshal(result.Data, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// searchURL resolves the task target into a people-search URL. Absolute
// targets are taken as-is; bare domains get the standard search path with the
// task query.
func searchURL(task model.Task) string {
	target := strings.TrimSpace(task.Target)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	host := target
	if host == "" {
		host = "www.linkedin.com"
	}
	return "https://" + host + "/search/results/people/?keywords=" + url.QueryEscape(task.Query)
}
