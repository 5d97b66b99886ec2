// Package agents holds the per-source scraping strategies. Each agent owns
// one task type: it clears the target with the compliance checker, observes
// the advisory rate limit, drives the extraction engine through a page
// session, and returns scored contact records.
package agents

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/compliance"
	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/pkg/extractor"
)

// ErrDisallowed marks a target the compliance policy refuses to touch.
var ErrDisallowed = eris.New("access disallowed by compliance policy")

// maxRateLimitWaits bounds how many advisory denials an agent sleeps through
// before proceeding anyway.
const maxRateLimitWaits = 5

// Agent executes one kind of scraping task.
type Agent interface {
	Kind() model.TaskType
	Execute(ctx context.Context, task model.Task) ([]model.Contact, error)
}

// wireContact is the shape the extraction engine returns per person.
type wireContact struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Company    string `json:"company"`
	Position   string `json:"position"`
	Location   string `json:"location"`
	ProfileURL string `json:"profileUrl"`
}

// contactListSchema is handed to the engine with every list extraction.
var contactListSchema = json.RawMessage(`{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"email": {"type": "string"},
			"phone": {"type": "string"},
			"company": {"type": "string"},
			"position": {"type": "string"},
			"location": {"type": "string"},
			"profileUrl": {"type": "string"}
		},
		"required": ["name"]
	}
}`)

// preflight runs the compliance check for rawURL and, when access is allowed,
// waits out the advisory rate limit. A disallowed decision surfaces as
// ErrDisallowed with the policy's reason attached.
func preflight(ctx context.Context, checker *compliance.Checker, rawURL string) (*compliance.Decision, error) {
	decision, err := checker.CheckCompliance(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, eris.Wrapf(ErrDisallowed, "%s: %s", decision.Domain, decision.Reason)
	}
	awaitRateLimit(ctx, checker, decision.Domain)
	return decision, nil
}

// awaitRateLimit sleeps through advisory denials until the domain admits a
// request, the retry bound is hit, or ctx is cancelled.
func awaitRateLimit(ctx context.Context, checker *compliance.Checker, domain string) {
	for i := 0; i < maxRateLimitWaits; i++ {
		res := checker.CheckRateLimit(domain)
		if res.Allowed {
			return
		}
		timer := time.NewTimer(res.Wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// pause sleeps for d unless ctx ends first. Used for per-page pacing inside a
// session, e.g. the LinkedIn profile delay.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// withPage opens an engine page, runs fn against it, and closes the page even
// when fn fails. Close errors are logged, never returned: the session is
// already over.
func withPage(ctx context.Context, client extractor.Client, fn func(pageID string) error) error {
	page, err := client.OpenPage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.ClosePage(context.WithoutCancel(ctx), page); cerr != nil {
			zap.L().Warn("close page failed", zap.String("page", page), zap.Error(cerr))
		}
	}()
	return fn(page)
}

// withFilters appends the task's filter criteria to an extraction
// instruction. Keys are sorted so the same task always produces the same
// instruction.
func withFilters(instruction string, task model.Task) string {
	if len(task.Filters) == 0 {
		return instruction
	}
	keys := make([]string, 0, len(task.Filters))
	for k := range task.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+task.Filters[k])
	}
	return instruction + " Only include entries matching: " + strings.Join(parts, "; ") + "."
}

// decodeContacts turns an engine payload into scored records, capped at the
// task's result limit.
func decodeContacts(data json.RawMessage, task model.Task, source, sourceURL string) ([]model.Contact, error) {
	var wire []wireContact
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, eris.Wrap(err, "agents: decode contacts")
	}

	now := time.Now().UTC()
	records := make([]model.Contact, 0, len(wire))
	for _, w := range wire {
		if len(records) >= task.MaxResults {
			break
		}
		rec := model.Contact{
			Name:        w.Name,
			Email:       w.Email,
			Phone:       w.Phone,
			Company:     w.Company,
			Position:    w.Position,
			Location:    w.Location,
			ProfileURL:  w.ProfileURL,
			SourceURL:   sourceURL,
			Source:      source,
			ExtractedAt: now,
		}
		rec.Confidence = scoreConfidence(rec)
		records = append(records, rec)
	}
	return records, nil
}

// scoreConfidence rates a record by completeness: half for existing at all,
// the rest weighted toward direct contact channels.
func scoreConfidence(rec model.Contact) float64 {
	score := 0.5
	if rec.Email != "" {
		score += 0.2
	}
	if rec.Phone != "" {
		score += 0.15
	}
	if rec.Position != "" {
		score += 0.1
	}
	if rec.Company != "" {
		score += 0.05
	}
	if score > 1 {
		score = 1
	}
	return score
}
