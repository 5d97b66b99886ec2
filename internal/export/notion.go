package export

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospector-cli/internal/model"
)

// NotionClient is the slice of the Notion API the sink needs.
type NotionClient interface {
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

// notionAPIClient wraps *notionapi.Client with Notion's 3 req/s rate limit.
type notionAPIClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
}

func (c *notionAPIClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "notion: rate limit")
	}
	page, err := c.inner.Page.Create(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "notion: create page")
	}
	return page, nil
}

// NotionSink appends finished contact records to a Notion database, one page
// per record. Callers treat a returned error as non-fatal for the run.
type NotionSink struct {
	client     NotionClient
	databaseID string
}

// NewNotionSink builds a sink for the given integration token and database.
func NewNotionSink(token, databaseID string) *NotionSink {
	return &NotionSink{
		client: &notionAPIClient{
			inner:   notionapi.NewClient(notionapi.Token(token)),
			limiter: rate.NewLimiter(3, 1),
		},
		databaseID: databaseID,
	}
}

// Push creates a page for each record in order. Creation stops at the first
// error; the count of pages already created is returned either way.
func (s *NotionSink) Push(ctx context.Context, runID string, records []model.Contact) (int, error) {
	created := 0
	for _, c := range records {
		if ctx.Err() != nil {
			return created, eris.Wrap(ctx.Err(), "notion: push cancelled")
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(s.databaseID),
			},
			Properties: contactProperties(c),
		}
		if _, err := s.client.CreatePage(ctx, req); err != nil {
			return created, eris.Wrapf(err, "notion: push contact %q", c.Name)
		}
		created++
	}

	zap.L().Info("contacts pushed to notion",
		zap.String("run_id", runID),
		zap.String("database_id", s.databaseID),
		zap.Int("created", created),
	)
	return created, nil
}

// contactProperties maps a Contact to Notion page properties. Empty optional
// fields are omitted rather than written as empty values.
func contactProperties(c model.Contact) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: c.Name}},
			},
		},
		"Source": richTextProperty(c.Source),
		"Confidence": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: c.Confidence,
		},
		"Verified": notionapi.CheckboxProperty{
			Type:     notionapi.PropertyTypeCheckbox,
			Checkbox: c.Verified,
		},
	}

	if c.Email != "" {
		props["Email"] = notionapi.EmailProperty{
			Type:  notionapi.PropertyTypeEmail,
			Email: c.Email,
		}
	}
	if c.Phone != "" {
		props["Phone"] = notionapi.PhoneNumberProperty{
			Type:        notionapi.PropertyTypePhoneNumber,
			PhoneNumber: c.Phone,
		}
	}
	if c.Company != "" {
		props["Company"] = richTextProperty(c.Company)
	}
	if c.Position != "" {
		props["Position"] = richTextProperty(c.Position)
	}
	if c.ProfileURL != "" {
		props["Profile"] = notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  c.ProfileURL,
		}
	}
	return props
}

func richTextProperty(v string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
		},
	}
}
