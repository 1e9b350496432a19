package source

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/pkg/apify"
)

// LinkedInAdapter fetches job posts through a LinkedIn scraping actor.
type LinkedInAdapter struct {
	client  apify.Client
	actorID string
}

// NewLinkedIn creates the LinkedIn adapter.
func NewLinkedIn(client apify.Client, actorID string) *LinkedInAdapter {
	return &LinkedInAdapter{client: client, actorID: actorID}
}

// Source implements Adapter.
func (a *LinkedInAdapter) Source() model.Source {
	return model.SourceLinkedIn
}

// linkedInInput is the actor input document.
type linkedInInput struct {
	Title    string `json:"title"`
	Location string `json:"location,omitempty"`
	Rows     int    `json:"rows"`
}

// linkedInPost is the subset of the actor's output the adapter reads.
// The full raw record travels on the item for downstream extraction.
type linkedInPost struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	CompanyName      string `json:"companyName"`
	Location         string `json:"location"`
	Description      string `json:"description"`
	JobURL           string `json:"jobUrl"`
	PublishedAt      string `json:"publishedAt"`
	ContractType     string `json:"contractType"`
	Salary           string `json:"salary"`
	PosterFullName   string `json:"posterFullName"`
	PosterProfileURL string `json:"posterProfileUrl"`
}

// Fetch implements Adapter.
func (a *LinkedInAdapter) Fetch(ctx context.Context, opts Options) ([]model.Item, error) {
	raws, err := a.client.RunActorSync(ctx, a.actorID, linkedInInput{
		Title:    opts.Query,
		Location: opts.Location,
		Rows:     opts.Limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: linkedin fetch")
	}

	items := make([]model.Item, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		var post linkedInPost
		if err := json.Unmarshal(raw, &post); err != nil {
			dropped++
			continue
		}
		if post.Title == "" || post.CompanyName == "" || (post.ID == "" && post.JobURL == "") {
			dropped++
			continue
		}
		items = append(items, model.Item{
			Source:      model.SourceLinkedIn,
			ExternalID:  post.ID,
			Title:       post.Title,
			Company:     post.CompanyName,
			Location:    post.Location,
			Description: post.Description,
			URL:         post.JobURL,
			PostedAt:    parseDate(post.PublishedAt),
			JobType:     post.ContractType,
			Salary:      post.Salary,
			Raw:         raw,
		})
	}

	zap.L().Info("source: linkedin fetched",
		zap.Int("received", len(raws)),
		zap.Int("normalized", len(items)),
		zap.Int("dropped", dropped),
	)
	return items, nil
}

// parseDate tries the timestamp layouts the upstreams use. Returns nil
// when the value is empty or unrecognized.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
