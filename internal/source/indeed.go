package source

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/pkg/apify"
)

// IndeedAdapter fetches job posts through an Indeed scraping actor.
type IndeedAdapter struct {
	client  apify.Client
	actorID string
}

// NewIndeed creates the Indeed adapter.
func NewIndeed(client apify.Client, actorID string) *IndeedAdapter {
	return &IndeedAdapter{client: client, actorID: actorID}
}

// Source implements Adapter.
func (a *IndeedAdapter) Source() model.Source {
	return model.SourceIndeed
}

// indeedInput is the actor input document.
type indeedInput struct {
	Position string `json:"position"`
	Country  string `json:"country"`
	Location string `json:"location,omitempty"`
	MaxItems int    `json:"maxItems"`
}

// indeedPost is the subset of the actor's output the adapter reads.
type indeedPost struct {
	ID                string   `json:"id"`
	PositionName      string   `json:"positionName"`
	Company           string   `json:"company"`
	Location          string   `json:"location"`
	Description       string   `json:"description"`
	URL               string   `json:"url"`
	PostingDateParsed string   `json:"postingDateParsed"`
	JobType           []string `json:"jobType"`
	Salary            string   `json:"salary"`
}

// Fetch implements Adapter.
func (a *IndeedAdapter) Fetch(ctx context.Context, opts Options) ([]model.Item, error) {
	raws, err := a.client.RunActorSync(ctx, a.actorID, indeedInput{
		Position: opts.Query,
		Country:  "SE",
		Location: opts.Location,
		MaxItems: opts.Limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: indeed fetch")
	}

	items := make([]model.Item, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		var post indeedPost
		if err := json.Unmarshal(raw, &post); err != nil {
			dropped++
			continue
		}
		if post.PositionName == "" || post.Company == "" || (post.ID == "" && post.URL == "") {
			dropped++
			continue
		}
		items = append(items, model.Item{
			Source:      model.SourceIndeed,
			ExternalID:  post.ID,
			Title:       post.PositionName,
			Company:     post.Company,
			Location:    post.Location,
			Description: post.Description,
			URL:         post.URL,
			PostedAt:    parseDate(post.PostingDateParsed),
			JobType:     strings.Join(post.JobType, ", "),
			Salary:      post.Salary,
			Raw:         raw,
		})
	}

	zap.L().Info("source: indeed fetched",
		zap.Int("received", len(raws)),
		zap.Int("normalized", len(items)),
		zap.Int("dropped", dropped),
	)
	return items, nil
}
