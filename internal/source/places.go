package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/pkg/places"
)

// PlacesAdapter discovers businesses via Places text search. One fetch
// runs every configured search category; a failed category costs only its
// own results.
type PlacesAdapter struct {
	client places.Client
}

// NewPlaces creates the Google Places adapter.
func NewPlaces(client places.Client) *PlacesAdapter {
	return &PlacesAdapter{client: client}
}

// Source implements Adapter.
func (a *PlacesAdapter) Source() model.Source {
	return model.SourceGooglePlaces
}

// Fetch implements Adapter. Results are the union of all category
// searches in category order, deduplicated by place ID. It fails only
// when every category fails.
func (a *PlacesAdapter) Fetch(ctx context.Context, opts Options) ([]model.Item, error) {
	if len(opts.Categories) == 0 {
		return nil, eris.New("source: places fetch needs at least one category")
	}

	results := make([][]model.Item, len(opts.Categories))
	failures := make([]bool, len(opts.Categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, cat := range opts.Categories {
		g.Go(func() error {
			resp, err := a.client.TextSearch(gctx, cat, opts.Limit)
			if err != nil {
				zap.L().Warn("source: places category failed",
					zap.String("category", cat),
					zap.Error(err),
				)
				failures[i] = true
				return nil // one bad category must not sink the rest
			}
			batch := make([]model.Item, 0, len(resp.Places))
			for _, p := range resp.Places {
				if it, ok := normalizePlace(p, cat); ok {
					batch = append(batch, it)
				}
			}
			results[i] = batch
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	if failed == len(opts.Categories) {
		return nil, eris.New("source: all places categories failed")
	}

	seen := make(map[string]struct{})
	var items []model.Item
	for _, batch := range results {
		for _, it := range batch {
			if _, dup := seen[it.ExternalID]; dup {
				continue
			}
			seen[it.ExternalID] = struct{}{}
			items = append(items, it)
		}
	}

	zap.L().Info("source: places fetched",
		zap.Int("categories", len(opts.Categories)),
		zap.Int("failed_categories", failed),
		zap.Int("normalized", len(items)),
	)
	return items, nil
}

func normalizePlace(p places.Place, category string) (model.Item, bool) {
	if p.ID == "" || p.DisplayName.Text == "" {
		return model.Item{}, false
	}

	url := p.WebsiteURI
	if url == "" {
		url = p.GoogleMapsURI
	}

	var desc strings.Builder
	if len(p.Types) > 0 {
		desc.WriteString("Types: " + strings.Join(p.Types, ", "))
	}
	if p.UserRatingCount > 0 {
		if desc.Len() > 0 {
			desc.WriteString(". ")
		}
		fmt.Fprintf(&desc, "Rating %.1f (%d reviews)", p.Rating, p.UserRatingCount)
	}

	raw, _ := json.Marshal(p)
	return model.Item{
		Source:      model.SourceGooglePlaces,
		ExternalID:  p.ID,
		Title:       category,
		Company:     p.DisplayName.Text,
		Location:    p.FormattedAddress,
		Description: desc.String(),
		URL:         url,
		Raw:         raw,
	}, true
}
