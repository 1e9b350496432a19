package source

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/pkg/jobtech"
)

// PlatsbankenAdapter fetches job ads from the public Jobsearch API.
type PlatsbankenAdapter struct {
	client jobtech.Client
}

// NewPlatsbanken creates the Platsbanken adapter.
func NewPlatsbanken(client jobtech.Client) *PlatsbankenAdapter {
	return &PlatsbankenAdapter{client: client}
}

// Source implements Adapter.
func (a *PlatsbankenAdapter) Source() model.Source {
	return model.SourcePlatsbanken
}

// Fetch implements Adapter. The API serves at most jobtech.MaxPageSize ads
// per request, so the adapter pages by offset until it has the requested
// number of items or the upstream runs dry.
func (a *PlatsbankenAdapter) Fetch(ctx context.Context, opts Options) ([]model.Item, error) {
	want := opts.Limit
	items := make([]model.Item, 0, want)
	dropped := 0
	offset := 0

	for len(items) < want {
		pageLimit := want - len(items)
		if pageLimit > jobtech.MaxPageSize {
			pageLimit = jobtech.MaxPageSize
		}

		page, err := a.client.Search(ctx, jobtech.SearchParams{
			Query:  opts.Query,
			Offset: offset,
			Limit:  pageLimit,
		})
		if err != nil {
			return nil, eris.Wrap(err, "source: platsbanken fetch")
		}
		if len(page.Hits) == 0 {
			break
		}

		for _, ad := range page.Hits {
			it, ok := normalizeAd(ad)
			if !ok {
				dropped++
				continue
			}
			items = append(items, it)
		}

		offset += len(page.Hits)
		if len(page.Hits) < pageLimit {
			break
		}
	}

	zap.L().Info("source: platsbanken fetched",
		zap.Int("normalized", len(items)),
		zap.Int("dropped", dropped),
		zap.Int("pages", (offset+jobtech.MaxPageSize-1)/jobtech.MaxPageSize),
	)
	return items, nil
}

func normalizeAd(ad jobtech.Ad) (model.Item, bool) {
	if ad.ID == "" || ad.Headline == "" || ad.Employer.Name == "" {
		return model.Item{}, false
	}

	location := ad.WorkplaceAddress.Municipality
	if location == "" {
		location = ad.WorkplaceAddress.Region
	}

	url := ad.WebpageURL
	if url == "" {
		url = "https://arbetsformedlingen.se/platsbanken/annonser/" + ad.ID
	}

	salary := ad.SalaryDescription
	if salary == "" {
		salary = ad.SalaryType.Label
	}

	raw, _ := json.Marshal(ad)
	return model.Item{
		Source:      model.SourcePlatsbanken,
		ExternalID:  ad.ID,
		Title:       ad.Headline,
		Company:     ad.Employer.Name,
		Location:    location,
		Description: ad.Description.Text,
		URL:         url,
		PostedAt:    parseDate(ad.PublicationDate),
		JobType:     ad.EmploymentType.Label,
		Salary:      salary,
		Raw:         raw,
	}, true
}
