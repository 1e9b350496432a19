package source

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/pkg/jobtech"
)

func makeAds(n int, start int) []jobtech.Ad {
	ads := make([]jobtech.Ad, n)
	for i := range ads {
		id := start + i
		ads[i] = jobtech.Ad{
			ID:              fmt.Sprintf("%d", id),
			Headline:        fmt.Sprintf("Lagerarbetare %d", id),
			WebpageURL:      fmt.Sprintf("https://arbetsformedlingen.se/platsbanken/annonser/%d", id),
			PublicationDate: "2026-08-20T06:30:00",
			Employer:        jobtech.Employer{Name: "Nordic Fulfilment AB"},
			WorkplaceAddress: jobtech.WorkplaceAddress{
				Municipality: "Sigtuna",
				Region:       "Stockholms län",
			},
		}
	}
	return ads
}

func TestPlatsbankenFetch_SinglePage(t *testing.T) {
	mc := new(mockJobTech)
	mc.On("Search", mock.Anything, jobtech.SearchParams{Query: "lager", Offset: 0, Limit: 5}).
		Return(&jobtech.SearchResponse{Total: jobtech.Total{Value: 3}, Hits: makeAds(3, 1)}, nil)

	a := NewPlatsbanken(mc)
	items, err := a.Fetch(context.Background(), Options{Query: "lager", Limit: 5})

	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, model.SourcePlatsbanken, items[0].Source)
	assert.Equal(t, "1", items[0].ExternalID)
	assert.Equal(t, "Sigtuna", items[0].Location)
	require.NotNil(t, items[0].PostedAt)
	mc.AssertExpectations(t)
}

func TestPlatsbankenFetch_PagesUntilLimit(t *testing.T) {
	mc := new(mockJobTech)
	mc.On("Search", mock.Anything, jobtech.SearchParams{Query: "lager", Offset: 0, Limit: 100}).
		Return(&jobtech.SearchResponse{Total: jobtech.Total{Value: 150}, Hits: makeAds(100, 0)}, nil)
	mc.On("Search", mock.Anything, jobtech.SearchParams{Query: "lager", Offset: 100, Limit: 50}).
		Return(&jobtech.SearchResponse{Total: jobtech.Total{Value: 150}, Hits: makeAds(50, 100)}, nil)

	a := NewPlatsbanken(mc)
	items, err := a.Fetch(context.Background(), Options{Query: "lager", Limit: 150})

	require.NoError(t, err)
	assert.Len(t, items, 150)
	assert.Equal(t, "0", items[0].ExternalID)
	assert.Equal(t, "149", items[149].ExternalID)
	mc.AssertExpectations(t)
}

func TestPlatsbankenFetch_StopsOnShortPage(t *testing.T) {
	mc := new(mockJobTech)
	mc.On("Search", mock.Anything, jobtech.SearchParams{Query: "lager", Offset: 0, Limit: 100}).
		Return(&jobtech.SearchResponse{Total: jobtech.Total{Value: 40}, Hits: makeAds(40, 0)}, nil)

	a := NewPlatsbanken(mc)
	items, err := a.Fetch(context.Background(), Options{Query: "lager", Limit: 150})

	require.NoError(t, err)
	assert.Len(t, items, 40)
	mc.AssertNumberOfCalls(t, "Search", 1)
}

func TestPlatsbankenFetch_EmptyResult(t *testing.T) {
	mc := new(mockJobTech)
	mc.On("Search", mock.Anything, mock.Anything).
		Return(&jobtech.SearchResponse{Total: jobtech.Total{Value: 0}}, nil)

	a := NewPlatsbanken(mc)
	items, err := a.Fetch(context.Background(), Options{Query: "zzz", Limit: 10})

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPlatsbankenFetch_PageError(t *testing.T) {
	mc := new(mockJobTech)
	mc.On("Search", mock.Anything, jobtech.SearchParams{Query: "lager", Offset: 0, Limit: 100}).
		Return(&jobtech.SearchResponse{Total: jobtech.Total{Value: 150}, Hits: makeAds(100, 0)}, nil)
	mc.On("Search", mock.Anything, jobtech.SearchParams{Query: "lager", Offset: 100, Limit: 50}).
		Return(nil, eris.New("jobtech: unexpected status 502"))

	a := NewPlatsbanken(mc)
	items, err := a.Fetch(context.Background(), Options{Query: "lager", Limit: 150})

	assert.Error(t, err)
	assert.Nil(t, items)
	assert.Contains(t, err.Error(), "platsbanken fetch")
}

func TestPlatsbankenFetch_InvalidAdsDropped(t *testing.T) {
	hits := makeAds(2, 1)
	hits[1].Employer.Name = ""

	mc := new(mockJobTech)
	mc.On("Search", mock.Anything, mock.Anything).
		Return(&jobtech.SearchResponse{Total: jobtech.Total{Value: 2}, Hits: hits}, nil)

	a := NewPlatsbanken(mc)
	items, err := a.Fetch(context.Background(), Options{Query: "lager", Limit: 10})

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ExternalID)
}

func TestNormalizeAd_Fallbacks(t *testing.T) {
	t.Parallel()

	ad := jobtech.Ad{
		ID:               "77",
		Headline:         "Truckförare",
		Employer:         jobtech.Employer{Name: "Hamnen AB"},
		WorkplaceAddress: jobtech.WorkplaceAddress{Region: "Västra Götaland"},
	}

	it, ok := normalizeAd(ad)
	require.True(t, ok)
	assert.Equal(t, "Västra Götaland", it.Location)
	assert.Equal(t, "https://arbetsformedlingen.se/platsbanken/annonser/77", it.URL)
	assert.Nil(t, it.PostedAt)
	assert.Contains(t, string(it.Raw), "application_details")
}
