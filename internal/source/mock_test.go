package source

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/rekrytera/signals-cli/pkg/jobtech"
	"github.com/rekrytera/signals-cli/pkg/places"
)

// mockApify implements apify.Client.
type mockApify struct {
	mock.Mock
}

func (m *mockApify) RunActorSync(ctx context.Context, actorID string, input any) ([]json.RawMessage, error) {
	args := m.Called(ctx, actorID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

// mockJobTech implements jobtech.Client.
type mockJobTech struct {
	mock.Mock
}

func (m *mockJobTech) Search(ctx context.Context, params jobtech.SearchParams) (*jobtech.SearchResponse, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobtech.SearchResponse), args.Error(1)
}

// mockPlaces implements places.Client.
type mockPlaces struct {
	mock.Mock
}

func (m *mockPlaces) TextSearch(ctx context.Context, query string, pageSize int) (*places.TextSearchResponse, error) {
	args := m.Called(ctx, query, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*places.TextSearchResponse), args.Error(1)
}

func rawJSON(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}
