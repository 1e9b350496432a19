package pipeline

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/internal/monitoring"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindOrCreateCompany(ctx context.Context, name, domain string, source model.Source) (string, error) {
	args := m.Called(ctx, name, domain, source)
	return args.String(0), args.Error(1)
}

func (m *mockStore) ExistingIdentifiers(ctx context.Context, source model.Source) (map[string]struct{}, error) {
	args := m.Called(ctx, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *mockStore) CreateRecord(ctx context.Context, item model.Item, eval model.Evaluation, companyID string) (string, error) {
	args := m.Called(ctx, item, eval, companyID)
	return args.String(0), args.Error(1)
}

func (m *mockStore) CreateSignal(ctx context.Context, companyID, recordID string, item model.Item, eval model.Evaluation) (string, error) {
	args := m.Called(ctx, companyID, recordID, item, eval)
	return args.String(0), args.Error(1)
}

func (m *mockStore) UpsertContact(ctx context.Context, contact model.Contact) (string, error) {
	args := m.Called(ctx, contact)
	return args.String(0), args.Error(1)
}

// --- Evaluator Mock ---

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(ctx context.Context, item model.Item) (model.Evaluation, error) {
	args := m.Called(ctx, item)
	return args.Get(0).(model.Evaluation), args.Error(1)
}

// --- Alerter Mock ---

type mockAlerter struct {
	mock.Mock
}

func (m *mockAlerter) Emit(source, stage string, severity monitoring.Severity, title, message string, details map[string]any) {
	m.Called(source, stage, severity, title, message, details)
}

// --- Fixtures ---

func pipeItem(i int) model.Item {
	return model.Item{
		Source:      model.SourceIndeed,
		ExternalID:  fmt.Sprintf("job-%d", i),
		Title:       "Lagerarbetare",
		Company:     "Lager AB",
		Location:    "Stockholm",
		Description: "Truckförare till lager i Årsta.",
		URL:         fmt.Sprintf("https://indeed.com/job/job-%d", i),
	}
}

func pipeItems(n int) []model.Item {
	items := make([]model.Item, n)
	for i := range items {
		items[i] = pipeItem(i)
	}
	return items
}

func validEval() model.Evaluation {
	return model.Evaluation{
		IsValid:   true,
		Score:     82,
		Category:  "Warehouse & Logistics",
		Reasoning: "High-volume warehouse role.",
	}
}

func invalidEval() model.Evaluation {
	return model.Evaluation{
		IsValid:   false,
		Score:     20,
		Category:  "Other",
		Reasoning: "Specialist white-collar role.",
	}
}

func itemWithID(externalID string) any {
	return mock.MatchedBy(func(it model.Item) bool { return it.ExternalID == externalID })
}
