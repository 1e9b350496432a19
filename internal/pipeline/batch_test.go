package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rekrytera/signals-cli/internal/model"
)

// chunkTracker records, for each item, how many items had already finished
// when its own evaluation started. With strictly sequential chunks of size
// L, an item in chunk c can only start after all c*L earlier items finished.
type chunkTracker struct {
	mu        sync.Mutex
	startSnap map[string]int
	finished  int
}

func newChunkTracker() *chunkTracker {
	return &chunkTracker{startSnap: make(map[string]int)}
}

func (c *chunkTracker) Evaluate(_ context.Context, item model.Item) (model.Evaluation, error) {
	c.mu.Lock()
	c.startSnap[item.ExternalID] = c.finished
	c.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	c.mu.Lock()
	c.finished++
	c.mu.Unlock()
	return validEval(), nil
}

func newHappyStore() *mockStore {
	st := &mockStore{}
	st.On("FindOrCreateCompany", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("comp-1", nil)
	st.On("CreateRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("rec-1", nil)
	st.On("CreateSignal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("sig-1", nil)
	st.On("UpsertContact", mock.Anything, mock.Anything).Return("cont-1", nil)
	return st
}

func TestBatchRunner_ChunksRunSequentially(t *testing.T) {
	st := newHappyStore()
	tracker := newChunkTracker()
	items := pipeItems(7)

	outcomes := NewBatchRunner(st, tracker, 3).Run(context.Background(), items)

	require.Len(t, outcomes, 7)
	for i, item := range items {
		// Outcomes sit at their input positions.
		assert.Equal(t, item.ExternalID, outcomes[i].Item.ExternalID)
		assert.True(t, outcomes[i].Success)

		// Chunks of [3,3,1]: nothing in a later chunk starts before every
		// item of the earlier chunks has finished.
		snap, ok := tracker.startSnap[item.ExternalID]
		require.True(t, ok, "item %s was never evaluated", item.ExternalID)
		assert.GreaterOrEqual(t, snap, 3*(i/3),
			"item %s started before its chunk's turn", item.ExternalID)
	}
}

func TestBatchRunner_SingleFailureIsIsolated(t *testing.T) {
	st := &mockStore{}
	st.On("FindOrCreateCompany", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("comp-1", nil)
	st.On("CreateRecord", mock.Anything, itemWithID("job-1"), mock.Anything, mock.Anything).
		Return("", errors.New("insert failed: connection reset"))
	st.On("CreateRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("rec-1", nil)
	st.On("CreateSignal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("sig-1", nil)

	ev := &mockEvaluator{}
	ev.On("Evaluate", mock.Anything, mock.Anything).Return(validEval(), nil)

	outcomes := NewBatchRunner(st, ev, 3).Run(context.Background(), pipeItems(4))

	require.Len(t, outcomes, 4)
	var failed, succeeded int
	for i, o := range outcomes {
		if o.Success {
			succeeded++
			assert.Equal(t, "rec-1", o.RecordID)
			assert.Equal(t, "sig-1", o.SignalID)
			continue
		}
		failed++
		assert.Equal(t, 1, i, "only job-1 should fail")
		assert.Equal(t, model.CategoryError, o.Evaluation.Category)
		assert.False(t, o.Evaluation.IsValid)
		assert.Contains(t, o.Error, "insert failed")
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 1, failed)
}

func TestBatchRunner_EvaluationErrorBecomesErrorOutcome(t *testing.T) {
	st := &mockStore{}
	ev := &mockEvaluator{}
	ev.On("Evaluate", mock.Anything, mock.Anything).
		Return(model.Evaluation{}, errors.New("context deadline exceeded"))

	outcomes := NewBatchRunner(st, ev, 3).Run(context.Background(), pipeItems(1))

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, model.CategoryError, outcomes[0].Evaluation.Category)
	assert.Contains(t, outcomes[0].Error, "context deadline exceeded")

	// Nothing is persisted for an item that never got evaluated.
	st.AssertNotCalled(t, "FindOrCreateCompany", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "CreateRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchRunner_SignalOnlyForValidItems(t *testing.T) {
	st := newHappyStore()
	ev := &mockEvaluator{}
	ev.On("Evaluate", mock.Anything, itemWithID("job-0")).Return(validEval(), nil)
	ev.On("Evaluate", mock.Anything, itemWithID("job-1")).Return(invalidEval(), nil)

	outcomes := NewBatchRunner(st, ev, 3).Run(context.Background(), pipeItems(2))

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, "sig-1", outcomes[0].SignalID)
	assert.True(t, outcomes[1].Success)
	assert.Empty(t, outcomes[1].SignalID)

	st.AssertNumberOfCalls(t, "CreateSignal", 1)
	// Both verdicts still persist a record.
	st.AssertNumberOfCalls(t, "CreateRecord", 2)
}

func TestBatchRunner_ContactUpsertFailureIsSwallowed(t *testing.T) {
	st := &mockStore{}
	st.On("FindOrCreateCompany", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("comp-1", nil)
	st.On("CreateRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("rec-1", nil)
	st.On("CreateSignal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("sig-1", nil)
	st.On("UpsertContact", mock.Anything, mock.Anything).Return("", errors.New("db down"))

	eval := validEval()
	eval.ApplicationEmail = "jobb@lagerab.se"
	ev := &mockEvaluator{}
	ev.On("Evaluate", mock.Anything, mock.Anything).Return(eval, nil)

	outcomes := NewBatchRunner(st, ev, 3).Run(context.Background(), pipeItems(1))

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success, "a contact failure must not fail the item")
	assert.Empty(t, outcomes[0].ContactIDs)
	st.AssertNumberOfCalls(t, "UpsertContact", 1)
}

func TestBatchRunner_ContactsStampedAndCollected(t *testing.T) {
	st := &mockStore{}
	st.On("FindOrCreateCompany", mock.Anything, "Lager AB", "lagerab.se", model.SourceIndeed).Return("comp-1", nil)
	st.On("CreateRecord", mock.Anything, mock.Anything, mock.Anything, "comp-1").Return("rec-1", nil)
	st.On("CreateSignal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("sig-1", nil)
	st.On("UpsertContact", mock.Anything, mock.MatchedBy(func(c model.Contact) bool {
		return c.CompanyID == "comp-1" && c.RecordID == "rec-1" && c.Email == "erik.lindgren@lagerab.se"
	})).Return("cont-1", nil)

	eval := validEval()
	eval.ApplicationEmail = "erik.lindgren@lagerab.se"
	ev := &mockEvaluator{}
	ev.On("Evaluate", mock.Anything, mock.Anything).Return(eval, nil)

	outcomes := NewBatchRunner(st, ev, 3).Run(context.Background(), pipeItems(1))

	require.Len(t, outcomes, 1)
	assert.Equal(t, []string{"cont-1"}, outcomes[0].ContactIDs)
	st.AssertExpectations(t)
}

func TestBatchRunner_DuplicateContactSkipIsNotAnID(t *testing.T) {
	st := &mockStore{}
	st.On("FindOrCreateCompany", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("comp-1", nil)
	st.On("CreateRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("rec-1", nil)
	st.On("CreateSignal", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("sig-1", nil)
	// Benign skip: the store already has this contact.
	st.On("UpsertContact", mock.Anything, mock.Anything).Return("", nil)

	eval := validEval()
	eval.ApplicationEmail = "jobb@lagerab.se"
	ev := &mockEvaluator{}
	ev.On("Evaluate", mock.Anything, mock.Anything).Return(eval, nil)

	outcomes := NewBatchRunner(st, ev, 3).Run(context.Background(), pipeItems(1))

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Empty(t, outcomes[0].ContactIDs)
}

func TestNewBatchRunner_DefaultLimit(t *testing.T) {
	b := NewBatchRunner(&mockStore{}, &mockEvaluator{}, 0)
	assert.Equal(t, defaultConcurrency, b.limit)
}

func TestCompanyDomain(t *testing.T) {
	posting := model.Item{Source: model.SourcePlatsbanken, URL: "https://arbetsformedlingen.se/platsbanken/annonser/123"}
	lead := model.Item{Source: model.SourceGooglePlaces, URL: "https://www.lagerab.se/om-oss"}
	mapsOnly := model.Item{Source: model.SourceGooglePlaces, URL: "https://www.google.com/maps/place/abc"}

	// Application email wins whenever the evaluation produced one.
	assert.Equal(t, "lagerab.se", companyDomain(posting, model.Evaluation{ApplicationEmail: "jobb@lagerab.se"}))
	assert.Equal(t, "lagerab.se", companyDomain(lead, model.Evaluation{ApplicationEmail: "info@lagerab.se"}))

	// Job-board URLs never supply a domain.
	assert.Equal(t, "", companyDomain(posting, model.Evaluation{}))
	assert.Equal(t, "", companyDomain(posting, model.Evaluation{ApplicationEmail: "not-an-email"}))
	assert.Equal(t, "", companyDomain(posting, model.Evaluation{ApplicationEmail: "trailing@"}))

	// Places leads fall back to the website host, but never the maps URL.
	assert.Equal(t, "lagerab.se", companyDomain(lead, model.Evaluation{}))
	assert.Equal(t, "", companyDomain(mapsOnly, model.Evaluation{}))
	assert.Equal(t, "", companyDomain(model.Item{Source: model.SourceGooglePlaces}, model.Evaluation{}))
}
