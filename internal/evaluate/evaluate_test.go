package evaluate

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rekrytera/signals-cli/internal/config"
	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/internal/monitoring"
	"github.com/rekrytera/signals-cli/pkg/anthropic"
)

type mockAI struct {
	mock.Mock
}

func (m *mockAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockAlerter struct {
	mock.Mock
}

func (m *mockAlerter) Emit(source, stage string, severity monitoring.Severity, title, message string, details map[string]any) {
	m.Called(source, stage, severity, title, message, details)
}

func textResp(modelID, text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:      "msg_test",
		Model:   modelID,
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func forModel(modelID string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == modelID
	})
}

var testCfg = config.AnthropicConfig{
	Model:         "claude-sonnet-4-5-20250929",
	FallbackModel: "claude-haiku-4-5-20251001",
	MaxTokens:     1024,
	Temperature:   0.2,
}

const validResponse = `{
	"isValid": true,
	"score": 82,
	"category": "Warehouse & Logistics",
	"experience": "No prior experience required",
	"reasoning": "High-volume warehouse role with shift work.",
	"applicationEmail": "jobb@lagret.se",
	"duration": "6 months"
}`

func testItem() model.Item {
	return model.Item{
		Source:      model.SourceIndeed,
		ExternalID:  "job-1",
		Title:       "Lagerarbetare",
		Company:     "Lagret AB",
		Location:    "Stockholm",
		Description: "Vi söker lagerarbetare för omgående start.",
	}
}

func TestEvaluate_PrimarySucceeds(t *testing.T) {
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, forModel(testCfg.Model)).
		Return(textResp(testCfg.Model, validResponse), nil)
	alerts := new(mockAlerter)

	e := New(AttemptsFromConfig(testCfg, ai), alerts, testCfg)
	eval, err := e.Evaluate(context.Background(), testItem())

	require.NoError(t, err)
	assert.True(t, eval.IsValid)
	assert.Equal(t, 82, eval.Score)
	assert.Equal(t, "Warehouse & Logistics", eval.Category)
	assert.Equal(t, "jobb@lagret.se", eval.ApplicationEmail)
	assert.Equal(t, "6 months", eval.Duration)
	assert.Equal(t, testCfg.Model, eval.Model)
	assert.False(t, eval.Degraded())
	ai.AssertNumberOfCalls(t, "CreateMessage", 1)
	alerts.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluate_TransportFailureEscalatesToFallback(t *testing.T) {
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, forModel(testCfg.Model)).
		Return(nil, eris.New("anthropic: create message: 529 overloaded"))
	ai.On("CreateMessage", mock.Anything, forModel(testCfg.FallbackModel)).
		Return(textResp(testCfg.FallbackModel, validResponse), nil)
	alerts := new(mockAlerter)

	e := New(AttemptsFromConfig(testCfg, ai), alerts, testCfg)
	eval, err := e.Evaluate(context.Background(), testItem())

	require.NoError(t, err)
	assert.True(t, eval.IsValid)
	assert.Equal(t, testCfg.FallbackModel, eval.Model)
	ai.AssertNumberOfCalls(t, "CreateMessage", 2)
	alerts.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluate_SchemaRejectEscalatesToFallback(t *testing.T) {
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, forModel(testCfg.Model)).
		Return(textResp(testCfg.Model, `{"score": 82}`), nil)
	ai.On("CreateMessage", mock.Anything, forModel(testCfg.FallbackModel)).
		Return(textResp(testCfg.FallbackModel, validResponse), nil)
	alerts := new(mockAlerter)

	e := New(AttemptsFromConfig(testCfg, ai), alerts, testCfg)
	eval, err := e.Evaluate(context.Background(), testItem())

	require.NoError(t, err)
	assert.True(t, eval.IsValid)
	assert.Equal(t, testCfg.FallbackModel, eval.Model)
}

func TestEvaluate_ExhaustedAttemptsReturnDegraded(t *testing.T) {
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, eris.New("anthropic: create message: connection refused"))
	alerts := new(mockAlerter)
	alerts.On("Emit",
		"indeed", monitoring.StageAIEvaluation, monitoring.SeverityWarning,
		"AI evaluation degraded", mock.Anything, mock.Anything,
	).Return()

	e := New(AttemptsFromConfig(testCfg, ai), alerts, testCfg)
	eval, err := e.Evaluate(context.Background(), testItem())

	require.NoError(t, err)
	assert.False(t, eval.IsValid)
	assert.Equal(t, 0, eval.Score)
	assert.Equal(t, model.CategoryEvaluationFailed, eval.Category)
	assert.Contains(t, eval.Reasoning, "connection refused")
	assert.True(t, eval.Degraded())
	ai.AssertNumberOfCalls(t, "CreateMessage", 2)
	alerts.AssertExpectations(t)
}

func TestEvaluate_ContextCancellationReturnsError(t *testing.T) {
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, context.Canceled)
	alerts := new(mockAlerter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(AttemptsFromConfig(testCfg, ai), alerts, testCfg)
	_, err := e.Evaluate(ctx, testItem())

	require.ErrorIs(t, err, context.Canceled)
	alerts.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluate_SendsCachedSystemAndTemperature(t *testing.T) {
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 &&
			req.System[0].CacheControl != nil &&
			req.Temperature != nil && *req.Temperature == 0.2 &&
			req.MaxTokens == 1024
	})).Return(textResp(testCfg.Model, validResponse), nil)

	e := New(AttemptsFromConfig(testCfg, ai), new(mockAlerter), testCfg)
	_, err := e.Evaluate(context.Background(), testItem())

	require.NoError(t, err)
	ai.AssertExpectations(t)
}

func TestAttemptsFromConfig(t *testing.T) {
	t.Parallel()

	ai := new(mockAI)

	t.Run("primary then fallback", func(t *testing.T) {
		t.Parallel()
		attempts := AttemptsFromConfig(testCfg, ai)
		require.Len(t, attempts, 2)
		assert.Equal(t, testCfg.Model, attempts[0].Model)
		assert.Equal(t, testCfg.FallbackModel, attempts[1].Model)
	})

	t.Run("no fallback configured", func(t *testing.T) {
		t.Parallel()
		cfg := testCfg
		cfg.FallbackModel = ""
		attempts := AttemptsFromConfig(cfg, ai)
		require.Len(t, attempts, 1)
	})

	t.Run("fallback equal to primary collapses", func(t *testing.T) {
		t.Parallel()
		cfg := testCfg
		cfg.FallbackModel = cfg.Model
		attempts := AttemptsFromConfig(cfg, ai)
		require.Len(t, attempts, 1)
	})
}
