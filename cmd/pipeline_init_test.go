package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekrytera/signals-cli/internal/config"
	"github.com/rekrytera/signals-cli/internal/model"
)

func validRunConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
		Anthropic: config.AnthropicConfig{
			Key:           "test-key",
			Model:         "claude-sonnet-4-5-20250929",
			FallbackModel: "claude-haiku-4-5-20251001",
			MaxTokens:     1024,
			Temperature:   0.2,
		},
		Pipeline: config.PipelineConfig{Concurrency: 3, DefaultLimit: 25},
		Registry: config.RegistryConfig{Path: filepath.Join(t.TempDir(), "missing.yaml")},
	}
}

func TestInitPipeline_BuildsFullEnvironment(t *testing.T) {
	cfg = validRunConfig(t)

	env, err := initPipeline(context.Background())
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Registry)
	assert.NotNil(t, env.Alerts)

	// One adapter per known source, each reporting its own identity.
	assert.Len(t, env.Adapters, len(model.AllSources))
	for _, src := range model.AllSources {
		adapter, ok := env.Adapters[src]
		require.True(t, ok, "missing adapter for %s", src)
		assert.Equal(t, src, adapter.Source())
	}
}

func TestInitPipeline_MigratesStore(t *testing.T) {
	cfg = validRunConfig(t)

	env, err := initPipeline(context.Background())
	require.NoError(t, err)
	defer env.Close()

	// The runs table exists after init, so history writes work immediately.
	err = env.Store.SaveRun(context.Background(), model.RunResult{
		RunID:       "run-init",
		Source:      model.SourceIndeed,
		StartedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	})
	assert.NoError(t, err)
}

func TestInitPipeline_RejectsIncompleteConfig(t *testing.T) {
	c := validRunConfig(t)
	c.Anthropic.Key = ""
	cfg = c

	env, err := initPipeline(context.Background())
	require.Error(t, err)
	assert.Nil(t, env)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestTimeoutOrDefault(t *testing.T) {
	assert.Equal(t, 45*time.Second, timeoutOrDefault(45, 30*time.Second))
	assert.Equal(t, 30*time.Second, timeoutOrDefault(0, 30*time.Second))
	assert.Equal(t, 30*time.Second, timeoutOrDefault(-1, 30*time.Second))
}
