// ABOUTME: Tests for model usage recording and aggregation
// ABOUTME: Verifies totals, failure counts and model/time filters

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageStats(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*LLMUsage{
		{ModelName: "deepseek-v3", UserID: "system", RequestType: "replyer", Endpoint: "/chat/completions",
			PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Cost: 0.5, Status: "success", Timestamp: base},
		{ModelName: "deepseek-v3", UserID: "system", RequestType: "planner", Endpoint: "/chat/completions",
			PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Cost: 0.25, Status: "success", Timestamp: base.Add(time.Hour)},
		{ModelName: "qwen", UserID: "system", RequestType: "replyer", Endpoint: "/chat/completions",
			PromptTokens: 1, CompletionTokens: 0, TotalTokens: 1, Cost: 0, Status: "error", Timestamp: base.Add(2 * time.Hour)},
	}
	for _, r := range records {
		require.NoError(t, store.RecordUsage(ctx, r))
		assert.NotZero(t, r.ID)
	}

	all, err := store.UsageStats(ctx, UsageFilter{})
	require.NoError(t, err)
	assert.Equal(t, &UsageStats{
		PromptTokens:     111,
		CompletionTokens: 55,
		TotalTokens:      166,
		Cost:             0.75,
		RequestCount:     3,
		FailedCount:      1,
	}, all)

	model := "deepseek-v3"
	byModel, err := store.UsageStats(ctx, UsageFilter{ModelName: &model})
	require.NoError(t, err)
	assert.Equal(t, int64(2), byModel.RequestCount)
	assert.Equal(t, int64(165), byModel.TotalTokens)
	assert.Zero(t, byModel.FailedCount)

	replyer := "replyer"
	byType, err := store.UsageStats(ctx, UsageFilter{RequestType: &replyer})
	require.NoError(t, err)
	assert.Equal(t, int64(2), byType.RequestCount)

	since := base.Add(30 * time.Minute)
	until := base.Add(90 * time.Minute)
	window, err := store.UsageStats(ctx, UsageFilter{Since: &since, Until: &until})
	require.NoError(t, err)
	assert.Equal(t, int64(1), window.RequestCount)
	assert.Equal(t, int64(15), window.TotalTokens)
}

func TestUsageStats_Empty(t *testing.T) {
	store := newInitializedStore(t)

	stats, err := store.UsageStats(context.Background(), UsageFilter{})
	require.NoError(t, err)
	assert.Equal(t, &UsageStats{}, stats)
}
