// ABOUTME: Aggregated model usage statistics over the llm_usage table
// ABOUTME: Sums tokens, cost and call counts with optional model and time filters

package store

import (
	"context"
	"fmt"
	"time"
)

// UsageFilter narrows UsageStats. Nil fields are not filtered on.
type UsageFilter struct {
	ModelName   *string
	RequestType *string
	Since       *time.Time
	Until       *time.Time
}

// UsageStats contains aggregated usage statistics.
type UsageStats struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Cost             float64
	RequestCount     int64
	FailedCount      int64
}

// RecordUsage stores one model call.
func (s *SQLiteStore) RecordUsage(ctx context.Context, usage *LLMUsage) error {
	if err := Insert(ctx, s.db, usage); err != nil {
		return err
	}
	s.logger.Debug("saved model usage",
		"id", usage.ID,
		"model", usage.ModelName,
		"request_type", usage.RequestType,
		"total_tokens", usage.TotalTokens,
	)
	return nil
}

// UsageStats returns aggregated usage statistics with optional filters.
// Calls whose status is not "success" are counted in FailedCount.
func (s *SQLiteStore) UsageStats(ctx context.Context, filter UsageFilter) (*UsageStats, error) {
	query := `
		SELECT
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cost), 0),
			COUNT(*),
			COALESCE(SUM(CASE WHEN status != 'success' THEN 1 ELSE 0 END), 0)
		FROM llm_usage
		WHERE 1=1
	`
	args := []any{}

	if filter.ModelName != nil {
		query += " AND model_name = ?"
		args = append(args, *filter.ModelName)
	}
	if filter.RequestType != nil {
		query += " AND request_type = ?"
		args = append(args, *filter.RequestType)
	}
	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	if filter.Until != nil {
		query += " AND timestamp < ?"
		args = append(args, filter.Until.UTC().Format(timeLayout))
	}

	var stats UsageStats
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.PromptTokens,
		&stats.CompletionTokens,
		&stats.TotalTokens,
		&stats.Cost,
		&stats.RequestCount,
		&stats.FailedCount,
	)
	if err != nil {
		return nil, fmt.Errorf("querying usage stats: %w", err)
	}
	return &stats, nil
}
