package store

import (
	"context"
	"fmt"
)

// SaveInsight persists one generated insight and returns its id.
func (s *Store) SaveInsight(ctx context.Context, in Insight) (string, error) {
	if in.OrgID == "" {
		return "", fmt.Errorf("org ID is required")
	}

	var id string
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO insights (org_id, type, priority, title, summary, detailed_analysis)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		in.OrgID,
		in.Type,
		in.Priority,
		in.Title,
		in.Summary,
		in.DetailedAnalysis,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save insight: %w", err)
	}

	return id, nil
}

// SaveAction persists one recommended action for an insight.
func (s *Store) SaveAction(ctx context.Context, a Action) (string, error) {
	if a.InsightID == "" {
		return "", fmt.Errorf("insight ID is required")
	}

	status := a.Status
	if status == "" {
		status = "pending"
	}

	var id string
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO insight_actions (insight_id, org_id, description, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		a.InsightID,
		a.OrgID,
		a.Description,
		status,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save action: %w", err)
	}

	return id, nil
}

// GetRecentInsights lists the org's newest insights.
func (s *Store) GetRecentInsights(ctx context.Context, orgID string, limit int) ([]Insight, error) {
	if orgID == "" {
		return nil, fmt.Errorf("org ID is required")
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, org_id, type, priority, title, summary, detailed_analysis, created_at
		 FROM insights
		 WHERE org_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		orgID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get recent insights: %w", err)
	}
	defer rows.Close()

	var insights []Insight
	for rows.Next() {
		var in Insight
		if err := rows.Scan(&in.ID, &in.OrgID, &in.Type, &in.Priority, &in.Title, &in.Summary, &in.DetailedAnalysis, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get recent insights rows: %w", err)
	}

	return insights, nil
}
