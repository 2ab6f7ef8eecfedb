package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"adpulse/internal/metrics"
)

// MetricsFilter narrows a daily metrics read. Zero values mean "no filter".
type MetricsFilter struct {
	AccountID  string
	CampaignID string
	EntityType string
}

// GetDailyMetrics reads daily metric rows for the org between two dates
// (inclusive), ordered by date then entity.
func (s *Store) GetDailyMetrics(ctx context.Context, orgID string, from, to time.Time, filter MetricsFilter) ([]metrics.Record, error) {
	if orgID == "" {
		return nil, fmt.Errorf("org ID is required")
	}

	query := `SELECT m.account_id, m.entity_type, m.entity_id, m.entity_name,
		a.platform, m.date, m.impressions, m.clicks, m.spend, m.conversions,
		m.conversion_value, m.currency
		FROM daily_metrics m
		JOIN connected_accounts a ON a.id = m.account_id
		WHERE a.org_id = $1 AND m.date >= $2 AND m.date <= $3`
	args := []any{orgID, from, to}

	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		query += fmt.Sprintf(` AND m.account_id = $%d`, len(args))
	}
	if filter.CampaignID != "" {
		args = append(args, filter.CampaignID)
		query += fmt.Sprintf(` AND m.entity_id = $%d`, len(args))
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(` AND m.entity_type = $%d`, len(args))
	}
	query += ` ORDER BY m.date ASC, m.entity_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get daily metrics: %w", err)
	}
	defer rows.Close()

	var records []metrics.Record
	for rows.Next() {
		var r metrics.Record
		var entityName, currency sql.NullString
		if err := rows.Scan(
			&r.AccountID,
			&r.EntityType,
			&r.EntityID,
			&entityName,
			&r.Platform,
			&r.Date,
			&r.Impressions,
			&r.Clicks,
			&r.Spend,
			&r.Conversions,
			&r.ConversionValue,
			&currency,
		); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		r.EntityName = entityName.String
		r.Currency = currency.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get daily metrics rows: %w", err)
	}

	return records, nil
}

// GetCampaignMetrics reads campaign-level rows for the org in a window.
func (s *Store) GetCampaignMetrics(ctx context.Context, orgID string, from, to time.Time) ([]metrics.Record, error) {
	return s.GetDailyMetrics(ctx, orgID, from, to, MetricsFilter{EntityType: metrics.EntityCampaign})
}

// GetAccountMetrics reads account-level rows for the org in a window.
func (s *Store) GetAccountMetrics(ctx context.Context, orgID string, from, to time.Time) ([]metrics.Record, error) {
	return s.GetDailyMetrics(ctx, orgID, from, to, MetricsFilter{EntityType: metrics.EntityAccount})
}
