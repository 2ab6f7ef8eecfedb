package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetConnectedAccounts lists active connected accounts for an org,
// optionally filtered by platform.
func (s *Store) GetConnectedAccounts(ctx context.Context, orgID, platform string) ([]Account, error) {
	if orgID == "" {
		return nil, fmt.Errorf("org ID is required")
	}

	query := `SELECT id, org_id, platform, platform_account_id, account_name, currency, is_active, created_at
		FROM connected_accounts
		WHERE org_id = $1 AND is_active = TRUE`
	args := []any{orgID}
	if platform != "" {
		query += ` AND platform = $2`
		args = append(args, platform)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get connected accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		var externalID, name, currency sql.NullString
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Platform, &externalID, &name, &currency, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.ExternalID = externalID.String
		a.Name = name.String
		a.Currency = currency.String
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get connected accounts rows: %w", err)
	}

	return accounts, nil
}

// ErrAccountNotFound is returned when an account does not exist or belongs
// to another org.
var ErrAccountNotFound = errors.New("account not found")

// GetAccount fetches one account scoped to the org.
func (s *Store) GetAccount(ctx context.Context, orgID, accountID string) (Account, error) {
	var a Account
	var externalID, name, currency sql.NullString
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, org_id, platform, platform_account_id, account_name, currency, is_active, created_at
		 FROM connected_accounts
		 WHERE id = $1 AND org_id = $2`,
		accountID,
		orgID,
	).Scan(&a.ID, &a.OrgID, &a.Platform, &externalID, &name, &currency, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	a.ExternalID = externalID.String
	a.Name = name.String
	a.Currency = currency.String
	return a, nil
}

// AccountBelongsToOrg reports whether the account is owned by the org.
func (s *Store) AccountBelongsToOrg(ctx context.Context, orgID, accountID string) (bool, error) {
	if orgID == "" || accountID == "" {
		return false, nil
	}

	var id string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM connected_accounts WHERE id = $1 AND org_id = $2`,
		accountID,
		orgID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check account ownership: %w", err)
	}
	return true, nil
}

// GetCampaigns lists campaigns under one of the org's accounts.
func (s *Store) GetCampaigns(ctx context.Context, orgID, accountID string) ([]Campaign, error) {
	if orgID == "" {
		return nil, fmt.Errorf("org ID is required")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT c.id, c.account_id, c.external_id, c.name, c.status, c.budget, a.platform
		 FROM campaigns c
		 JOIN connected_accounts a ON a.id = c.account_id
		 WHERE a.org_id = $1 AND c.account_id = $2
		 ORDER BY c.name ASC`,
		orgID,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("get campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		var c Campaign
		var budget sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.AccountID, &c.ExternalID, &c.Name, &c.Status, &budget, &c.Platform); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Budget = budget.Float64
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get campaigns rows: %w", err)
	}

	return campaigns, nil
}

// CountActiveCampaigns counts enabled campaigns across the org's accounts.
func (s *Store) CountActiveCampaigns(ctx context.Context, orgID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*)
		 FROM campaigns c
		 JOIN connected_accounts a ON a.id = c.account_id
		 WHERE a.org_id = $1 AND c.status = 'enabled'`,
		orgID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active campaigns: %w", err)
	}
	return count, nil
}

// ListActiveOrgIDs lists organizations with at least one active connected
// account. The insight job iterates over this set.
func (s *Store) ListActiveOrgIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT DISTINCT org_id FROM connected_accounts WHERE is_active = TRUE ORDER BY org_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active orgs: %w", err)
	}
	defer rows.Close()

	var orgIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan org id: %w", err)
		}
		orgIDs = append(orgIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active orgs rows: %w", err)
	}

	return orgIDs, nil
}
