package insights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"adpulse/internal/metrics"
	"adpulse/internal/store"
	"adpulse/pkg/logging"
)

const (
	defaultWindowDays   = 7
	defaultTopCampaigns = 30
)

// dataStore is the slice of the store the collector reads from.
type dataStore interface {
	GetConnectedAccounts(ctx context.Context, orgID, platform string) ([]store.Account, error)
	GetCampaignMetrics(ctx context.Context, orgID string, from, to time.Time) ([]metrics.Record, error)
	GetAccountMetrics(ctx context.Context, orgID string, from, to time.Time) ([]metrics.Record, error)
	CountActiveCampaigns(ctx context.Context, orgID string) (int, error)
}

// AccountInfo identifies one connected account in a snapshot.
type AccountInfo struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Name     string `json:"name"`
}

// Period labels the two comparison windows.
type Period struct {
	Current  string `json:"current"`
	Previous string `json:"previous"`
}

// CampaignComparison is one campaign's period-over-period comparison.
type CampaignComparison struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	AccountID    string `json:"account_id"`
	Platform     string `json:"platform"`
	metrics.Comparison
}

// OrgSnapshot is the full analysis context for one org: org totals,
// per-campaign comparisons, and anomaly flags. Snapshots are built fresh
// per call and never cached.
type OrgSnapshot struct {
	HasData             bool                 `json:"has_data"`
	Period              Period               `json:"period"`
	Accounts            []AccountInfo        `json:"accounts"`
	OrgTotals           metrics.Comparison   `json:"org_totals"`
	Campaigns           []CampaignComparison `json:"campaigns"`
	ActiveCampaignCount int                  `json:"active_campaign_count"`
	Anomalies           []metrics.Anomaly    `json:"anomalies"`
}

// CollectorConfig tunes the snapshot windows.
type CollectorConfig struct {
	WindowDays   int
	TopCampaigns int
}

// Collector assembles org snapshots. It is deterministic and side-effect
// free: the same stored data always yields the same snapshot.
type Collector struct {
	store    dataStore
	detector *metrics.Detector
	logger   logging.Logger

	windowDays int
	topN       int
	now        func() time.Time
}

func NewCollector(st dataStore, detector *metrics.Detector, logger logging.Logger, cfg CollectorConfig) *Collector {
	if detector == nil {
		detector = metrics.NewDetector(nil)
	}
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	topN := cfg.TopCampaigns
	if topN <= 0 {
		topN = defaultTopCampaigns
	}
	return &Collector{
		store:      st,
		detector:   detector,
		logger:     logger,
		windowDays: windowDays,
		topN:       topN,
		now:        time.Now,
	}
}

// Collect builds the org snapshot for the trailing window against the
// window before it.
func (c *Collector) Collect(ctx context.Context, orgID string) (OrgSnapshot, error) {
	today := c.now().UTC().Truncate(24 * time.Hour)
	windowStart := today.AddDate(0, 0, -c.windowDays)
	previousStart := today.AddDate(0, 0, -2*c.windowDays)

	accounts, err := c.store.GetConnectedAccounts(ctx, orgID, "")
	if err != nil {
		return OrgSnapshot{}, fmt.Errorf("collect accounts: %w", err)
	}
	if len(accounts) == 0 {
		return OrgSnapshot{HasData: false}, nil
	}

	currentCampaigns, err := c.store.GetCampaignMetrics(ctx, orgID, windowStart, today)
	if err != nil {
		return OrgSnapshot{}, fmt.Errorf("collect current campaign metrics: %w", err)
	}
	previousCampaigns, err := c.store.GetCampaignMetrics(ctx, orgID, previousStart, windowStart)
	if err != nil {
		return OrgSnapshot{}, fmt.Errorf("collect previous campaign metrics: %w", err)
	}
	currentAccounts, err := c.store.GetAccountMetrics(ctx, orgID, windowStart, today)
	if err != nil {
		return OrgSnapshot{}, fmt.Errorf("collect current account metrics: %w", err)
	}
	previousAccounts, err := c.store.GetAccountMetrics(ctx, orgID, previousStart, windowStart)
	if err != nil {
		return OrgSnapshot{}, fmt.Errorf("collect previous account metrics: %w", err)
	}

	snapshot := OrgSnapshot{
		Period: Period{
			Current:  fmt.Sprintf("%s ~ %s", windowStart.Format("2006-01-02"), today.Format("2006-01-02")),
			Previous: fmt.Sprintf("%s ~ %s", previousStart.Format("2006-01-02"), windowStart.Format("2006-01-02")),
		},
	}
	for _, a := range accounts {
		snapshot.Accounts = append(snapshot.Accounts, AccountInfo{ID: a.ID, Platform: a.Platform, Name: a.Name})
	}

	if len(currentCampaigns) == 0 && len(currentAccounts) == 0 {
		return snapshot, nil
	}
	snapshot.HasData = true

	campaigns := c.compareCampaigns(currentCampaigns, previousCampaigns)

	// Anomalies come from every campaign comparison, not just the top-N
	// slice the narrative sees.
	for _, campaign := range campaigns {
		snapshot.Anomalies = append(snapshot.Anomalies,
			c.detector.Detect(campaign.CampaignID, campaign.CampaignName, campaign.Changes)...)
	}

	if len(campaigns) > c.topN {
		campaigns = campaigns[:c.topN]
	}
	snapshot.Campaigns = campaigns

	snapshot.OrgTotals = metrics.Compare(
		metrics.Aggregate(currentAccounts),
		metrics.Aggregate(previousAccounts),
	)

	activeCount, err := c.store.CountActiveCampaigns(ctx, orgID)
	if err != nil {
		return OrgSnapshot{}, fmt.Errorf("collect active campaign count: %w", err)
	}
	snapshot.ActiveCampaignCount = activeCount

	return snapshot, nil
}

type campaignGroup struct {
	name      string
	accountID string
	platform  string
	records   []metrics.Record
}

func groupByCampaign(records []metrics.Record) map[string]*campaignGroup {
	groups := make(map[string]*campaignGroup)
	for _, r := range records {
		if r.EntityID == "" {
			continue
		}
		group, ok := groups[r.EntityID]
		if !ok {
			group = &campaignGroup{name: r.EntityName, accountID: r.AccountID, platform: r.Platform}
			groups[r.EntityID] = group
		}
		group.records = append(group.records, r)
	}
	return groups
}

// compareCampaigns aggregates both windows per campaign and sorts by
// current spend descending, entity id ascending on ties.
func (c *Collector) compareCampaigns(current, previous []metrics.Record) []CampaignComparison {
	currentGroups := groupByCampaign(current)
	previousGroups := groupByCampaign(previous)

	ids := make(map[string]struct{}, len(currentGroups)+len(previousGroups))
	for id := range currentGroups {
		ids[id] = struct{}{}
	}
	for id := range previousGroups {
		ids[id] = struct{}{}
	}

	campaigns := make([]CampaignComparison, 0, len(ids))
	for id := range ids {
		var currentRecords, previousRecords []metrics.Record
		name, accountID, platform := "", "", ""
		if group, ok := currentGroups[id]; ok {
			currentRecords = group.records
			name, accountID, platform = group.name, group.accountID, group.platform
		}
		if group, ok := previousGroups[id]; ok {
			previousRecords = group.records
			if name == "" {
				name, accountID, platform = group.name, group.accountID, group.platform
			}
		}

		campaigns = append(campaigns, CampaignComparison{
			CampaignID:   id,
			CampaignName: name,
			AccountID:    accountID,
			Platform:     platform,
			Comparison:   metrics.Compare(metrics.Aggregate(currentRecords), metrics.Aggregate(previousRecords)),
		})
	}

	sort.Slice(campaigns, func(i, j int) bool {
		if campaigns[i].Current.Spend != campaigns[j].Current.Spend {
			return campaigns[i].Current.Spend > campaigns[j].Current.Spend
		}
		return campaigns[i].CampaignID < campaigns[j].CampaignID
	})

	return campaigns
}
