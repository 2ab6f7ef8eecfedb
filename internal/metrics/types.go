package metrics

import "time"

// Entity types found in daily metric rows.
const (
	EntityAccount  = "account"
	EntityCampaign = "campaign"
	EntityAdGroup  = "ad_group"
)

// Anomaly types.
const (
	AnomalySpendSpike     = "spend_spike"
	AnomalyCTRDrop        = "ctr_drop"
	AnomalyConversionDrop = "conversion_drop"
	AnomalyCPASpike       = "cpa_spike"
)

// Severities, in increasing order.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Record is one daily metric row for a single entity.
type Record struct {
	AccountID       string    `json:"account_id"`
	EntityType      string    `json:"entity_type"`
	EntityID        string    `json:"entity_id"`
	EntityName      string    `json:"entity_name"`
	Platform        string    `json:"platform"`
	Date            time.Time `json:"date"`
	Impressions     int64     `json:"impressions"`
	Clicks          int64     `json:"clicks"`
	Spend           float64   `json:"spend"`
	Conversions     float64   `json:"conversions"`
	ConversionValue float64   `json:"conversion_value"`
	Currency        string    `json:"currency"`
}

// Totals holds aggregated sums plus derived ratios. A ratio is nil exactly
// when its denominator is zero; it serializes as JSON null rather than a
// fabricated zero.
type Totals struct {
	Impressions     int64    `json:"impressions"`
	Clicks          int64    `json:"clicks"`
	Spend           float64  `json:"spend"`
	Conversions     float64  `json:"conversions"`
	ConversionValue float64  `json:"conversion_value"`
	CTR             *float64 `json:"ctr"`
	CPC             *float64 `json:"cpc"`
	CPM             *float64 `json:"cpm"`
	ROAS            *float64 `json:"roas"`
	CPA             *float64 `json:"cpa"`
}

// Comparison is a pair of period totals with percentage changes. A change is
// nil when the previous value is zero.
type Comparison struct {
	Current  Totals              `json:"current"`
	Previous Totals              `json:"previous"`
	Changes  map[string]*float64 `json:"changes"`
}

// Anomaly flags a notable change on a single entity.
type Anomaly struct {
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
}
