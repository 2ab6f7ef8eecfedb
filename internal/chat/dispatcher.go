package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"adpulse/internal/connectors"
	"adpulse/internal/insights"
	"adpulse/internal/metrics"
	"adpulse/internal/store"
	"adpulse/pkg/llm"
	"adpulse/pkg/logging"
)

// toolStore is the slice of the store the tool handlers read from.
type toolStore interface {
	GetConnectedAccounts(ctx context.Context, orgID, platform string) ([]store.Account, error)
	GetAccount(ctx context.Context, orgID, accountID string) (store.Account, error)
	GetCampaigns(ctx context.Context, orgID, accountID string) ([]store.Campaign, error)
	GetDailyMetrics(ctx context.Context, orgID string, from, to time.Time, filter store.MetricsFilter) ([]metrics.Record, error)
	GetRecentInsights(ctx context.Context, orgID string, limit int) ([]store.Insight, error)
}

// snapshotCollector builds one org snapshot per call.
type snapshotCollector interface {
	Collect(ctx context.Context, orgID string) (insights.OrgSnapshot, error)
}

type toolHandler func(ctx context.Context, orgID string, args map[string]any) (string, error)

// Dispatcher maps model-requested tool calls onto data handlers. Every call
// produces exactly one result string: validation failures, cross-org access
// attempts and handler errors all come back as structured error payloads so
// the model-side turn never deadlocks on a missing tool output.
type Dispatcher struct {
	store    toolStore
	weekly   snapshotCollector
	monthly  snapshotCollector
	queries  connectors.QueryRunner
	logger   logging.Logger
	handlers map[string]toolHandler
	required map[string][]string
}

type DispatcherConfig struct {
	Store   toolStore
	Weekly  snapshotCollector
	Monthly snapshotCollector
	Queries connectors.QueryRunner
	Logger  logging.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		store:   cfg.Store,
		weekly:  cfg.Weekly,
		monthly: cfg.Monthly,
		queries: cfg.Queries,
		logger:  cfg.Logger,
	}
	d.handlers = map[string]toolHandler{
		"get_account_summary":        d.accountSummary,
		"get_campaign_list":          d.campaignList,
		"get_performance_metrics":    d.performanceMetrics,
		"get_performance_comparison": d.performanceComparison,
		"get_recent_insights":        d.recentInsights,
		"run_structured_query":       d.structuredQuery,
	}
	d.required = make(map[string][]string, len(ToolDefinitions))
	for _, def := range ToolDefinitions {
		d.required[def.Function.Name] = requiredParams(def.Function.Parameters)
	}
	return d
}

// Tools returns the registry in the shape the LLM provider expects.
func (d *Dispatcher) Tools() []llm.Tool {
	tools := make([]llm.Tool, 0, len(ToolDefinitions))
	for _, def := range ToolDefinitions {
		tools = append(tools, llm.Tool{
			Name:        def.Function.Name,
			Description: def.Function.Description,
			Parameters:  def.Function.Parameters,
		})
	}
	return tools
}

// Execute runs one tool call and always returns a result payload. Panics
// and errors in handlers become error payloads for that call only.
func (d *Dispatcher) Execute(ctx context.Context, orgID string, call llm.ToolCall) (result string) {
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.WithFields(logging.Fields{"tool": call.Name, "panic": r}).Error("Tool handler panic")
			}
			toolCallsTotal.WithLabelValues(call.Name, "error").Inc()
			result = errorPayload(fmt.Sprintf("tool %s failed", call.Name))
		}
	}()

	handler, ok := d.handlers[call.Name]
	if !ok {
		toolCallsTotal.WithLabelValues(call.Name, "error").Inc()
		return errorPayload(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			toolCallsTotal.WithLabelValues(call.Name, "error").Inc()
			return errorPayload(fmt.Sprintf("invalid arguments for %s: %v", call.Name, err))
		}
	}
	for _, name := range d.required[call.Name] {
		if stringArg(args, name) == "" {
			toolCallsTotal.WithLabelValues(call.Name, "error").Inc()
			return errorPayload(fmt.Sprintf("missing required argument: %s", name))
		}
	}

	out, err := handler(ctx, orgID, args)
	if err != nil {
		if d.logger != nil {
			d.logger.WithError(err).WithField("tool", call.Name).Warn("Tool execution failed")
		}
		toolCallsTotal.WithLabelValues(call.Name, "error").Inc()
		return errorPayload(err.Error())
	}
	toolCallsTotal.WithLabelValues(call.Name, "ok").Inc()
	return out
}

func (d *Dispatcher) accountSummary(ctx context.Context, orgID string, args map[string]any) (string, error) {
	platform := stringArg(args, "platform")
	accounts, err := d.store.GetConnectedAccounts(ctx, orgID, platform)
	if err != nil {
		return "", fmt.Errorf("fetch accounts: %w", err)
	}

	type accountView struct {
		ID                string `json:"id"`
		Platform          string `json:"platform"`
		AccountName       string `json:"account_name"`
		PlatformAccountID string `json:"platform_account_id"`
		Currency          string `json:"currency"`
		IsActive          bool   `json:"is_active"`
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			ID:                a.ID,
			Platform:          a.Platform,
			AccountName:       a.Name,
			PlatformAccountID: a.ExternalID,
			Currency:          a.Currency,
			IsActive:          a.IsActive,
		})
	}
	return jsonPayload(map[string]any{
		"total_accounts": len(views),
		"accounts":       views,
	})
}

func (d *Dispatcher) campaignList(ctx context.Context, orgID string, args map[string]any) (string, error) {
	accountID := stringArg(args, "account_id")
	account, err := d.resolveAccount(ctx, orgID, accountID)
	if err != nil {
		return "", err
	}

	campaigns, err := d.store.GetCampaigns(ctx, orgID, accountID)
	if err != nil {
		return "", fmt.Errorf("fetch campaigns: %w", err)
	}

	type campaignView struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		Status     string  `json:"status"`
		ExternalID string  `json:"platform_campaign_id"`
		Budget     float64 `json:"budget"`
	}
	views := make([]campaignView, 0, len(campaigns))
	for _, c := range campaigns {
		views = append(views, campaignView{
			ID:         c.ID,
			Name:       c.Name,
			Status:     c.Status,
			ExternalID: c.ExternalID,
			Budget:     c.Budget,
		})
	}
	return jsonPayload(map[string]any{
		"account_name":    account.Name,
		"total_campaigns": len(views),
		"campaigns":       views,
	})
}

func (d *Dispatcher) performanceMetrics(ctx context.Context, orgID string, args map[string]any) (string, error) {
	from, err := parseDateArg(args, "date_from")
	if err != nil {
		return "", err
	}
	to, err := parseDateArg(args, "date_to")
	if err != nil {
		return "", err
	}
	if to.Before(from) {
		return "", errors.New("date_to must not precede date_from")
	}

	filter := store.MetricsFilter{
		AccountID:  stringArg(args, "account_id"),
		CampaignID: stringArg(args, "campaign_id"),
	}
	if filter.AccountID != "" {
		if _, err := d.resolveAccount(ctx, orgID, filter.AccountID); err != nil {
			return "", err
		}
	}

	records, err := d.store.GetDailyMetrics(ctx, orgID, from, to, filter)
	if err != nil {
		return "", fmt.Errorf("fetch metrics: %w", err)
	}

	days := make(map[string]struct{}, len(records))
	for _, r := range records {
		days[r.Date.Format("2006-01-02")] = struct{}{}
	}

	return jsonPayload(map[string]any{
		"period":              fmt.Sprintf("%s ~ %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		"total_days":          len(days),
		"totals":              metrics.Aggregate(records),
		"daily_records_count": len(records),
	})
}

func (d *Dispatcher) performanceComparison(ctx context.Context, orgID string, args map[string]any) (string, error) {
	collector := d.weekly
	switch period := stringArg(args, "period"); period {
	case "weekly":
	case "monthly":
		collector = d.monthly
	default:
		return "", fmt.Errorf("unsupported period: %s", period)
	}
	if collector == nil {
		return "", errors.New("comparison unavailable")
	}

	snapshot, err := collector.Collect(ctx, orgID)
	if err != nil {
		return "", fmt.Errorf("collect snapshot: %w", err)
	}
	if !snapshot.HasData {
		return "", errors.New("not enough data for a comparison")
	}

	top := snapshot.Campaigns
	if len(top) > 10 {
		top = top[:10]
	}
	return jsonPayload(map[string]any{
		"period":                snapshot.Period,
		"org_totals":            snapshot.OrgTotals,
		"top_campaigns":         top,
		"anomalies":             snapshot.Anomalies,
		"active_campaign_count": snapshot.ActiveCampaignCount,
	})
}

func (d *Dispatcher) recentInsights(ctx context.Context, orgID string, args map[string]any) (string, error) {
	limit := intArg(args, "limit", 5)
	list, err := d.store.GetRecentInsights(ctx, orgID, limit)
	if err != nil {
		return "", fmt.Errorf("fetch insights: %w", err)
	}
	return jsonPayload(map[string]any{
		"total":    len(list),
		"insights": list,
	})
}

func (d *Dispatcher) structuredQuery(ctx context.Context, orgID string, args map[string]any) (string, error) {
	if d.queries == nil {
		return "", errors.New("structured queries unavailable")
	}
	accountID := stringArg(args, "account_id")
	account, err := d.resolveAccount(ctx, orgID, accountID)
	if err != nil {
		return "", err
	}
	if account.Platform != "google_ads" {
		return "", errors.New("structured queries only run against Google Ads accounts")
	}

	query := stringArg(args, "query")
	rows, err := d.queries.RunStructuredQuery(ctx, account.ExternalID, query)
	if err != nil {
		return "", fmt.Errorf("run query: %w", err)
	}
	return jsonPayload(map[string]any{
		"query":     query,
		"row_count": len(rows),
		"rows":      rows,
	})
}

// resolveAccount enforces org ownership of entity id arguments. A foreign
// or unknown account is an access-denied payload, never a turn-ending
// failure.
func (d *Dispatcher) resolveAccount(ctx context.Context, orgID, accountID string) (store.Account, error) {
	account, err := d.store.GetAccount(ctx, orgID, accountID)
	if errors.Is(err, store.ErrAccountNotFound) {
		return store.Account{}, errors.New("access denied: account does not belong to this organization")
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("resolve account: %w", err)
	}
	return account, nil
}

func requiredParams(params map[string]any) []string {
	raw, ok := params["required"]
	if !ok {
		return nil
	}
	switch values := raw.(type) {
	case []string:
		return values
	case []any:
		names := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

func stringArg(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intArg(args map[string]any, name string, fallback int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func parseDateArg(args map[string]any, name string) (time.Time, error) {
	value := stringArg(args, name)
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: expected YYYY-MM-DD", name)
	}
	return t, nil
}

func errorPayload(message string) string {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return string(payload)
}

func jsonPayload(value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(payload), nil
}
