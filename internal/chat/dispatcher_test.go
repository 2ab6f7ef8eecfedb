package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"adpulse/internal/insights"
	"adpulse/internal/metrics"
	"adpulse/internal/store"
	"adpulse/pkg/llm"
	"adpulse/pkg/logging"
)

type fakeToolStore struct {
	accounts   []store.Account
	account    store.Account
	accountErr error
	campaigns  []store.Campaign
	records    []metrics.Record
	insights   []store.Insight
	err        error
}

func (f *fakeToolStore) GetConnectedAccounts(_ context.Context, _, platform string) ([]store.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	if platform == "" {
		return f.accounts, nil
	}
	var filtered []store.Account
	for _, a := range f.accounts {
		if a.Platform == platform {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

func (f *fakeToolStore) GetAccount(context.Context, string, string) (store.Account, error) {
	if f.accountErr != nil {
		return store.Account{}, f.accountErr
	}
	return f.account, nil
}

func (f *fakeToolStore) GetCampaigns(context.Context, string, string) ([]store.Campaign, error) {
	return f.campaigns, f.err
}

func (f *fakeToolStore) GetDailyMetrics(context.Context, string, time.Time, time.Time, store.MetricsFilter) ([]metrics.Record, error) {
	return f.records, f.err
}

func (f *fakeToolStore) GetRecentInsights(context.Context, string, int) ([]store.Insight, error) {
	return f.insights, f.err
}

type fakeCollector struct {
	snapshot insights.OrgSnapshot
	err      error
	calls    int
}

func (f *fakeCollector) Collect(context.Context, string) (insights.OrgSnapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

type fakeQueryRunner struct {
	rows       []map[string]any
	errs       []error
	calls      int
	customerID string
	query      string
}

func (f *fakeQueryRunner) RunStructuredQuery(_ context.Context, customerID, query string) ([]map[string]any, error) {
	f.calls++
	f.customerID = customerID
	f.query = query
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.rows, nil
}

func decodePayload(t *testing.T, payload string) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v\n%s", err, payload)
	}
	return decoded
}

func TestExecute_MissingRequiredArgument(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Store: &fakeToolStore{}, Logger: logging.NewLogger()})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{
		ID:        "call-1",
		Name:      "get_campaign_list",
		Arguments: `{}`,
	})

	decoded := decodePayload(t, result)
	if !strings.Contains(decoded["error"].(string), "account_id") {
		t.Fatalf("expected missing-argument payload, got %s", result)
	}
}

func TestExecute_CrossOrgAccessDenied(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		Store:  &fakeToolStore{accountErr: store.ErrAccountNotFound},
		Logger: logging.NewLogger(),
	})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{
		Name:      "get_campaign_list",
		Arguments: `{"account_id": "acc-other"}`,
	})

	decoded := decodePayload(t, result)
	if !strings.Contains(decoded["error"].(string), "access denied") {
		t.Fatalf("expected access-denied payload, got %s", result)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Store: &fakeToolStore{}, Logger: logging.NewLogger()})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{Name: "drop_tables"})

	decoded := decodePayload(t, result)
	if !strings.Contains(decoded["error"].(string), "unknown tool") {
		t.Fatalf("expected unknown-tool payload, got %s", result)
	}
}

func TestExecute_PanicBecomesErrorPayload(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Store: &fakeToolStore{}, Logger: logging.NewLogger()})
	d.handlers["get_account_summary"] = func(context.Context, string, map[string]any) (string, error) {
		panic("handler blew up")
	}

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{Name: "get_account_summary", Arguments: `{}`})

	decoded := decodePayload(t, result)
	if decoded["error"] == "" {
		t.Fatalf("expected error payload after panic, got %s", result)
	}
}

func TestExecute_AccountSummary(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		Store: &fakeToolStore{accounts: []store.Account{
			{ID: "acc-1", Platform: "google_ads", Name: "Main", ExternalID: "123-456-7890", Currency: "USD", IsActive: true},
			{ID: "acc-2", Platform: "meta_ads", Name: "Social", Currency: "USD", IsActive: true},
		}},
		Logger: logging.NewLogger(),
	})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{Name: "get_account_summary", Arguments: `{"platform": "google_ads"}`})

	decoded := decodePayload(t, result)
	if decoded["total_accounts"] != float64(1) {
		t.Fatalf("expected 1 filtered account, got %v", decoded["total_accounts"])
	}
}

func TestExecute_PerformanceMetrics(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	d := NewDispatcher(DispatcherConfig{
		Store: &fakeToolStore{records: []metrics.Record{
			{EntityID: "cmp-1", Date: day, Impressions: 1000, Clicks: 50, Spend: 100},
			{EntityID: "cmp-1", Date: day.AddDate(0, 0, 1), Impressions: 1000, Clicks: 50, Spend: 100},
		}},
		Logger: logging.NewLogger(),
	})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{
		Name:      "get_performance_metrics",
		Arguments: `{"date_from": "2026-08-20", "date_to": "2026-08-26"}`,
	})

	decoded := decodePayload(t, result)
	if decoded["total_days"] != float64(2) {
		t.Fatalf("expected 2 distinct days, got %v", decoded["total_days"])
	}
	totals := decoded["totals"].(map[string]any)
	if totals["clicks"] != float64(100) {
		t.Fatalf("expected 100 clicks, got %v", totals["clicks"])
	}

	result = d.Execute(context.Background(), "org-1", llm.ToolCall{
		Name:      "get_performance_metrics",
		Arguments: `{"date_from": "not-a-date", "date_to": "2026-08-26"}`,
	})
	if !isErrorPayload(result) {
		t.Fatalf("expected error payload for malformed date, got %s", result)
	}
}

func TestExecute_PerformanceComparisonPeriodRouting(t *testing.T) {
	weekly := &fakeCollector{snapshot: insights.OrgSnapshot{HasData: true}}
	monthly := &fakeCollector{snapshot: insights.OrgSnapshot{HasData: true}}
	d := NewDispatcher(DispatcherConfig{
		Store:   &fakeToolStore{},
		Weekly:  weekly,
		Monthly: monthly,
		Logger:  logging.NewLogger(),
	})

	d.Execute(context.Background(), "org-1", llm.ToolCall{Name: "get_performance_comparison", Arguments: `{"period": "monthly"}`})
	if monthly.calls != 1 || weekly.calls != 0 {
		t.Fatalf("expected monthly collector, got weekly=%d monthly=%d", weekly.calls, monthly.calls)
	}

	d.Execute(context.Background(), "org-1", llm.ToolCall{Name: "get_performance_comparison", Arguments: `{"period": "weekly"}`})
	if weekly.calls != 1 {
		t.Fatalf("expected weekly collector call, got %d", weekly.calls)
	}

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{Name: "get_performance_comparison", Arguments: `{"period": "daily"}`})
	if !isErrorPayload(result) {
		t.Fatalf("expected error payload for unsupported period, got %s", result)
	}
}

func TestExecute_PerformanceComparisonNoData(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		Store:  &fakeToolStore{},
		Weekly: &fakeCollector{snapshot: insights.OrgSnapshot{HasData: false}},
		Logger: logging.NewLogger(),
	})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{Name: "get_performance_comparison", Arguments: `{"period": "weekly"}`})
	if !isErrorPayload(result) {
		t.Fatalf("expected error payload when no data, got %s", result)
	}
}

func TestExecute_StructuredQuery(t *testing.T) {
	runner := &fakeQueryRunner{rows: []map[string]any{{"campaign": map[string]any{"id": "1"}}}}
	d := NewDispatcher(DispatcherConfig{
		Store:   &fakeToolStore{account: store.Account{ID: "acc-1", Platform: "google_ads", ExternalID: "123-456-7890"}},
		Queries: runner,
		Logger:  logging.NewLogger(),
	})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{
		Name:      "run_structured_query",
		Arguments: `{"query": "SELECT campaign.id FROM campaign", "account_id": "acc-1"}`,
	})

	decoded := decodePayload(t, result)
	if decoded["row_count"] != float64(1) {
		t.Fatalf("expected 1 row, got %v", decoded["row_count"])
	}
	if runner.customerID != "123-456-7890" {
		t.Fatalf("expected platform account id to be passed, got %q", runner.customerID)
	}
}

func TestExecute_StructuredQueryRequiresGoogleAds(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		Store:   &fakeToolStore{account: store.Account{ID: "acc-1", Platform: "meta_ads"}},
		Queries: &fakeQueryRunner{},
		Logger:  logging.NewLogger(),
	})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{
		Name:      "run_structured_query",
		Arguments: `{"query": "SELECT campaign.id FROM campaign", "account_id": "acc-1"}`,
	})
	if !isErrorPayload(result) {
		t.Fatalf("expected error payload for non-Google account, got %s", result)
	}
}

func TestExecute_HandlerErrorDoesNotPropagate(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		Store:  &fakeToolStore{err: errors.New("database offline")},
		Logger: logging.NewLogger(),
	})

	result := d.Execute(context.Background(), "org-1", llm.ToolCall{Name: "get_recent_insights", Arguments: `{}`})

	decoded := decodePayload(t, result)
	if !strings.Contains(decoded["error"].(string), "database offline") {
		t.Fatalf("expected wrapped handler error, got %s", result)
	}
}
