package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"adpulse/pkg/logging"
	"adpulse/pkg/retry"
)

const (
	googleAdsAPIVersion = "v17"
	maxQueryRows        = 50
)

// ErrNonSelectQuery is returned for any structured query that is not a
// plain SELECT.
var ErrNonSelectQuery = errors.New("only SELECT queries are allowed")

// QueryRunner executes a platform query language statement against an ad
// platform account.
type QueryRunner interface {
	RunStructuredQuery(ctx context.Context, customerID, query string) ([]map[string]any, error)
}

// GoogleAdsConfig configures the Google Ads REST connector.
type GoogleAdsConfig struct {
	BaseURL        string
	AccessToken    string
	DeveloperToken string
	Timeout        time.Duration
}

// GoogleAds talks to the Google Ads REST search endpoint. Transient HTTP
// failures are retried through a failsafe executor with a circuit breaker.
type GoogleAds struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	logger   logging.Logger

	baseURL        string
	accessToken    string
	developerToken string
}

func NewGoogleAds(cfg GoogleAdsConfig, logger logging.Logger) *GoogleAds {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://googleads.googleapis.com/" + googleAdsAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryCfg := retry.DefaultHTTPConfig()
	retryCfg.BreakerName = "google-ads"
	retryCfg.Logger = logger

	return &GoogleAds{
		client:         &http.Client{Timeout: timeout},
		executor:       retry.NewHTTPExecutor(retryCfg),
		logger:         logger,
		baseURL:        baseURL,
		accessToken:    cfg.AccessToken,
		developerToken: cfg.DeveloperToken,
	}
}

// RunStructuredQuery executes a GAQL statement for one customer. Only
// SELECT statements pass; results are capped at 50 rows.
func (g *GoogleAds) RunStructuredQuery(ctx context.Context, customerID, query string) ([]map[string]any, error) {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return nil, ErrNonSelectQuery
	}
	customerID = strings.ReplaceAll(customerID, "-", "")
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	payload, err := json.Marshal(map[string]any{
		"query":    query,
		"pageSize": maxQueryRows,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/customers/%s/googleAds:search", g.baseURL, customerID)
	resp, err := retry.ExecuteHTTP(ctx, g.executor, func() (*http.Response, error) {
		// The request is rebuilt per attempt so the body can be re-read.
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
		req.Header.Set("developer-token", g.developerToken)
		return g.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("google ads query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google ads query: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	rows := parsed.Results
	if len(rows) > maxQueryRows {
		rows = rows[:maxQueryRows]
	}
	return rows, nil
}
