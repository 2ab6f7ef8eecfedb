package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ping returns a reachability probe for the configured provider. The probe
// hits the cheapest authenticated endpoint each API exposes and treats any
// non-5xx response as reachable.
func Ping(cfg Config) func(context.Context) error {
	client := &http.Client{Timeout: 5 * time.Second}
	base := strings.TrimRight(cfg.APIURL, "/")

	var url string
	headers := map[string]string{}
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		if base == "" {
			base = "https://api.anthropic.com"
		}
		url = base + "/v1/models"
		if cfg.APIKey != "" {
			headers["X-API-Key"] = cfg.APIKey
		}
		headers["Anthropic-Version"] = "2023-06-01"
	case "ollama":
		if base == "" {
			base = "http://localhost:11434/v1"
		}
		url = strings.TrimSuffix(base, "/v1") + "/api/tags"
	default:
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		url = base + "/models"
		if cfg.APIKey != "" {
			headers["Authorization"] = "Bearer " + cfg.APIKey
		}
	}

	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create ping request: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("provider returned %s", resp.Status)
		}
		return nil
	}
}
