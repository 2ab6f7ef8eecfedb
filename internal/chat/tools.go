package chat

type ToolDefinition struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

var ToolDefinitions = []ToolDefinition{
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "get_account_summary",
			Description: "List the organization's connected ad accounts with platform, name, status and currency.",
			Parameters: toolParams(
				map[string]any{
					"platform": map[string]any{
						"type":        "string",
						"enum":        []string{"google_ads", "meta_ads"},
						"description": "Optional platform filter.",
					},
				},
				[]string{},
			),
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "get_campaign_list",
			Description: "List the campaigns under one connected account: name, status, budget.",
			Parameters: toolParams(
				map[string]any{
					"account_id": map[string]any{
						"type":        "string",
						"description": "Connected account ID (required).",
					},
				},
				[]string{"account_id"},
			),
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "get_performance_metrics",
			Description: "Aggregate performance for a date range: impressions, clicks, spend, conversions, CTR, CPC, CPA, ROAS.",
			Parameters: toolParams(
				map[string]any{
					"date_from": map[string]any{
						"type":        "string",
						"description": "Start date (YYYY-MM-DD).",
					},
					"date_to": map[string]any{
						"type":        "string",
						"description": "End date (YYYY-MM-DD).",
					},
					"account_id": map[string]any{
						"type":        "string",
						"description": "Optional account filter.",
					},
					"campaign_id": map[string]any{
						"type":        "string",
						"description": "Optional campaign filter.",
					},
				},
				[]string{"date_from", "date_to"},
			),
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "get_performance_comparison",
			Description: "Compare the current period against the previous one: change percentages per campaign plus detected anomalies.",
			Parameters: toolParams(
				map[string]any{
					"period": map[string]any{
						"type":        "string",
						"enum":        []string{"weekly", "monthly"},
						"description": "Comparison period.",
					},
				},
				[]string{"period"},
			),
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "get_recent_insights",
			Description: "Fetch the latest generated insights: anomalies, optimization opportunities, performance warnings.",
			Parameters: toolParams(
				map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Number of insights to return (default 5).",
					},
				},
				[]string{},
			),
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "run_structured_query",
			Description: "Run a Google Ads Query Language (GAQL) statement against a connected Google Ads account. SELECT statements only.",
			Parameters: toolParams(
				map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "GAQL statement (SELECT only).",
					},
					"account_id": map[string]any{
						"type":        "string",
						"description": "Connected Google Ads account ID.",
					},
				},
				[]string{"query", "account_id"},
			),
		},
	},
}

func toolParams(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
