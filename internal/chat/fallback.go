package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"adpulse/internal/connectors"
	"adpulse/pkg/llm"
	"adpulse/pkg/logging"
)

// One regeneration after a failed query, then give up.
const queryGenAttempts = 2

const queryGenPrompt = `You translate analytic questions about Google Ads accounts into Google Ads Query Language (GAQL).
Produce exactly one SELECT statement answering the user's question.
Respond with a JSON object: {"query": "<GAQL SELECT statement>"}.`

const interpretPrompt = `You are a performance marketing analyst. Answer the user's question using only the data provided.
Respond with a JSON object: {"answer": "<concise answer>"}. If the data cannot answer the question, say so in the answer.`

// FallbackChain produces an answer when the model's own turn came back
// empty: first by synthesizing a structured query and interpreting its
// rows, then by interpreting a fixed bundle of recent aggregates.
type FallbackChain struct {
	structured llm.StructuredProvider
	queries    connectors.QueryRunner
	accounts   accountLister
	collector  snapshotCollector
	logger     logging.Logger
}

type FallbackConfig struct {
	Structured llm.StructuredProvider
	Queries    connectors.QueryRunner
	Accounts   accountLister
	Collector  snapshotCollector
	Logger     logging.Logger
}

func NewFallbackChain(cfg FallbackConfig) *FallbackChain {
	return &FallbackChain{
		structured: cfg.Structured,
		queries:    cfg.Queries,
		accounts:   cfg.Accounts,
		collector:  cfg.Collector,
		logger:     cfg.Logger,
	}
}

// Answer walks the chain and returns the first non-empty answer, or ""
// when every stage comes up dry.
func (f *FallbackChain) Answer(ctx context.Context, orgID, question string) string {
	if f == nil || f.structured == nil {
		return ""
	}

	answer, err := f.generatedQuery(ctx, orgID, question)
	if err != nil && f.logger != nil {
		f.logger.WithError(err).WithField("org_id", orgID).Debug("Query generation fallback failed")
	}
	if answer != "" {
		fallbacksTotal.WithLabelValues("query_gen").Inc()
		return answer
	}

	answer, err = f.dbContext(ctx, orgID, question)
	if err != nil && f.logger != nil {
		f.logger.WithError(err).WithField("org_id", orgID).Debug("DB context fallback failed")
	}
	if answer != "" {
		fallbacksTotal.WithLabelValues("db_context").Inc()
	}
	return answer
}

// generatedQuery asks the model for a GAQL statement, runs it once through
// the connector, and interprets the rows. A structurally failing query is
// regenerated once with the failure reason appended.
func (f *FallbackChain) generatedQuery(ctx context.Context, orgID, question string) (string, error) {
	if f.queries == nil || f.accounts == nil {
		return "", nil
	}
	accounts, err := f.accounts.GetConnectedAccounts(ctx, orgID, "google_ads")
	if err != nil {
		return "", fmt.Errorf("list accounts: %w", err)
	}
	var customerID string
	for _, a := range accounts {
		if a.ExternalID != "" {
			customerID = a.ExternalID
			break
		}
	}
	if customerID == "" {
		return "", nil
	}

	var rows []map[string]any
	failure := ""
	for attempt := 0; attempt < queryGenAttempts; attempt++ {
		prompt := question
		if failure != "" {
			prompt = fmt.Sprintf("%s\n\nThe previous query failed: %s\nGenerate a corrected query.", question, failure)
		}
		raw, err := f.structured.CompleteStructured(ctx, []llm.Message{
			{Role: "system", Content: queryGenPrompt},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			return "", fmt.Errorf("generate query: %w", err)
		}
		var generated struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(raw), &generated); err != nil || strings.TrimSpace(generated.Query) == "" {
			failure = "response was not a JSON object with a query field"
			continue
		}

		rows, err = f.queries.RunStructuredQuery(ctx, customerID, generated.Query)
		if err != nil {
			failure = err.Error()
			continue
		}
		break
	}
	if len(rows) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}
	return f.interpret(ctx, question, string(payload))
}

// dbContext interprets a fixed bundle of recent aggregates and campaign
// breakdowns. No tools are available on this path.
func (f *FallbackChain) dbContext(ctx context.Context, orgID, question string) (string, error) {
	if f.collector == nil {
		return "", nil
	}
	snapshot, err := f.collector.Collect(ctx, orgID)
	if err != nil {
		return "", fmt.Errorf("collect snapshot: %w", err)
	}
	if !snapshot.HasData {
		return "", nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return f.interpret(ctx, question, string(payload))
}

func (f *FallbackChain) interpret(ctx context.Context, question, data string) (string, error) {
	raw, err := f.structured.CompleteStructured(ctx, []llm.Message{
		{Role: "system", Content: interpretPrompt},
		{Role: "user", Content: fmt.Sprintf("Question: %s\n\nData:\n%s", question, data)},
	})
	if err != nil {
		return "", fmt.Errorf("interpret data: %w", err)
	}
	var parsed struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", errors.New("interpretation was not valid JSON")
	}
	return strings.TrimSpace(parsed.Answer), nil
}
