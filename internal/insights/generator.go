package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"adpulse/internal/store"
	"adpulse/pkg/llm"
	"adpulse/pkg/logging"
)

const defaultOrgConcurrency = 4

const insightSystemPrompt = `You are a senior digital marketing analyst. You review advertising
performance data and produce actionable insights.

Your job:
1. Identify the significant trends in the data
2. Call out performance anomalies
3. Name concrete optimization opportunities
4. Recommend specific actions

Rules:
- Ground every claim in the numbers (percent changes, absolute values)
- Compare against the previous period
- Keep recommendations specific and executable
- Assign each insight a priority (low, medium, high, critical)

Output format:
{
    "insights": [
        {
            "type": "performance|optimization|alert|opportunity|anomaly",
            "priority": "low|medium|high|critical",
            "title": "Short title",
            "summary": "One or two sentence summary",
            "detailed_analysis": "Detailed analysis",
            "actions": [
                {"description": "What to do", "expected_impact": "Expected effect"}
            ]
        }
    ]
}`

// insightWriter is the slice of the store the generator writes to.
type insightWriter interface {
	ListActiveOrgIDs(ctx context.Context) ([]string, error)
	SaveInsight(ctx context.Context, in store.Insight) (string, error)
	SaveAction(ctx context.Context, a store.Action) (string, error)
}

type runGuard interface {
	TryAcquire(ctx context.Context, orgID string) (bool, error)
}

// Generator runs the periodic insight narrative job: collect a snapshot per
// org, ask the model for structured insights, persist them item by item.
type Generator struct {
	store       insightWriter
	collector   *Collector
	provider    llm.StructuredProvider
	guard       runGuard
	logger      logging.Logger
	concurrency int
}

func NewGenerator(st insightWriter, collector *Collector, provider llm.StructuredProvider, guard runGuard, logger logging.Logger, concurrency int) *Generator {
	if concurrency <= 0 {
		concurrency = defaultOrgConcurrency
	}
	return &Generator{
		store:       st,
		collector:   collector,
		provider:    provider,
		guard:       guard,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run generates insights for every active org. Per-org failures are logged
// and do not stop the batch.
func (g *Generator) Run(ctx context.Context) error {
	orgIDs, err := g.store.ListActiveOrgIDs(ctx)
	if err != nil {
		return fmt.Errorf("list orgs: %w", err)
	}
	g.logger.WithField("orgs", len(orgIDs)).Info("Generating insights")

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency)
	for _, orgID := range orgIDs {
		orgID := orgID
		group.Go(func() error {
			if err := g.GenerateForOrg(groupCtx, orgID); err != nil {
				g.logger.WithError(err).WithField("org_id", orgID).Error("Insight generation failed")
				insightRunsTotal.WithLabelValues("error").Inc()
			}
			return nil
		})
	}
	return group.Wait()
}

// GenerateForOrg produces and persists insights for a single org.
func (g *Generator) GenerateForOrg(ctx context.Context, orgID string) error {
	acquired, err := g.guard.TryAcquire(ctx, orgID)
	if err != nil {
		return err
	}
	if !acquired {
		g.logger.WithField("org_id", orgID).Debug("Insight run guard held, skipping")
		insightRunsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	snapshot, err := g.collector.Collect(ctx, orgID)
	if err != nil {
		return fmt.Errorf("collect snapshot: %w", err)
	}
	if !snapshot.HasData {
		g.logger.WithField("org_id", orgID).Info("No metrics data, skipping insights")
		insightRunsTotal.WithLabelValues("no_data").Inc()
		return nil
	}

	contextJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	raw, err := g.provider.CompleteStructured(ctx, []llm.Message{
		{Role: "system", Content: insightSystemPrompt},
		{Role: "user", Content: string(contextJSON)},
	})
	if err != nil {
		return fmt.Errorf("generate insights: %w", err)
	}

	var parsed struct {
		Insights []struct {
			Type             string `json:"type"`
			Priority         string `json:"priority"`
			Title            string `json:"title"`
			Summary          string `json:"summary"`
			DetailedAnalysis string `json:"detailed_analysis"`
			Actions          []struct {
				Description    string `json:"description"`
				ExpectedImpact string `json:"expected_impact"`
			} `json:"actions"`
		} `json:"insights"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("parse insight response: %w", err)
	}

	saved := 0
	for _, item := range parsed.Insights {
		priority := item.Priority
		if priority == "" {
			priority = "medium"
		}
		insightID, err := g.store.SaveInsight(ctx, store.Insight{
			OrgID:            orgID,
			Type:             item.Type,
			Priority:         priority,
			Title:            item.Title,
			Summary:          item.Summary,
			DetailedAnalysis: item.DetailedAnalysis,
		})
		if err != nil {
			g.logger.WithError(err).WithField("org_id", orgID).Error("Failed to save insight")
			continue
		}
		saved++

		for _, action := range item.Actions {
			description := action.Description
			if action.ExpectedImpact != "" {
				description = strings.TrimSpace(description + " Expected impact: " + action.ExpectedImpact)
			}
			if _, err := g.store.SaveAction(ctx, store.Action{
				InsightID:   insightID,
				OrgID:       orgID,
				Description: description,
			}); err != nil {
				g.logger.WithError(err).WithField("insight_id", insightID).Error("Failed to save action")
			}
		}
	}

	g.logger.WithFields(logging.Fields{"org_id": orgID, "insights": saved}).Info("Generated insights")
	insightRunsTotal.WithLabelValues("ok").Inc()
	insightsGeneratedTotal.Add(float64(saved))
	return nil
}
