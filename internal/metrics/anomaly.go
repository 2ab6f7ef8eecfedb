package metrics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule is one anomaly trigger over a single change metric. Thresholds are
// strict: a change exactly at the threshold does not fire.
type Rule struct {
	Metric            string  `yaml:"metric"` // change key, e.g. "spend_change"
	Label             string  `yaml:"label"`  // display name used in messages
	Type              string  `yaml:"type"`
	Direction         string  `yaml:"direction"` // "increase" or "decrease"
	Threshold         float64 `yaml:"threshold"` // percent, positive
	Severity          string  `yaml:"severity"`
	EscalateThreshold float64 `yaml:"escalate_threshold"`
	EscalateSeverity  string  `yaml:"escalate_severity"`
}

const (
	directionIncrease = "increase"
	directionDecrease = "decrease"
)

// DefaultRules returns the built-in anomaly rule table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Metric: "spend_change", Label: "Spend", Type: AnomalySpendSpike,
			Direction: directionIncrease, Threshold: 30, Severity: SeverityMedium,
			EscalateThreshold: 50, EscalateSeverity: SeverityHigh,
		},
		{
			Metric: "ctr_change", Label: "CTR", Type: AnomalyCTRDrop,
			Direction: directionDecrease, Threshold: 20, Severity: SeverityMedium,
			EscalateThreshold: 40, EscalateSeverity: SeverityHigh,
		},
		{
			Metric: "conversions_change", Label: "Conversions", Type: AnomalyConversionDrop,
			Direction: directionDecrease, Threshold: 25, Severity: SeverityHigh,
			EscalateThreshold: 50, EscalateSeverity: SeverityCritical,
		},
		{
			Metric: "cpa_change", Label: "CPA", Type: AnomalyCPASpike,
			Direction: directionIncrease, Threshold: 30, Severity: SeverityMedium,
			EscalateThreshold: 50, EscalateSeverity: SeverityHigh,
		},
	}
}

// LoadRules reads a rule table from a YAML file. An empty path returns the
// defaults.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var parsed struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(parsed.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}
	for i, rule := range parsed.Rules {
		if rule.Metric == "" || rule.Type == "" {
			return nil, fmt.Errorf("rule %d: metric and type are required", i)
		}
		if rule.Direction != directionIncrease && rule.Direction != directionDecrease {
			return nil, fmt.Errorf("rule %d: direction must be %q or %q", i, directionIncrease, directionDecrease)
		}
	}
	return parsed.Rules, nil
}

// Detector evaluates a rule table against per-entity changes.
type Detector struct {
	rules []Rule
}

// NewDetector creates a detector. A nil rule slice means the defaults.
func NewDetector(rules []Rule) *Detector {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Detector{rules: rules}
}

// Detect evaluates every rule against one entity's changes. Rules fire
// independently; a nil change never triggers. Results follow rule order.
func (d *Detector) Detect(entityID, entityName string, changes map[string]*float64) []Anomaly {
	var anomalies []Anomaly
	for _, rule := range d.rules {
		change := changes[rule.Metric]
		if change == nil {
			continue
		}

		var fired, escalated bool
		switch rule.Direction {
		case directionIncrease:
			fired = *change > rule.Threshold
			escalated = *change > rule.EscalateThreshold
		case directionDecrease:
			fired = *change < -rule.Threshold
			escalated = *change < -rule.EscalateThreshold
		}
		if !fired {
			continue
		}

		severity := rule.Severity
		if escalated && rule.EscalateSeverity != "" {
			severity = rule.EscalateSeverity
		}

		verb := "up"
		magnitude := *change
		if rule.Direction == directionDecrease {
			verb = "down"
			magnitude = -magnitude
		}

		anomalies = append(anomalies, Anomaly{
			EntityID:   entityID,
			EntityName: entityName,
			Type:       rule.Type,
			Message:    fmt.Sprintf("%s: %s %s %.0f%% vs previous period", entityName, rule.Label, verb, magnitude),
			Severity:   severity,
		})
	}
	return anomalies
}
