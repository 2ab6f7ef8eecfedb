package metrics

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectStrictThresholds(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name         string
		changes      map[string]*float64
		wantType     string
		wantSeverity string
		wantCount    int
	}{
		{"spend at threshold does not fire", map[string]*float64{"spend_change": ptr(30.0)}, "", "", 0},
		{"spend above threshold fires medium", map[string]*float64{"spend_change": ptr(35.0)}, AnomalySpendSpike, SeverityMedium, 1},
		{"spend above escalation fires high", map[string]*float64{"spend_change": ptr(55.0)}, AnomalySpendSpike, SeverityHigh, 1},
		{"spend at escalation stays medium", map[string]*float64{"spend_change": ptr(50.0)}, AnomalySpendSpike, SeverityMedium, 1},
		{"ctr drop fires medium", map[string]*float64{"ctr_change": ptr(-25.0)}, AnomalyCTRDrop, SeverityMedium, 1},
		{"ctr drop escalates to high", map[string]*float64{"ctr_change": ptr(-45.0)}, AnomalyCTRDrop, SeverityHigh, 1},
		{"conversion drop fires high", map[string]*float64{"conversions_change": ptr(-30.0)}, AnomalyConversionDrop, SeverityHigh, 1},
		{"conversion drop escalates to critical", map[string]*float64{"conversions_change": ptr(-60.0)}, AnomalyConversionDrop, SeverityCritical, 1},
		{"cpa spike fires medium", map[string]*float64{"cpa_change": ptr(40.0)}, AnomalyCPASpike, SeverityMedium, 1},
		{"cpa spike escalates to high", map[string]*float64{"cpa_change": ptr(80.0)}, AnomalyCPASpike, SeverityHigh, 1},
		{"nil change never triggers", map[string]*float64{"spend_change": nil}, "", "", 0},
		{"negative spend change does not trigger spike", map[string]*float64{"spend_change": ptr(-80.0)}, "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect("c1", "Brand Search", tt.changes)
			if len(got) != tt.wantCount {
				t.Fatalf("got %d anomalies, want %d: %+v", len(got), tt.wantCount, got)
			}
			if tt.wantCount == 0 {
				return
			}
			if got[0].Type != tt.wantType {
				t.Errorf("type = %q, want %q", got[0].Type, tt.wantType)
			}
			if got[0].Severity != tt.wantSeverity {
				t.Errorf("severity = %q, want %q", got[0].Severity, tt.wantSeverity)
			}
			if got[0].EntityID != "c1" || got[0].EntityName != "Brand Search" {
				t.Errorf("entity not carried through: %+v", got[0])
			}
			if got[0].Message == "" {
				t.Error("expected a message")
			}
		})
	}
}

func TestDetectRulesAreIndependent(t *testing.T) {
	d := NewDetector(nil)
	got := d.Detect("c1", "Brand Search", map[string]*float64{
		"spend_change":       ptr(60.0),
		"ctr_change":         ptr(-50.0),
		"conversions_change": ptr(-70.0),
		"cpa_change":         ptr(90.0),
	})
	if len(got) != 4 {
		t.Fatalf("expected all four rules to fire, got %d: %+v", len(got), got)
	}
	// Output follows rule order.
	wantOrder := []string{AnomalySpendSpike, AnomalyCTRDrop, AnomalyConversionDrop, AnomalyCPASpike}
	for i, want := range wantOrder {
		if got[i].Type != want {
			t.Errorf("anomaly %d = %q, want %q", i, got[i].Type, want)
		}
	}
}

// Escalation severity is monotone: a larger breach never yields a lower
// severity than a smaller one.
func TestDetectSeverityMonotonicity(t *testing.T) {
	d := NewDetector(nil)
	rank := map[string]int{SeverityMedium: 1, SeverityHigh: 2, SeverityCritical: 3}

	prev := 0
	for _, change := range []float64{31, 40, 49, 51, 70, 200} {
		got := d.Detect("c1", "x", map[string]*float64{"spend_change": ptr(change)})
		if len(got) != 1 {
			t.Fatalf("change %v: expected a single anomaly", change)
		}
		r := rank[got[0].Severity]
		if r < prev {
			t.Fatalf("severity decreased at change %v: %q", change, got[0].Severity)
		}
		prev = r
	}
}

func TestLoadRulesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - metric: spend_change
    label: Spend
    type: spend_spike
    direction: increase
    threshold: 10
    severity: high
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if len(rules) != 1 || rules[0].Threshold != 10 {
		t.Fatalf("unexpected rules: %+v", rules)
	}

	d := NewDetector(rules)
	if got := d.Detect("c1", "x", map[string]*float64{"spend_change": ptr(15.0)}); len(got) != 1 {
		t.Fatalf("overridden threshold should fire at 15%%: %+v", got)
	}
}

func TestLoadRulesValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  - metric: spend_change\n    type: spend_spike\n    direction: sideways\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestLoadRulesEmptyPathReturnsDefaults(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if len(rules) != 4 {
		t.Fatalf("expected 4 default rules, got %d", len(rules))
	}
}
