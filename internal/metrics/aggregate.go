package metrics

import "math"

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// sanitize coerces malformed numeric input to zero so one bad row cannot
// poison a whole period.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Aggregate sums daily records into period totals and derives the ratio
// metrics. An empty input produces zero sums with all ratios nil.
func Aggregate(records []Record) Totals {
	var t Totals
	for _, r := range records {
		if r.Impressions > 0 {
			t.Impressions += r.Impressions
		}
		if r.Clicks > 0 {
			t.Clicks += r.Clicks
		}
		t.Spend += sanitize(r.Spend)
		t.Conversions += sanitize(r.Conversions)
		t.ConversionValue += sanitize(r.ConversionValue)
	}

	t.Spend = round2(t.Spend)
	t.Conversions = round2(t.Conversions)
	t.ConversionValue = round2(t.ConversionValue)

	if t.Impressions > 0 {
		ctr := round2(float64(t.Clicks) / float64(t.Impressions) * 100)
		cpm := round2(t.Spend / float64(t.Impressions) * 1000)
		t.CTR = &ctr
		t.CPM = &cpm
	}
	if t.Clicks > 0 {
		cpc := round2(t.Spend / float64(t.Clicks))
		t.CPC = &cpc
	}
	if t.Spend > 0 {
		roas := round2(t.ConversionValue / t.Spend)
		t.ROAS = &roas
	}
	if t.Conversions > 0 {
		cpa := round2(t.Spend / t.Conversions)
		t.CPA = &cpa
	}

	return t
}
