package metrics

// ChangeKeys lists the metrics a Comparison reports on, in a stable order.
// Each appears in Changes under "<metric>_change".
var ChangeKeys = []string{
	"impressions", "clicks", "spend", "conversions",
	"ctr", "cpc", "cpm", "roas", "cpa",
}

func ratioValue(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func (t Totals) metricValue(key string) float64 {
	switch key {
	case "impressions":
		return float64(t.Impressions)
	case "clicks":
		return float64(t.Clicks)
	case "spend":
		return t.Spend
	case "conversions":
		return t.Conversions
	case "ctr":
		return ratioValue(t.CTR)
	case "cpc":
		return ratioValue(t.CPC)
	case "cpm":
		return ratioValue(t.CPM)
	case "roas":
		return ratioValue(t.ROAS)
	case "cpa":
		return ratioValue(t.CPA)
	default:
		return 0
	}
}

// Compare computes percentage changes between two period totals. A change is
// nil when the previous value is zero; otherwise it is
// round((current-previous)/previous*100, 2).
func Compare(current, previous Totals) Comparison {
	changes := make(map[string]*float64, len(ChangeKeys))
	for _, key := range ChangeKeys {
		curr := current.metricValue(key)
		prev := previous.metricValue(key)
		if prev == 0 {
			changes[key+"_change"] = nil
			continue
		}
		change := round2((curr - prev) / prev * 100)
		changes[key+"_change"] = &change
	}
	return Comparison{
		Current:  current,
		Previous: previous,
		Changes:  changes,
	}
}
