package normalize

import (
	"strconv"
	"strings"
)

// DefaultAnalysisConfidence is used for general analysis confidence when the
// upstream reports none. Risk and funding domains report unknown instead.
const DefaultAnalysisConfidence = 0.7

// coerceConfidence accepts numbers, numeric strings and percentages and
// clamps the result to [0,1].
func coerceConfidence(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if pct, found := strings.CutSuffix(s, "%"); found {
			f, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
			if err != nil {
				return 0, false
			}
			return clamp01(f / 100), true
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return clamp01(f), true
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// resolveConfidence takes the first candidate that coerces. def nil leaves
// the confidence unknown.
func resolveConfidence(def *float64, candidates ...any) *float64 {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if f, ok := coerceConfidence(c); ok {
			return &f
		}
	}
	if def == nil {
		return nil
	}
	v := *def
	return &v
}

func analysisDefault() *float64 {
	v := DefaultAnalysisConfidence
	return &v
}

func confidenceValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
