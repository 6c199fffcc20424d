// Package scoring maps raw and qualitative scores onto the 1-9 scale and
// compares automated scores with user counter-scores.
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinScore = 1
	MaxScore = 9

	// DeviationThreshold is the largest |ai-user| difference that is not flagged.
	DeviationThreshold = 2
)

var digitRun = regexp.MustCompile(`\d+`)

// NormalizeScore accepts integers, integral floats, numeric strings and
// strings with an embedded digit run. It returns false when no in-range
// integer can be extracted.
func NormalizeScore(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return inRange(v)
	case int32:
		return inRange(int(v))
	case int64:
		return inRange(int(v))
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return inRange(int(v))
	case json.Number:
		return NormalizeScore(string(v))
	case string:
		m := digitRun.FindString(v)
		if m == "" {
			return 0, false
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return 0, false
		}
		return inRange(n)
	}
	return 0, false
}

func inRange(n int) (int, bool) {
	if n < MinScore || n > MaxScore {
		return 0, false
	}
	return n, true
}

// LevelTable maps a normalized qualitative level ("very low") to a score.
type LevelTable map[string]int

// RiskLevels is the ip-risk fallback table: lower score means more risk.
var RiskLevels = LevelTable{
	"very low":  8,
	"low":       7,
	"moderate":  6,
	"medium":    5,
	"balanced":  5,
	"elevated":  4,
	"high":      3,
	"very high": 2,
	"critical":  1,
}

// MapQualitativeLevel looks level up case-insensitively, treating '_' and '-'
// as spaces.
func MapQualitativeLevel(level any, table LevelTable) (int, bool) {
	s, ok := level.(string)
	if !ok {
		return 0, false
	}
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return 0, false
	}
	if n, ok := table[key]; ok {
		return n, true
	}
	key = strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(key)), " ")
	n, ok := table[key]
	return n, ok
}

type Deviation struct {
	HasDeviation bool   `json:"hasDeviation"`
	Deviation    int    `json:"deviation"`
	Message      string `json:"message,omitempty"`
}

func CheckDeviation(aiScore, userScore int) Deviation {
	d := aiScore - userScore
	if d < 0 {
		d = -d
	}
	out := Deviation{Deviation: d, HasDeviation: d > DeviationThreshold}
	if out.HasDeviation {
		out.Message = fmt.Sprintf("Your score differs by %d points from the AI assessment (%d). Consider reviewing the analysis before submitting.", d, aiScore)
	}
	return out
}
