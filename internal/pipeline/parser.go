package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// scoreTolerance is the slack allowed before a model-computed weightedScore
// or totalScore is treated as wrong and recomputed.
const scoreTolerance = 0.01

// ParseError signals that a completion could not be parsed into the expected
// structure. It carries the raw text for diagnostics; stages log it and
// degrade rather than aborting the run.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse completion: %v (raw: %s)", e.Err, truncateRaw(e.Raw, 200))
}

func (e *ParseError) Unwrap() error { return e.Err }

func truncateRaw(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// stripFences removes markdown code-fence markers so the payload can be fed
// to a strict JSON parser.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

type scorePayload struct {
	ScoreBreakdown []CriterionResult `json:"scoreBreakdown"`
	TotalScore     float64           `json:"totalScore"`
}

// ParseScore extracts a dimension result from raw completion text and
// validates it against the stage's declared rubric. Everything the model
// computed is untrusted: each entry must name a declared criterion exactly
// once, its score must sit on the 1-5 scale, its weight is reconciled
// against the rubric's fixed weight, and weightedScore/totalScore are
// recomputed from score * weight. A dimension score can therefore never
// exceed 5 times the rubric's summed weight, whatever the model claims.
// Never panics; all failures come back as *ParseError.
func ParseScore(raw string, criteria []Criterion) (DimensionResult, error) {
	if len(criteria) == 0 {
		return DimensionResult{}, &ParseError{Raw: raw, Err: fmt.Errorf("no rubric declared")}
	}

	clean := stripFences(raw)
	if clean == "" {
		return DimensionResult{}, &ParseError{Raw: raw, Err: fmt.Errorf("empty completion")}
	}

	var payload scorePayload
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return DimensionResult{}, &ParseError{Raw: raw, Err: err}
	}
	if len(payload.ScoreBreakdown) == 0 {
		return DimensionResult{}, &ParseError{Raw: raw, Err: fmt.Errorf("missing scoreBreakdown")}
	}

	declared := make(map[string]Criterion, len(criteria))
	for _, c := range criteria {
		declared[strings.ToLower(c.Name)] = c
	}
	seen := make(map[string]bool, len(criteria))

	breakdown := make([]CriterionResult, len(payload.ScoreBreakdown))
	total := 0.0
	for i, entry := range payload.ScoreBreakdown {
		key := strings.ToLower(strings.TrimSpace(entry.Criteria))
		rubric, ok := declared[key]
		if !ok {
			return DimensionResult{}, &ParseError{Raw: raw, Err: fmt.Errorf("unexpected criterion %q", entry.Criteria)}
		}
		if seen[key] {
			return DimensionResult{}, &ParseError{Raw: raw, Err: fmt.Errorf("duplicate criterion %q", entry.Criteria)}
		}
		seen[key] = true

		if entry.Score < 1 || entry.Score > 5 {
			return DimensionResult{}, &ParseError{Raw: raw, Err: fmt.Errorf("criterion %q score %v outside 1-5 scale", entry.Criteria, entry.Score)}
		}
		if math.Abs(entry.Weight-rubric.Weight) > scoreTolerance {
			entry.Weight = rubric.Weight
			entry.Reconciled = true
		}

		expected := entry.Score * entry.Weight
		if math.Abs(entry.WeightedScore-expected) > scoreTolerance {
			entry.WeightedScore = expected
			entry.Reconciled = true
		}
		breakdown[i] = entry
		total += entry.WeightedScore
	}
	if len(seen) != len(criteria) {
		return DimensionResult{}, &ParseError{Raw: raw, Err: fmt.Errorf("breakdown covers %d of %d declared criteria", len(seen), len(criteria))}
	}

	score := payload.TotalScore
	if math.Abs(score-total) > scoreTolerance {
		score = total
	}

	return DimensionResult{Score: score, Breakdown: breakdown}, nil
}

// ParseRedFlags extracts the red flag list from raw completion text.
func ParseRedFlags(raw string) ([]RedFlag, error) {
	clean := stripFences(raw)
	if clean == "" {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("empty completion")}
	}

	var flags []RedFlag
	if err := json.Unmarshal([]byte(clean), &flags); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if flags == nil {
		flags = []RedFlag{}
	}
	return flags, nil
}
