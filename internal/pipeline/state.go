// Package pipeline runs the multi-stage deal evaluation: five scoring stages
// over session-scoped retrieval, a shared accumulating state, a result cache,
// and the chat synthesizer that answers questions against cached results.
package pipeline

import (
	"context"

	"dealgraph/internal/store"
)

// Retriever is the retrieval collaborator consumed by stages.
type Retriever interface {
	Retrieve(ctx context.Context, sessionID, query string) ([]store.Passage, error)
}

// Completer is the completion collaborator consumed by stages and chat.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RedFlag is one identified deal risk.
type RedFlag struct {
	Flag   string `json:"flag"`
	Action string `json:"action"`
	Reason string `json:"reason"`
	Source string `json:"source"`
}

// CriterionResult is one scored criterion within a dimension's breakdown.
// Reconciled marks records whose weightedScore was recomputed because the
// model's arithmetic did not match score * weight.
type CriterionResult struct {
	Criteria      string  `json:"criteria"`
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weightedScore"`
	Reason        string  `json:"reason,omitempty"`
	Reconciled    bool    `json:"reconciled,omitempty"`
}

// DimensionResult is one scoring dimension's outcome. Degraded is set when
// the stage's completion could not be parsed; Score 0 with Degraded true is a
// parse failure, not a real zero.
type DimensionResult struct {
	Score     float64           `json:"score"`
	Breakdown []CriterionResult `json:"breakdown"`
	Degraded  bool              `json:"degraded,omitempty"`
}

// Verdicts produced by the aggregation step.
const (
	VerdictGo     = "GO"
	VerdictReview = "REVIEW"
	VerdictNoGo   = "NO-GO"
)

// EvaluationState is the accumulator threaded through an evaluation run and
// the unit stored in the result cache.
type EvaluationState struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question,omitempty"`

	// Documents collects the passages each stage retrieved, in stage order.
	Documents []string `json:"documents"`

	RedFlags []RedFlag `json:"redFlags"`

	StrategicFit      DimensionResult `json:"strategicFit"`
	CustomerReadiness DimensionResult `json:"customerReadiness"`
	StrategicUpside   DimensionResult `json:"strategicUpside"`
	CompetitiveEdge   DimensionResult `json:"competitiveEdge"`

	QualificationVerdict string   `json:"qualificationVerdict,omitempty"`
	StrategyIdeas        []string `json:"strategyIdeas,omitempty"`
}

// NewEvaluationState creates a fresh accumulator for one run.
func NewEvaluationState(sessionID string) *EvaluationState {
	return &EvaluationState{
		SessionID: sessionID,
		Documents: []string{},
		RedFlags:  []RedFlag{},
	}
}

// Update is the partial result one stage returns. Exactly one of RedFlags or
// Dimension is meaningful, selected by the stage kind; Documents carries the
// passages the stage retrieved.
type Update struct {
	StageName string
	Documents []string

	RedFlags []RedFlag // risk-flags stage only

	Dimension string // scoring stages: dimension name
	Result    DimensionResult
}

// apply folds a stage update into the accumulator. Updates are atomic: either
// the full parsed result or the full degraded default arrives here.
func (s *EvaluationState) apply(u Update) {
	s.Documents = append(s.Documents, u.Documents...)
	if u.Dimension == "" {
		s.RedFlags = append(s.RedFlags, u.RedFlags...)
		return
	}
	switch u.Dimension {
	case dimensionStrategicFit:
		s.StrategicFit = u.Result
	case dimensionCustomerReadiness:
		s.CustomerReadiness = u.Result
	case dimensionStrategicUpside:
		s.StrategicUpside = u.Result
	case dimensionCompetitiveEdge:
		s.CompetitiveEdge = u.Result
	}
}

// dimensions returns the scoring dimensions in stage order.
func (s *EvaluationState) dimensions() []DimensionResult {
	return []DimensionResult{s.StrategicFit, s.CustomerReadiness, s.StrategicUpside, s.CompetitiveEdge}
}
