package pipeline

import (
	"context"
	"fmt"
	"strings"

	"dealgraph/internal/logging"
	"dealgraph/internal/prompt"
)

// Dimension names used in stage updates and chat rendering.
const (
	dimensionStrategicFit      = "strategicFit"
	dimensionCustomerReadiness = "customerReadiness"
	dimensionStrategicUpside   = "strategicUpside"
	dimensionCompetitiveEdge   = "competitiveEdge"
)

// Criterion pairs a rubric criterion with its fixed weight.
type Criterion struct {
	Name   string
	Weight float64
}

// Stage declares one evaluation step: the retrieval query, the prompt
// template key, and (for scoring stages) the dimension and rubric. The
// risk-flags stage has no Dimension and produces red flags instead of a
// score.
type Stage struct {
	Name      string
	Query     string
	PromptKey string
	Dimension string
	Criteria  []Criterion
}

// Stages returns the evaluation sequence in its fixed order. The order is
// part of the contract: risk flags first, competitive edge last.
func Stages() []Stage {
	return []Stage{
		{
			Name:      "risk-flags",
			Query:     "Review the RFP for red flags",
			PromptKey: prompt.KeyRiskFlags,
		},
		{
			Name:      "strategic-fit",
			Query:     "Assess RFP strategic alignment",
			PromptKey: prompt.KeyStrategicFit,
			Dimension: dimensionStrategicFit,
			Criteria: []Criterion{
				{"Market Alignment", 0.10},
				{"Win Probability", 0.10},
				{"Delivery Capability", 0.10},
				{"Business Justification", 0.05},
			},
		},
		{
			Name:      "customer-readiness",
			Query:     "Assess customer readiness",
			PromptKey: prompt.KeyCustomerReadiness,
			Dimension: dimensionCustomerReadiness,
			Criteria: []Criterion{
				{"Stakeholder Clarity", 0.10},
				{"Decision-Maker Access", 0.05},
				{"Project Background", 0.05},
			},
		},
		{
			Name:      "strategic-upside",
			Query:     "Evaluate strategic upside of this deal",
			PromptKey: prompt.KeyStrategicUpside,
			Dimension: dimensionStrategicUpside,
			Criteria: []Criterion{
				{"Long-Term Potential", 0.10},
				{"Brand or Market Value", 0.05},
			},
		},
		{
			Name:      "competitive-edge",
			Query:     "Evaluate competitive edge for this deal",
			PromptKey: prompt.KeyCompetitiveEdge,
			Dimension: dimensionCompetitiveEdge,
			Criteria: []Criterion{
				{"Relevant Experience", 0.10},
				{"Differentiators", 0.10},
				{"Client Relationship", 0.10},
			},
		},
	}
}

// run executes one stage: retrieve, render, complete, parse. Retrieval and
// completion failures abort the run and propagate; parse failures degrade to
// a zero result with the Degraded flag set.
func (s Stage) run(ctx context.Context, sessionID string, retriever Retriever, completer Completer, prompts *prompt.Registry) (Update, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "stage."+s.Name)
	defer timer.Stop()

	passages, err := retriever.Retrieve(ctx, sessionID, s.Query)
	if err != nil {
		return Update{}, fmt.Errorf("stage %s: retrieval failed: %w", s.Name, err)
	}

	docs := make([]string, len(passages))
	for i, p := range passages {
		docs[i] = p.Text
	}
	stageContext := strings.Join(docs, "\n\n")

	rendered, err := prompts.Render(s.PromptKey, map[string]string{"context": stageContext})
	if err != nil {
		return Update{}, fmt.Errorf("stage %s: %w", s.Name, err)
	}

	raw, err := completer.Complete(ctx, rendered)
	if err != nil {
		return Update{}, fmt.Errorf("stage %s: completion failed: %w", s.Name, err)
	}

	update := Update{StageName: s.Name, Documents: docs, Dimension: s.Dimension}

	if s.Dimension == "" {
		flags, err := ParseRedFlags(raw)
		if err != nil {
			logging.PipelineWarn("Stage %s (session %s): %v", s.Name, sessionID, err)
			update.RedFlags = []RedFlag{}
			return update, nil
		}
		update.RedFlags = flags
		logging.Pipeline("Stage %s (session %s): %d red flag(s)", s.Name, sessionID, len(flags))
		return update, nil
	}

	result, err := ParseScore(raw, s.Criteria)
	if err != nil {
		logging.PipelineWarn("Stage %s (session %s): %v", s.Name, sessionID, err)
		update.Result = DimensionResult{Score: 0, Breakdown: []CriterionResult{}, Degraded: true}
		return update, nil
	}
	update.Result = result
	logging.Pipeline("Stage %s (session %s): score %.2f over %d criteria", s.Name, sessionID, result.Score, len(result.Breakdown))
	return update, nil
}
