package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"dealgraph/internal/logging"
	"dealgraph/internal/prompt"
)

// Verdict thresholds over the summed dimension totals. The four dimensions
// carry a combined criterion weight of 1.0 on a 1-5 scale, so a perfect deal
// sums to 5.0; these cut lines were chosen against that range.
const (
	goThreshold   = 1.75
	noGoThreshold = 1.10
)

// Orchestrator runs the fixed stage sequence against one shared state.
type Orchestrator struct {
	retriever Retriever
	completer Completer
	prompts   *prompt.Registry
	stages    []Stage
}

// NewOrchestrator wires an orchestrator over the default stage sequence.
func NewOrchestrator(retriever Retriever, completer Completer, prompts *prompt.Registry) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		completer: completer,
		prompts:   prompts,
		stages:    Stages(),
	}
}

// Run executes every stage in order, folding each partial update into the
// accumulator before the next stage starts, then derives the verdict and
// strategy ideas. A retrieval or completion failure aborts the run; parse
// failures degrade the affected dimension and the run continues.
func (o *Orchestrator) Run(ctx context.Context, sessionID string) (*EvaluationState, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "Orchestrator.Run")
	defer timer.Stop()

	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id required")
	}

	logging.Pipeline("Evaluation run started for session %s (%d stages)", sessionID, len(o.stages))

	state := NewEvaluationState(sessionID)
	for _, stage := range o.stages {
		update, err := stage.run(ctx, sessionID, o.retriever, o.completer, o.prompts)
		if err != nil {
			logging.Get(logging.CategoryPipeline).Error("Evaluation run aborted for session %s: %v", sessionID, err)
			return nil, err
		}
		state.apply(update)
	}

	aggregate(state)
	logging.Pipeline("Evaluation run finished for session %s: verdict=%s total=%.2f",
		sessionID, state.QualificationVerdict, totalScore(state))
	return state, nil
}

func totalScore(s *EvaluationState) float64 {
	total := 0.0
	for _, d := range s.dimensions() {
		total += d.Score
	}
	return total
}

// aggregate derives the qualification verdict and strategy ideas from the
// completed dimensions. A disqualifying red flag forces NO-GO; any degraded
// dimension caps the verdict at REVIEW since its zero score is not a real
// measurement.
func aggregate(s *EvaluationState) {
	disqualified := false
	for _, f := range s.RedFlags {
		if strings.Contains(strings.ToLower(f.Action), "disqualif") {
			disqualified = true
			break
		}
	}

	degraded := false
	for _, d := range s.dimensions() {
		if d.Degraded {
			degraded = true
			break
		}
	}

	total := totalScore(s)
	switch {
	case disqualified:
		s.QualificationVerdict = VerdictNoGo
	case degraded:
		s.QualificationVerdict = VerdictReview
	case total >= goThreshold:
		s.QualificationVerdict = VerdictGo
	case total < noGoThreshold:
		s.QualificationVerdict = VerdictNoGo
	default:
		s.QualificationVerdict = VerdictReview
	}

	s.StrategyIdeas = strategyIdeas(s)
}

// strategyIdeas suggests actions from the red flags and the weakest criteria.
func strategyIdeas(s *EvaluationState) []string {
	ideas := make([]string, 0, len(s.RedFlags)+3)
	for _, f := range s.RedFlags {
		idea := fmt.Sprintf("Address red flag %q: %s", f.Flag, f.Action)
		ideas = append(ideas, idea)
	}

	var weak []CriterionResult
	for _, d := range s.dimensions() {
		if d.Degraded {
			continue
		}
		for _, c := range d.Breakdown {
			if c.Score <= 3 {
				weak = append(weak, c)
			}
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Score < weak[j].Score })
	if len(weak) > 3 {
		weak = weak[:3]
	}
	for _, c := range weak {
		idea := fmt.Sprintf("Strengthen %s (scored %.0f/5)", c.Criteria, c.Score)
		if strings.TrimSpace(c.Reason) != "" {
			idea += ": " + c.Reason
		}
		ideas = append(ideas, idea)
	}
	return ideas
}
