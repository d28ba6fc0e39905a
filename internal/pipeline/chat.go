package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dealgraph/internal/logging"
	"dealgraph/internal/prompt"
)

// excerptLimit bounds the document text embedded in the chat prompt.
const excerptLimit = 3000

// scoreUnavailable is rendered for a degraded dimension so the model does
// not mistake a parse failure for a real zero.
const scoreUnavailable = "unavailable"

// Synthesizer answers free-form questions against a cached evaluation state.
// It never mutates the state.
type Synthesizer struct {
	completer Completer
	prompts   *prompt.Registry
}

// NewSynthesizer wires a chat synthesizer.
func NewSynthesizer(completer Completer, prompts *prompt.Registry) *Synthesizer {
	return &Synthesizer{completer: completer, prompts: prompts}
}

// Answer builds the consolidated chat prompt from the state and invokes the
// completion collaborator once. The output is prose, returned trimmed.
func (s *Synthesizer) Answer(ctx context.Context, state *EvaluationState, question string) (string, error) {
	timer := logging.StartTimer(logging.CategoryChat, "Synthesizer.Answer")
	defer timer.Stop()

	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question required")
	}

	verdict := state.QualificationVerdict
	if verdict == "" {
		verdict = VerdictReview
	}

	rendered, err := s.prompts.Render(prompt.KeyChat, map[string]string{
		"rfpContext":                      excerpt(state.Documents),
		"redFlags":                        formatRedFlags(state.RedFlags),
		"strategicFitScore":               formatScore(state.StrategicFit),
		"strategicFitScoreBreakdown":      formatBreakdown(state.StrategicFit),
		"customerReadinessScore":          formatScore(state.CustomerReadiness),
		"customerReadinessScoreBreakdown": formatBreakdown(state.CustomerReadiness),
		"competitiveEdgeScore":            formatScore(state.CompetitiveEdge),
		"competitiveEdgeScoreBreakdown":   formatBreakdown(state.CompetitiveEdge),
		"strategicUpsideScore":            formatScore(state.StrategicUpside),
		"strategicUpsideScoreBreakdown":   formatBreakdown(state.StrategicUpside),
		"qualificationVerdict":            verdict,
		"strategyIdeas":                   strings.Join(state.StrategyIdeas, "\n"),
		"question":                        question,
	})
	if err != nil {
		return "", err
	}

	logging.ChatDebug("Chat prompt for session %s: %d chars", state.SessionID, len(rendered))

	raw, err := s.completer.Complete(ctx, rendered)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

// excerpt joins the retrieved documents and bounds them to excerptLimit
// characters, cutting on a rune boundary.
func excerpt(documents []string) string {
	joined := strings.Join(documents, "\n\n")
	runes := []rune(joined)
	if len(runes) <= excerptLimit {
		return joined
	}
	return string(runes[:excerptLimit])
}

func formatRedFlags(flags []RedFlag) string {
	if len(flags) == 0 {
		return "none identified"
	}
	lines := make([]string, len(flags))
	for i, f := range flags {
		lines[i] = fmt.Sprintf("- %s: %s (action: %s, source: %s)", f.Flag, f.Reason, f.Action, f.Source)
	}
	return strings.Join(lines, "\n")
}

func formatScore(d DimensionResult) string {
	if d.Degraded {
		return scoreUnavailable
	}
	return fmt.Sprintf("%.2f", d.Score)
}

func formatBreakdown(d DimensionResult) string {
	if d.Degraded || len(d.Breakdown) == 0 {
		return "[]"
	}
	data, err := json.MarshalIndent(d.Breakdown, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
