package pipeline

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by Ask for sessions with no cached
// evaluation. The HTTP layer maps it to a user-facing 400.
var ErrSessionNotFound = errors.New("no session found")

// Service ties the orchestrator, the result cache, and the chat synthesizer
// into the two operations the HTTP layer needs.
type Service struct {
	orch  *Orchestrator
	cache ResultCache
	chat  *Synthesizer
}

// NewService wires the evaluation service.
func NewService(orch *Orchestrator, cache ResultCache, chat *Synthesizer) *Service {
	return &Service{orch: orch, cache: cache, chat: chat}
}

// Evaluate runs the full stage sequence for a session and caches the result.
// The per-session lock serializes concurrent evaluations of the same
// session; a failed run writes nothing, leaving any prior cached state
// intact.
func (s *Service) Evaluate(ctx context.Context, sessionID string) (*EvaluationState, error) {
	unlock := s.cache.LockSession(sessionID)
	defer unlock()

	state, err := s.orch.Run(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.cache.Put(sessionID, state)
	return state, nil
}

// Ask answers a question against the cached evaluation for the session.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (string, error) {
	state, ok := s.cache.Get(sessionID)
	if !ok {
		return "", ErrSessionNotFound
	}
	return s.chat.Answer(ctx, state, question)
}
