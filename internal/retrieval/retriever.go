// Package retrieval answers natural-language queries against a session's
// ingested document: embed the query, rank stored chunks by cosine distance.
package retrieval

import (
	"context"
	"fmt"

	"dealgraph/internal/embedding"
	"dealgraph/internal/logging"
	"dealgraph/internal/store"
)

// Retriever performs session-scoped semantic search over ingested chunks.
type Retriever struct {
	engine embedding.Engine
	chunks *store.ChunkStore
	topK   int
}

// NewRetriever wires a retriever. topK is the passage count per query.
func NewRetriever(engine embedding.Engine, chunks *store.ChunkStore, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{engine: engine, chunks: chunks, topK: topK}
}

// Retrieve returns the passages most relevant to the query for the session,
// best first. An ingested-but-empty session yields an empty slice, not an
// error; callers decide how to treat an empty context.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string) ([]store.Passage, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Retriever.Retrieve")
	defer timer.Stop()

	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}

	queryVec, err := r.engine.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	passages, err := r.chunks.Search(sessionID, queryVec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search session %s: %w", sessionID, err)
	}

	logging.RetrievalDebug("Session %s query %q: %d passages", sessionID, query, len(passages))
	return passages, nil
}
