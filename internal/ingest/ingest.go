package ingest

import (
	"context"
	"fmt"

	"dealgraph/internal/embedding"
	"dealgraph/internal/logging"
	"dealgraph/internal/store"

	"golang.org/x/sync/errgroup"
)

// Ingestor extracts, splits, embeds, and stores proposal documents.
type Ingestor struct {
	engine   embedding.Engine
	chunks   *store.ChunkStore
	splitter *Splitter
	workers  int
}

// NewIngestor wires an ingestor. workers bounds concurrent embedding calls.
func NewIngestor(engine embedding.Engine, chunks *store.ChunkStore, splitter *Splitter, workers int) *Ingestor {
	if workers <= 0 {
		workers = 4
	}
	return &Ingestor{
		engine:   engine,
		chunks:   chunks,
		splitter: splitter,
		workers:  workers,
	}
}

// IngestPDF extracts a PDF and ingests its text under the session.
// Returns the number of stored chunks.
func (in *Ingestor) IngestPDF(ctx context.Context, sessionID, path string) (int, error) {
	text, err := ExtractPDFText(path)
	if err != nil {
		return 0, err
	}
	return in.IngestText(ctx, sessionID, text)
}

// IngestText splits, embeds, and stores raw document text under the session,
// replacing any prior document for that session.
func (in *Ingestor) IngestText(ctx context.Context, sessionID, text string) (int, error) {
	timer := logging.StartTimer(logging.CategoryIngest, "Ingestor.IngestText")
	defer timer.Stop()

	if sessionID == "" {
		return 0, fmt.Errorf("session id required")
	}

	parts := in.splitter.Split(text)
	logging.Ingest("Session %s: split document into %d chunks", sessionID, len(parts))

	chunks := make([]store.Chunk, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for i, part := range parts {
		g.Go(func() error {
			vec, err := in.engine.EmbedDocument(gctx, part)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			chunks[i] = store.Chunk{Seq: i, Text: part, Embedding: vec}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := in.chunks.ReplaceSession(sessionID, chunks); err != nil {
		return 0, err
	}

	logging.Ingest("Session %s: document embedded and stored", sessionID)
	return len(chunks), nil
}
