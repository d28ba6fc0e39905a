package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"dealgraph/internal/store"
)

// axisEngine maps known texts onto fixed axes so ranking is predictable.
type axisEngine struct {
	axes map[string][]float32
	fail bool
}

func (a *axisEngine) lookup(text string) []float32 {
	if v, ok := a.axes[text]; ok {
		return v
	}
	return []float32{0, 0, 1}
}

func (a *axisEngine) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	return a.lookup(text), nil
}

func (a *axisEngine) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = a.lookup(t)
	}
	return out, nil
}

func (a *axisEngine) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if a.fail {
		return nil, fmt.Errorf("simulated embed failure")
	}
	return a.lookup(text), nil
}

func (a *axisEngine) Dimensions() int { return 3 }
func (a *axisEngine) Name() string    { return "axis:test" }

func TestRetrieveRanksBySimilarity(t *testing.T) {
	cs, err := store.NewChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("NewChunkStore failed: %v", err)
	}
	defer cs.Close()

	engine := &axisEngine{axes: map[string][]float32{
		"budget details":         {1, 0, 0},
		"timeline details":       {0, 1, 0},
		"what is the budget":     {0.9, 0.1, 0},
	}}

	chunks := []store.Chunk{
		{Seq: 0, Text: "budget details", Embedding: []float32{1, 0, 0}},
		{Seq: 1, Text: "timeline details", Embedding: []float32{0, 1, 0}},
	}
	if err := cs.ReplaceSession("s1", chunks); err != nil {
		t.Fatalf("ReplaceSession failed: %v", err)
	}

	r := NewRetriever(engine, cs, 2)
	got, err := r.Retrieve(context.Background(), "s1", "what is the budget")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].Text != "budget details" {
		t.Errorf("best passage = %q, want budget chunk first", got[0].Text)
	}
}

func TestRetrieveEmptySessionYieldsEmptySlice(t *testing.T) {
	cs, err := store.NewChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("NewChunkStore failed: %v", err)
	}
	defer cs.Close()

	r := NewRetriever(&axisEngine{}, cs, 5)
	got, err := r.Retrieve(context.Background(), "empty", "anything")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no passages, got %d", len(got))
	}
}

func TestRetrieveEmbedFailurePropagates(t *testing.T) {
	cs, err := store.NewChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("NewChunkStore failed: %v", err)
	}
	defer cs.Close()

	r := NewRetriever(&axisEngine{fail: true}, cs, 5)
	if _, err := r.Retrieve(context.Background(), "s1", "q"); err == nil {
		t.Error("expected error when query embedding fails")
	}
}
