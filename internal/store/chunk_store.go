// Package store persists ingested document chunks with their embeddings and
// serves session-scoped similarity search over them.
package store

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sync"

	"dealgraph/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Passage is a ranked search result from a session's ingested document.
type Passage struct {
	Text       string  // Chunk text
	Similarity float64 // Cosine similarity (1.0 = identical)
	Rank       int     // Result rank (1-based)
}

// Chunk is one ingested document fragment with its embedding.
type Chunk struct {
	Seq       int
	Text      string
	Embedding []float32
}

// ChunkStore persists session-scoped document chunks in SQLite and answers
// similarity queries via sqlite-vec's vec_distance_cosine.
type ChunkStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewChunkStore opens (or creates) the chunk database at path.
// Use ":memory:" for an ephemeral store.
func NewChunkStore(path string) (*ChunkStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewChunkStore")
	defer timer.Stop()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify chunk database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS deal_chunks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			seq         INTEGER NOT NULL,
			content     TEXT NOT NULL,
			embedding   BLOB NOT NULL,
			created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_deal_chunks_session ON deal_chunks(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chunk schema: %w", err)
	}

	logging.Store("Chunk store opened: %s", path)
	return &ChunkStore{db: db}, nil
}

// ReplaceSession atomically replaces all chunks for a session.
// Re-ingesting a document for the same session drops the prior chunks, so a
// session always reflects exactly one document.
func (s *ChunkStore) ReplaceSession(sessionID string, chunks []Chunk) error {
	timer := logging.StartTimer(logging.CategoryStore, "ChunkStore.ReplaceSession")
	defer timer.Stop()

	if sessionID == "" {
		return fmt.Errorf("session id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM deal_chunks WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear session chunks: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO deal_chunks (session_id, seq, content, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		blob := encodeFloat32SliceToBlob(c.Embedding)
		if blob == nil {
			return fmt.Errorf("failed to encode embedding for chunk %d", c.Seq)
		}
		if _, err := stmt.Exec(sessionID, c.Seq, c.Text, blob); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session chunks: %w", err)
	}

	logging.Store("Stored %d chunks for session %s", len(chunks), sessionID)
	return nil
}

// Search returns the topK chunks for a session ranked by cosine similarity
// to the query embedding.
func (s *ChunkStore) Search(sessionID string, queryEmbedding []float32, topK int) ([]Passage, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ChunkStore.Search")
	defer timer.Stop()

	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("chunk store not initialized")
	}

	queryBlob := encodeFloat32SliceToBlob(queryEmbedding)

	// Cosine distance is 1 - similarity; ascending distance = best first.
	query := `
		SELECT
			content,
			vec_distance_cosine(embedding, ?) AS distance
		FROM deal_chunks
		WHERE session_id = ?
		ORDER BY distance ASC
		LIMIT ?
	`

	rows, err := s.db.Query(query, queryBlob, sessionID, topK)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	rank := 1
	for rows.Next() {
		var p Passage
		var distance float64
		if err := rows.Scan(&p.Text, &distance); err != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to scan chunk row: %v", err)
			continue
		}
		p.Similarity = 1.0 - distance
		p.Rank = rank
		rank++
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk results: %w", err)
	}

	logging.StoreDebug("Chunk search session=%s returned %d passages", sessionID, len(passages))
	return passages, nil
}

// CountChunks returns the number of stored chunks for a session.
func (s *ChunkStore) CountChunks(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM deal_chunks WHERE session_id = ?`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count session chunks: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// encodeFloat32SliceToBlob encodes a float32 slice as a binary blob for
// sqlite-vec. Little-endian, as the extension expects.
func encodeFloat32SliceToBlob(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}
