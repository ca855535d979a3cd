package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"deskchat/internal/models"

	"github.com/cloudwego/eino/components/embedding"
)

// Service answers similarity queries over the ingested knowledge base. The
// query is embedded in the same space as the corpus and matched against the
// configured collection by cosine similarity; ties break by corpus insertion
// order. An empty corpus or a floor that filters everything yields an empty
// result, never an error.
type Service struct {
	db         *sql.DB
	embedder   embedding.Embedder
	collection string
	minScore   float64
}

// NewService builds the retrieval client.
func NewService(db *sql.DB, embedder embedding.Embedder, collection string, minScore float64) *Service {
	return &Service{db: db, embedder: embedder, collection: collection, minScore: minScore}
}

type scoredChunk struct {
	id     int64
	source string
	idx    int
	text   string
	score  float64
}

// Retrieve returns the top-k passages for the query in descending score
// order. The only error surface is the embedding call and the database read;
// "nothing relevant" is an empty slice.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error) {
	if k <= 0 {
		return []models.Passage{}, nil
	}
	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	queryVec := vectors[0]

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, chunk_idx, content, embedding FROM kb_embeddings
		 WHERE collection = ? ORDER BY id ASC`,
		s.collection,
	)
	if err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}
	defer rows.Close()

	var scored []scoredChunk
	for rows.Next() {
		var (
			chunk scoredChunk
			raw   string
		)
		if err := rows.Scan(&chunk.id, &chunk.source, &chunk.idx, &chunk.text, &raw); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		var vec []float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return nil, fmt.Errorf("decode embedding %d: %w", chunk.id, err)
		}
		chunk.score = cosine(queryVec, vec)
		if chunk.score < s.minScore {
			continue
		}
		scored = append(scored, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	passages := make([]models.Passage, 0, len(scored))
	for _, chunk := range scored {
		passages = append(passages, models.Passage{
			SourceID:   chunk.source,
			ChunkText:  chunk.text,
			Score:      chunk.score,
			Provenance: fmt.Sprintf("%s - chunk %d", chunk.source, chunk.idx),
		})
	}
	return passages, nil
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
