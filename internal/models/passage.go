package models

// Passage is one retrieved knowledge-base chunk. Ephemeral: recomputed per
// request, never persisted; only the provenance label surfaces to the caller.
type Passage struct {
	SourceID   string  `json:"source_id"`
	ChunkText  string  `json:"chunk_text"`
	Score      float64 `json:"rank_score"`
	Provenance string  `json:"provenance_label"`
}
