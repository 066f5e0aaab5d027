package domain

// RetrievedChunk is a chunk reference plus the score that produced it.
// Score is cosine similarity in [0,1] for semantic hits and a trigram
// similarity for keyword-fallback hits; Lexical marks the latter.
type RetrievedChunk struct {
	ChunkID     string      `json:"chunk_id"`
	SourceID    string      `json:"source_id"`
	SourceType  SourceType  `json:"source_type"`
	Text        string      `json:"text"`
	Language    string      `json:"language"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Score       float64     `json:"score"`
	Lexical     bool        `json:"lexical,omitempty"`
}
