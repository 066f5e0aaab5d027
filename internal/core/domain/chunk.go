package domain

// SourceType enumerates the kinds of content a chunk can come from.
type SourceType string

const (
	SourceStory      SourceType = "story"
	SourceTestimony  SourceType = "testimony"
	SourcePanel      SourceType = "panel"
	SourceRouteStop  SourceType = "route_stop"
	SourceMuseumInfo SourceType = "museum_info"
	SourceQuote      SourceType = "quote"
)

// Sensitivity is the ordered content classification gating what a given
// interaction mode may surface. Rank() defines the ordering.
type Sensitivity string

const (
	SensitivityStandard  Sensitivity = "standard"
	SensitivitySensitive Sensitivity = "sensitive"
	SensitivityHigh      Sensitivity = "highly_sensitive"
)

func (s Sensitivity) Rank() int {
	switch s {
	case SensitivityStandard:
		return 1
	case SensitivitySensitive:
		return 2
	case SensitivityHigh:
		return 3
	default:
		return 0
	}
}

// AllowedUpTo returns every tier at or below the ceiling, in rank order.
func AllowedUpTo(ceiling Sensitivity) []Sensitivity {
	all := []Sensitivity{SensitivityStandard, SensitivitySensitive, SensitivityHigh}
	out := make([]Sensitivity, 0, len(all))
	for _, tier := range all {
		if tier.Rank() <= ceiling.Rank() {
			out = append(out, tier)
		}
	}
	return out
}

// Chunk is a retrievable unit of source text. ChunkID is the upsert key:
// re-indexing the same id replaces text and embedding, never duplicates.
type Chunk struct {
	ChunkID     string      `json:"chunk_id"`
	SourceID    string      `json:"source_id"`
	SourceType  SourceType  `json:"source_type"`
	Language    string      `json:"language"`
	Sensitivity Sensitivity `json:"sensitivity"`
	LocationID  string      `json:"location_id,omitempty"`
	MuseumID    string      `json:"museum_id,omitempty"`
	RouteID     string      `json:"route_id,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Text        string      `json:"text"`
	Embedding   []float32   `json:"-"`
}
