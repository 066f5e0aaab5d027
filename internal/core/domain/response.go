package domain

// ModelTierSafetyFilter is the sentinel tier reported when the safety gate
// answers instead of a model.
const ModelTierSafetyFilter = "safety_filter"

// SourceRef is one cited source in a pipeline response.
type SourceRef struct {
	SourceID    string      `json:"source_id"`
	SourceType  SourceType  `json:"source_type"`
	Title       string      `json:"title"`
	Excerpt     string      `json:"excerpt"`
	Score       float64     `json:"similarity_score"`
	Sensitivity Sensitivity `json:"sensitivity"`
}

// PipelineResponse is the complete non-streaming answer.
type PipelineResponse struct {
	Answer           string      `json:"answer"`
	Sources          []SourceRef `json:"sources"`
	LanguageDetected string      `json:"language_detected"`
	LanguageResponse string      `json:"language_response"`
	Mode             Mode        `json:"mode"`
	ModelUsed        string      `json:"model_used"`
	QueryID          string      `json:"query_id"`
	ProcessingMS     int64       `json:"processing_time_ms"`
}

// StreamEventType marks the kind of one streaming fragment. A committed
// stream cannot change its status code, so completion and failure are
// signaled in-band.
type StreamEventType string

const (
	StreamToken StreamEventType = "token"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is one ordered fragment of a streaming answer. Done events
// carry the response metadata; error events carry a user-safe message.
type StreamEvent struct {
	Type     StreamEventType   `json:"type"`
	Token    string            `json:"token,omitempty"`
	Response *PipelineResponse `json:"response,omitempty"`
	Message  string            `json:"message,omitempty"`
}
