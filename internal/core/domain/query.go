package domain

// Mode selects the assistant's tone profile and sensitivity ceiling.
type Mode string

const (
	ModeStandard       Mode = "standard"
	ModePersonalVoices Mode = "personal_voices"
	ModeKidFriendly    Mode = "kid_friendly"
)

// AccessTier drives rate limiting only; it never widens content access.
type AccessTier string

const (
	TierFree       AccessTier = "free"
	TierDayPass    AccessTier = "day_pass"
	TierSubscriber AccessTier = "subscriber"
	TierAgency     AccessTier = "agency"
)

// QueryContext is the UI context sent with a query for location-aware answers.
type QueryContext struct {
	CurrentPage string  `json:"current_page,omitempty"`
	MuseumID    string  `json:"museum_id,omitempty"`
	RouteID     string  `json:"route_id,omitempty"`
	LocationID  string  `json:"location_id,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

// Query is one user question. Immutable once received; scoped to a single
// pipeline invocation.
type Query struct {
	Text       string
	Language   string // "en", "fr", "rw" or "auto"
	Mode       Mode
	Context    QueryContext
	AccessTier AccessTier
	Stream     bool
}

// SearchFilter restricts retrieval by chunk metadata. Zero values mean
// "no restriction" for that dimension; SensitivityCeiling is always set
// by the pipeline from the interaction mode.
type SearchFilter struct {
	SourceType         SourceType
	Language           string
	SensitivityCeiling Sensitivity
	LocationID         string
	MuseumID           string
	RouteID            string
}
