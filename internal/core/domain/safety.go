package domain

// SafetyKind distinguishes audit entries for pre-query blocks from
// post-generation flags.
type SafetyKind string

const (
	SafetyQueryBlocked  SafetyKind = "query_blocked"
	SafetyOutputFlagged SafetyKind = "output_flagged"
)

// Safety gate reason codes. The set is closed; new reasons require a
// rules-data revision, not a code change.
const (
	ReasonQueryTooLong      = "query_too_long"
	ReasonGenocideDenial    = "genocide_denial"
	ReasonViolencePromotion = "violence_promotion"
	ReasonOutputDenial      = "output_genocide_denial"
	ReasonOutputViolence    = "output_violence"
)

// SafetyDecision is the outcome of one gate evaluation. Blocking is a
// normal branch, not an error: a blocked decision carries the pre-authored
// substitute text to return instead of generated content.
type SafetyDecision struct {
	Blocked      bool
	Reason       string
	SafeResponse string
}

// AuditEntry is one append-only record of a blocked query or flagged output.
type AuditEntry struct {
	Timestamp      string     `json:"timestamp"`
	Kind           SafetyKind `json:"type"`
	Reason         string     `json:"reason"`
	ContentPreview string     `json:"content_preview"`
}
