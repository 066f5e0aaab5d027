package usecase

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
	"github.com/muraho-rwanda/ai-guide/internal/safetyrules"
)

const auditPreviewChars = 500

// SafetyGate runs the mandatory pre-query and post-generation checks.
// Both checks share one rule set and cannot be disabled by configuration.
type SafetyGate struct {
	rules      *safetyrules.RuleSet
	audit      ports.AuditLog
	maxQuery   int
	now        func() time.Time
	onDecision func(kind domain.SafetyKind, reason string)
}

func NewSafetyGate(rules *safetyrules.RuleSet, audit ports.AuditLog, maxQueryLength int) *SafetyGate {
	if maxQueryLength <= 0 {
		maxQueryLength = 2000
	}
	return &SafetyGate{
		rules:    rules,
		audit:    audit,
		maxQuery: maxQueryLength,
		now:      time.Now,
	}
}

// SetDecisionHook registers a callback fired on every blocking decision.
// Used for metrics; nil disables it.
func (g *SafetyGate) SetDecisionHook(hook func(kind domain.SafetyKind, reason string)) {
	g.onDecision = hook
}

// EvaluateQuery checks a query before it reaches retrieval or generation.
// It always returns a decision, never an error: blocking is an expected
// branch of the pipeline.
func (g *SafetyGate) EvaluateQuery(ctx context.Context, query string) domain.SafetyDecision {
	// The ceiling is in characters, not bytes: accented French and
	// Kinyarwanda text must not hit it early.
	if utf8.RuneCountInString(query) > g.maxQuery {
		g.notify(domain.SafetyQueryBlocked, domain.ReasonQueryTooLong)
		return domain.SafetyDecision{
			Blocked:      true,
			Reason:       domain.ReasonQueryTooLong,
			SafeResponse: g.rules.SafeResponse(domain.ReasonQueryTooLong),
		}
	}

	reason, ok := g.rules.MatchQuery(query)
	if !ok {
		return domain.SafetyDecision{}
	}

	g.record(ctx, domain.SafetyQueryBlocked, reason, query)
	g.notify(domain.SafetyQueryBlocked, reason)
	return domain.SafetyDecision{
		Blocked:      true,
		Reason:       reason,
		SafeResponse: g.rules.SafeResponse(reason),
	}
}

// EvaluateOutput scans generated text for denial/violence signals the
// model produced despite the prompt-level safety rules.
func (g *SafetyGate) EvaluateOutput(ctx context.Context, output string) domain.SafetyDecision {
	reason, respondAs, ok := g.rules.MatchOutput(output)
	if !ok {
		return domain.SafetyDecision{}
	}

	g.record(ctx, domain.SafetyOutputFlagged, reason, output)
	g.notify(domain.SafetyOutputFlagged, reason)
	return domain.SafetyDecision{
		Blocked:      true,
		Reason:       reason,
		SafeResponse: g.rules.SafeResponse(respondAs),
	}
}

// SensitivityCeiling maps an interaction mode to the maximum sensitivity
// tier retrieval may surface. This is the single place that mapping lives.
func SensitivityCeiling(mode domain.Mode) domain.Sensitivity {
	switch mode {
	case domain.ModeKidFriendly:
		return domain.SensitivityStandard
	case domain.ModePersonalVoices:
		return domain.SensitivityHigh
	case domain.ModeStandard:
		return domain.SensitivitySensitive
	default:
		return domain.SensitivityStandard
	}
}

func (g *SafetyGate) record(ctx context.Context, kind domain.SafetyKind, reason, content string) {
	if g.audit == nil {
		return
	}
	g.audit.Append(ctx, domain.AuditEntry{
		Timestamp:      g.now().UTC().Format(time.RFC3339),
		Kind:           kind,
		Reason:         reason,
		ContentPreview: truncateExcerpt(content, auditPreviewChars),
	})
}

func (g *SafetyGate) notify(kind domain.SafetyKind, reason string) {
	if g.onDecision != nil {
		g.onDecision(kind, reason)
	}
}
