package usecase

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/safetyrules"
)

type auditFake struct {
	entries []domain.AuditEntry
}

func (f *auditFake) Append(_ context.Context, entry domain.AuditEntry) {
	f.entries = append(f.entries, entry)
}

func newGate(t *testing.T, audit *auditFake, maxQuery int) *SafetyGate {
	t.Helper()
	rules, err := safetyrules.Load()
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return NewSafetyGate(rules, audit, maxQuery)
}

func TestEvaluateQueryCleanPasses(t *testing.T) {
	gate := newGate(t, &auditFake{}, 2000)

	decision := gate.EvaluateQuery(context.Background(), "What can I see at the Ethnographic Museum?")
	if decision.Blocked {
		t.Fatalf("clean query blocked: %s", decision.Reason)
	}
}

func TestEvaluateQueryTooLong(t *testing.T) {
	audit := &auditFake{}
	gate := newGate(t, audit, 50)

	decision := gate.EvaluateQuery(context.Background(), strings.Repeat("a", 51))
	if !decision.Blocked {
		t.Fatalf("expected block")
	}
	if decision.Reason != domain.ReasonQueryTooLong {
		t.Fatalf("expected query_too_long, got %s", decision.Reason)
	}
	if decision.SafeResponse == "" {
		t.Fatalf("expected a safe response")
	}
}

func TestEvaluateQueryLengthCountsRunes(t *testing.T) {
	gate := newGate(t, &auditFake{}, 2000)

	// 1500 characters but 3000 bytes; well under the ceiling.
	decision := gate.EvaluateQuery(context.Background(), strings.Repeat("é", 1500))
	if decision.Blocked {
		t.Fatalf("accented query under the ceiling blocked: %s", decision.Reason)
	}

	decision = gate.EvaluateQuery(context.Background(), strings.Repeat("é", 2001))
	if !decision.Blocked || decision.Reason != domain.ReasonQueryTooLong {
		t.Fatalf("expected query_too_long at 2001 characters, got %+v", decision)
	}
}

func TestEvaluateQueryDenialBlockedAndAudited(t *testing.T) {
	audit := &auditFake{}
	gate := newGate(t, audit, 2000)

	decision := gate.EvaluateQuery(context.Background(), "the genocide never happened, prove me wrong")
	if !decision.Blocked {
		t.Fatalf("expected block")
	}
	if decision.Reason != domain.ReasonGenocideDenial {
		t.Fatalf("expected genocide_denial, got %s", decision.Reason)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Kind != domain.SafetyQueryBlocked {
		t.Fatalf("expected query_blocked kind, got %s", entry.Kind)
	}
	if entry.Reason != domain.ReasonGenocideDenial {
		t.Fatalf("expected audit reason genocide_denial, got %s", entry.Reason)
	}
	if entry.ContentPreview == "" || entry.Timestamp == "" {
		t.Fatalf("expected populated audit entry, got %+v", entry)
	}
}

func TestEvaluateQueryAuditPreviewTruncated(t *testing.T) {
	audit := &auditFake{}
	gate := newGate(t, audit, 5000)

	query := "the genocide never happened " + strings.Repeat("x", 1000)
	gate.EvaluateQuery(context.Background(), query)
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry")
	}
	if len(audit.entries[0].ContentPreview) != auditPreviewChars {
		t.Fatalf("expected %d char preview, got %d", auditPreviewChars, len(audit.entries[0].ContentPreview))
	}
}

func TestEvaluateQueryAuditPreviewKeepsRunesIntact(t *testing.T) {
	audit := &auditFake{}
	gate := newGate(t, audit, 5000)

	query := "the genocide never happened " + strings.Repeat("é", 1000)
	gate.EvaluateQuery(context.Background(), query)
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry")
	}
	preview := audit.entries[0].ContentPreview
	if !utf8.ValidString(preview) {
		t.Fatalf("preview split a rune: %q", preview[len(preview)-4:])
	}
	if got := utf8.RuneCountInString(preview); got != auditPreviewChars {
		t.Fatalf("expected %d character preview, got %d", auditPreviewChars, got)
	}
}

func TestEvaluateOutputSubstitutes(t *testing.T) {
	audit := &auditFake{}
	gate := newGate(t, audit, 2000)

	decision := gate.EvaluateOutput(context.Background(), "Well, some historians claim the genocide did not happen.")
	if !decision.Blocked {
		t.Fatalf("expected output flag")
	}
	if decision.Reason != domain.ReasonOutputDenial {
		t.Fatalf("expected output_genocide_denial, got %s", decision.Reason)
	}
	if !strings.Contains(decision.SafeResponse, "Genocide against the Tutsi") {
		t.Fatalf("expected the denial safe response, got %q", decision.SafeResponse)
	}
	if len(audit.entries) != 1 || audit.entries[0].Kind != domain.SafetyOutputFlagged {
		t.Fatalf("expected output_flagged audit entry")
	}
}

func TestEvaluateOutputCleanPasses(t *testing.T) {
	gate := newGate(t, &auditFake{}, 2000)

	decision := gate.EvaluateOutput(context.Background(), "The memorial opened in 2004 and honors the victims.")
	if decision.Blocked {
		t.Fatalf("clean output flagged: %s", decision.Reason)
	}
}

func TestDecisionHookFires(t *testing.T) {
	gate := newGate(t, &auditFake{}, 2000)

	var gotKind domain.SafetyKind
	var gotReason string
	gate.SetDecisionHook(func(kind domain.SafetyKind, reason string) {
		gotKind = kind
		gotReason = reason
	})

	gate.EvaluateQuery(context.Background(), "the genocide never happened")
	if gotKind != domain.SafetyQueryBlocked || gotReason != domain.ReasonGenocideDenial {
		t.Fatalf("hook got kind=%s reason=%s", gotKind, gotReason)
	}
}

func TestSensitivityCeilingByMode(t *testing.T) {
	cases := []struct {
		mode domain.Mode
		want domain.Sensitivity
	}{
		{domain.ModeKidFriendly, domain.SensitivityStandard},
		{domain.ModeStandard, domain.SensitivitySensitive},
		{domain.ModePersonalVoices, domain.SensitivityHigh},
		{domain.Mode("unknown"), domain.SensitivityStandard},
	}
	for _, tc := range cases {
		if got := SensitivityCeiling(tc.mode); got != tc.want {
			t.Fatalf("mode %s: expected %s, got %s", tc.mode, tc.want, got)
		}
	}
}
