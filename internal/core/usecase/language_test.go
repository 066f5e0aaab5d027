package usecase

import (
	"context"
	"errors"
	"testing"
)

type detectorFake struct {
	lang   string
	called bool
}

func (f *detectorFake) Detect(string) string {
	f.called = true
	return f.lang
}

type translatorFake struct {
	result string
	err    error
	called bool
	input  string
}

func (f *translatorFake) TranslateToEnglish(_ context.Context, text, _ string) (string, error) {
	f.called = true
	f.input = text
	return f.result, f.err
}

func TestNormalizeDeclaredLanguageSkipsDetection(t *testing.T) {
	detector := &detectorFake{lang: "rw"}
	normalizer := NewLanguageNormalizer(detector, &translatorFake{})

	detected, searchText := normalizer.Normalize(context.Background(), "Bonjour, parlez-moi du Rwanda", "fr")
	if detected != "fr" {
		t.Fatalf("expected fr, got %s", detected)
	}
	if detector.called {
		t.Fatalf("detector must not run for a declared language")
	}
	if searchText != "Bonjour, parlez-moi du Rwanda" {
		t.Fatalf("unexpected search text %q", searchText)
	}
}

func TestNormalizeAutoRunsDetection(t *testing.T) {
	detector := &detectorFake{lang: "en"}
	normalizer := NewLanguageNormalizer(detector, &translatorFake{})

	detected, _ := normalizer.Normalize(context.Background(), "Tell me about the memorial", "auto")
	if detected != "en" {
		t.Fatalf("expected en, got %s", detected)
	}
	if !detector.called {
		t.Fatalf("expected detection for auto")
	}
}

func TestNormalizeShortTextDefaultsToEnglish(t *testing.T) {
	detector := &detectorFake{lang: "fr"}
	normalizer := NewLanguageNormalizer(detector, &translatorFake{})

	detected, _ := normalizer.Normalize(context.Background(), "  hi ", "")
	if detected != "en" {
		t.Fatalf("expected en for short text, got %s", detected)
	}
	if detector.called {
		t.Fatalf("detector must not run for short text")
	}
}

func TestNormalizeKinyarwandaPivotsToEnglish(t *testing.T) {
	translator := &translatorFake{result: "tell me about the genocide memorial"}
	normalizer := NewLanguageNormalizer(&detectorFake{lang: "rw"}, translator)

	detected, searchText := normalizer.Normalize(context.Background(), "mbwira ibyerekeye urwibutso", "auto")
	if detected != "rw" {
		t.Fatalf("expected rw, got %s", detected)
	}
	if !translator.called {
		t.Fatalf("expected translation")
	}
	if searchText != "tell me about the genocide memorial" {
		t.Fatalf("expected pivoted search text, got %q", searchText)
	}
}

func TestNormalizeTranslationFailureKeepsOriginal(t *testing.T) {
	translator := &translatorFake{err: errors.New("backend down")}
	normalizer := NewLanguageNormalizer(&detectorFake{lang: "rw"}, translator)

	detected, searchText := normalizer.Normalize(context.Background(), "mbwira ibyerekeye urwibutso", "auto")
	if detected != "rw" {
		t.Fatalf("expected rw, got %s", detected)
	}
	if searchText != "mbwira ibyerekeye urwibutso" {
		t.Fatalf("expected original text on failure, got %q", searchText)
	}
}

func TestNormalizeEmptyTranslationKeepsOriginal(t *testing.T) {
	translator := &translatorFake{result: "   "}
	normalizer := NewLanguageNormalizer(&detectorFake{lang: "rw"}, translator)

	_, searchText := normalizer.Normalize(context.Background(), "mbwira", "rw")
	if searchText != "mbwira" {
		t.Fatalf("expected original text for blank translation, got %q", searchText)
	}
}
