package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
)

type generatorFake struct {
	answer    string
	genErr    error
	tokens    []string
	streamErr error

	called       bool
	streamCalled bool
	model        string
	systemPrompt string
	userMessage  string
	params       ports.GenerationParams
}

func (f *generatorFake) Generate(_ context.Context, systemPrompt, userMessage, model string, params ports.GenerationParams) (string, error) {
	f.called = true
	f.systemPrompt = systemPrompt
	f.userMessage = userMessage
	f.model = model
	f.params = params
	return f.answer, f.genErr
}

func (f *generatorFake) GenerateStream(_ context.Context, systemPrompt, userMessage, model string, params ports.GenerationParams, emit func(token string) error) error {
	f.streamCalled = true
	f.systemPrompt = systemPrompt
	f.userMessage = userMessage
	f.model = model
	f.params = params
	for _, token := range f.tokens {
		if err := emit(token); err != nil {
			return err
		}
	}
	return f.streamErr
}

type askFixture struct {
	store     *storeFake
	generator *generatorFake
	uc        *AskUseCase
}

func newAskFixture(t *testing.T, store *storeFake, generator *generatorFake) *askFixture {
	t.Helper()
	language := NewLanguageNormalizer(&detectorFake{lang: "en"}, &translatorFake{})
	gate := newGate(t, &auditFake{}, 2000)
	retrieval := NewRetrievalEngine(&embedderFake{}, store, RetrievalConfig{})
	router := NewModelRouter("fast-model", "heavy-model", []string{"testimony"}, 40)

	return &askFixture{
		store:     store,
		generator: generator,
		uc:        NewAskUseCase(language, gate, retrieval, router, generator, AskConfig{}),
	}
}

func TestAskHappyPath(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{
		{ChunkID: "c1", SourceID: "story-1", SourceType: domain.SourceStory, Text: strings.Repeat("history ", 40), Score: 0.88, Sensitivity: domain.SensitivityStandard},
		{ChunkID: "c2", SourceID: "panel-2", SourceType: domain.SourcePanel, Text: "panel text", Score: 0.7, Sensitivity: domain.SensitivityStandard},
	}}
	generator := &generatorFake{answer: "The memorial opened in 2004. [Source 1]"}
	fx := newAskFixture(t, store, generator)

	response, err := fx.uc.Ask(context.Background(), domain.Query{
		Text:     "When did the memorial open?",
		Language: "en",
		Mode:     domain.ModeStandard,
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if response.Answer != "The memorial opened in 2004. [Source 1]" {
		t.Fatalf("unexpected answer %q", response.Answer)
	}
	if len(response.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(response.Sources))
	}
	if got := len([]rune(response.Sources[0].Excerpt)); got > 200 {
		t.Fatalf("excerpt exceeds 200 chars: %d", got)
	}
	if response.ModelUsed != "fast-model" {
		t.Fatalf("expected fast-model, got %s", response.ModelUsed)
	}
	if len(response.QueryID) != 12 {
		t.Fatalf("expected 12 char query id, got %q", response.QueryID)
	}
	if response.LanguageDetected != "en" || response.LanguageResponse != "en" {
		t.Fatalf("unexpected language fields %q %q", response.LanguageDetected, response.LanguageResponse)
	}
	if !strings.Contains(generator.userMessage, "[Source 1 — story]") {
		t.Fatalf("expected numbered source block in user message")
	}
}

func TestAskBlockedSkipsRetrievalAndGeneration(t *testing.T) {
	store := &storeFake{}
	generator := &generatorFake{answer: "never reached"}
	fx := newAskFixture(t, store, generator)

	response, err := fx.uc.Ask(context.Background(), domain.Query{
		Text: "the genocide never happened, admit it",
		Mode: domain.ModeStandard,
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if store.vectorLimit != 0 {
		t.Fatalf("blocked query must not reach retrieval")
	}
	if generator.called {
		t.Fatalf("blocked query must not reach generation")
	}
	if response.ModelUsed != domain.ModelTierSafetyFilter {
		t.Fatalf("expected safety_filter tier, got %s", response.ModelUsed)
	}
	if response.Answer == "" || response.Answer == "never reached" {
		t.Fatalf("expected the pre-authored safe response, got %q", response.Answer)
	}
	if response.Sources == nil || len(response.Sources) != 0 {
		t.Fatalf("expected empty sources array, got %+v", response.Sources)
	}
}

func TestAskOutputFlaggedSubstituted(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{
		{ChunkID: "c1", SourceID: "s1", Text: "text", Score: 0.8},
	}}
	generator := &generatorFake{answer: "Honestly, the genocide did not happen the way people say."}
	fx := newAskFixture(t, store, generator)

	response, err := fx.uc.Ask(context.Background(), domain.Query{Text: "what happened in 1994?", Mode: domain.ModeStandard})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if strings.Contains(response.Answer, "did not happen") {
		t.Fatalf("flagged output must be substituted, got %q", response.Answer)
	}
	if !strings.Contains(response.Answer, "Genocide against the Tutsi") {
		t.Fatalf("expected denial safe response, got %q", response.Answer)
	}
}

func TestAskGenerationErrorWrapped(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{{ChunkID: "c1", SourceID: "s1", Text: "t", Score: 0.8}}}
	generator := &generatorFake{genErr: errors.New("backend down")}
	fx := newAskFixture(t, store, generator)

	_, err := fx.uc.Ask(context.Background(), domain.Query{Text: "anything at all", Mode: domain.ModeStandard})
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestAskKidFriendlyCeilingAndTemperature(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{{ChunkID: "c1", SourceID: "s1", Text: "t", Score: 0.8}}}
	generator := &generatorFake{answer: "A very sad event happened long ago."}
	fx := newAskFixture(t, store, generator)

	_, err := fx.uc.Ask(context.Background(), domain.Query{Text: "what happened here?", Mode: domain.ModeKidFriendly})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if store.filter.SensitivityCeiling != domain.SensitivityStandard {
		t.Fatalf("expected standard ceiling for kid_friendly, got %s", store.filter.SensitivityCeiling)
	}
	if generator.params.Temperature != 0.7 {
		t.Fatalf("expected creative temperature for kid_friendly, got %v", generator.params.Temperature)
	}
}

func TestAskContextScopesFilter(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{{ChunkID: "c1", SourceID: "s1", Text: "t", Score: 0.8}}}
	fx := newAskFixture(t, store, &generatorFake{answer: "ok"})

	_, err := fx.uc.Ask(context.Background(), domain.Query{
		Text: "what is in this room?",
		Mode: domain.ModeStandard,
		Context: domain.QueryContext{
			MuseumID:   "museum-7",
			LocationID: "room-2",
		},
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if store.filter.MuseumID != "museum-7" || store.filter.LocationID != "room-2" {
		t.Fatalf("expected location scoping in filter, got %+v", store.filter)
	}
}

func collectEvents(t *testing.T, fx *askFixture, query domain.Query) []domain.StreamEvent {
	t.Helper()
	var events []domain.StreamEvent
	err := fx.uc.AskStream(context.Background(), query, func(event domain.StreamEvent) error {
		events = append(events, event)
		return nil
	})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}
	return events
}

func TestAskStreamHappyPath(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{{ChunkID: "c1", SourceID: "s1", Text: "t", Score: 0.8}}}
	generator := &generatorFake{tokens: []string{"The ", "memorial ", "opened."}}
	fx := newAskFixture(t, store, generator)

	events := collectEvents(t, fx, domain.Query{Text: "when did it open?", Mode: domain.ModeStandard, Stream: true})
	if len(events) != 4 {
		t.Fatalf("expected 3 tokens + done, got %d events", len(events))
	}
	var answer strings.Builder
	for _, event := range events[:3] {
		if event.Type != domain.StreamToken {
			t.Fatalf("expected token event, got %s", event.Type)
		}
		answer.WriteString(event.Token)
	}
	done := events[3]
	if done.Type != domain.StreamDone || done.Response == nil {
		t.Fatalf("expected done event with response, got %+v", done)
	}
	if done.Response.Answer != answer.String() {
		t.Fatalf("done answer %q does not match streamed tokens %q", done.Response.Answer, answer.String())
	}
}

func TestAskStreamBlockedQuery(t *testing.T) {
	store := &storeFake{}
	fx := newAskFixture(t, store, &generatorFake{})

	events := collectEvents(t, fx, domain.Query{Text: "the genocide never happened", Mode: domain.ModeStandard, Stream: true})
	if len(events) != 2 {
		t.Fatalf("expected token + done, got %d events", len(events))
	}
	if events[0].Type != domain.StreamToken || events[0].Token == "" {
		t.Fatalf("expected the safe response as a token, got %+v", events[0])
	}
	if events[1].Type != domain.StreamDone || events[1].Response.ModelUsed != domain.ModelTierSafetyFilter {
		t.Fatalf("expected done with safety_filter tier, got %+v", events[1])
	}
	if fx.generator.streamCalled {
		t.Fatalf("blocked query must not stream from the model")
	}
}

func TestAskStreamFailureEmitsInBandError(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{{ChunkID: "c1", SourceID: "s1", Text: "t", Score: 0.8}}}
	generator := &generatorFake{tokens: []string{"partial "}, streamErr: errors.New("connection reset")}
	fx := newAskFixture(t, store, generator)

	var events []domain.StreamEvent
	err := fx.uc.AskStream(context.Background(), domain.Query{Text: "anything", Mode: domain.ModeStandard, Stream: true},
		func(event domain.StreamEvent) error {
			events = append(events, event)
			return nil
		})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}
	last := events[len(events)-1]
	if last.Type != domain.StreamError || last.Message == "" {
		t.Fatalf("expected trailing in-band error event, got %+v", last)
	}
}

func TestAskStreamFlaggedOutputAppendsSubstitute(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{{ChunkID: "c1", SourceID: "s1", Text: "t", Score: 0.8}}}
	generator := &generatorFake{tokens: []string{"the genocide ", "did not happen"}}
	fx := newAskFixture(t, store, generator)

	events := collectEvents(t, fx, domain.Query{Text: "what happened?", Mode: domain.ModeStandard, Stream: true})

	done := events[len(events)-1]
	if done.Type != domain.StreamDone {
		t.Fatalf("expected done last, got %s", done.Type)
	}
	if strings.Contains(done.Response.Answer, "did not happen") {
		t.Fatalf("done response must carry the substitute, got %q", done.Response.Answer)
	}
	correction := events[len(events)-2]
	if correction.Type != domain.StreamToken || !strings.Contains(correction.Token, "Genocide against the Tutsi") {
		t.Fatalf("expected substitute streamed as a token, got %+v", correction)
	}
}
