package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
	"github.com/muraho-rwanda/ai-guide/internal/core/prompt"
)

const sourceExcerptChars = 200

// AskConfig carries generation tuning for the pipeline.
type AskConfig struct {
	RerankLimit         int
	Temperature         float64
	TemperatureCreative float64
	TopP                float64
	MaxTokens           int
}

func (c AskConfig) normalize() AskConfig {
	out := c
	if out.RerankLimit <= 0 {
		out.RerankLimit = 8
	}
	if out.Temperature <= 0 {
		out.Temperature = 0.3
	}
	if out.TemperatureCreative <= 0 {
		out.TemperatureCreative = 0.7
	}
	if out.TopP <= 0 {
		out.TopP = 0.9
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = 1024
	}
	return out
}

// AskUseCase orchestrates one query through normalization, the safety
// gate, retrieval, source selection, prompt assembly and generation.
// Stages run strictly in that order; each external call completes before
// the next stage starts.
type AskUseCase struct {
	language  *LanguageNormalizer
	safety    *SafetyGate
	retrieval *RetrievalEngine
	router    *ModelRouter
	generator ports.Generator
	cfg       AskConfig
}

func NewAskUseCase(
	language *LanguageNormalizer,
	safety *SafetyGate,
	retrieval *RetrievalEngine,
	router *ModelRouter,
	generator ports.Generator,
	cfg AskConfig,
) *AskUseCase {
	return &AskUseCase{
		language:  language,
		safety:    safety,
		retrieval: retrieval,
		router:    router,
		generator: generator,
		cfg:       cfg.normalize(),
	}
}

// preparedQuery is the shared outcome of the stages preceding generation.
type preparedQuery struct {
	queryID      string
	start        time.Time
	detectedLang string
	blocked      *domain.SafetyDecision
	sources      []domain.RetrievedChunk
	systemPrompt string
	userMessage  string
	model        string
}

// Ask runs the full pipeline and returns the complete response. Blocked
// queries short-circuit before retrieval with the pre-authored substitute
// and the safety_filter tier sentinel; elapsed time is still measured.
func (uc *AskUseCase) Ask(ctx context.Context, query domain.Query) (*domain.PipelineResponse, error) {
	prep, err := uc.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	if prep.blocked != nil {
		return uc.blockedResponse(query, prep), nil
	}

	answer, err := uc.generator.Generate(ctx, prep.systemPrompt, prep.userMessage, prep.model, uc.params(query.Mode))
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}

	if flagged := uc.safety.EvaluateOutput(ctx, answer); flagged.Blocked {
		answer = flagged.SafeResponse
	}

	return uc.response(query, prep, answer, prep.model), nil
}

// AskStream runs the same pipeline but delivers the answer as ordered
// fragments. Once generation has started the transport is committed, so
// failures surface as an in-band error event and a flagged output is
// corrected by streaming the substitute text before the done marker.
func (uc *AskUseCase) AskStream(ctx context.Context, query domain.Query, emit func(domain.StreamEvent) error) error {
	prep, err := uc.prepare(ctx, query)
	if err != nil {
		return err
	}
	if prep.blocked != nil {
		if err := emit(domain.StreamEvent{Type: domain.StreamToken, Token: prep.blocked.SafeResponse}); err != nil {
			return err
		}
		return emit(domain.StreamEvent{Type: domain.StreamDone, Response: uc.blockedResponse(query, prep)})
	}

	var answer strings.Builder
	streamErr := uc.generator.GenerateStream(ctx, prep.systemPrompt, prep.userMessage, prep.model, uc.params(query.Mode),
		func(token string) error {
			answer.WriteString(token)
			return emit(domain.StreamEvent{Type: domain.StreamToken, Token: token})
		})
	if streamErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return emit(domain.StreamEvent{
			Type:    domain.StreamError,
			Message: "processing failed, please try again",
		})
	}

	finalAnswer := answer.String()
	if flagged := uc.safety.EvaluateOutput(ctx, finalAnswer); flagged.Blocked {
		finalAnswer = flagged.SafeResponse
		if err := emit(domain.StreamEvent{Type: domain.StreamToken, Token: "\n\n" + finalAnswer}); err != nil {
			return err
		}
	}

	return emit(domain.StreamEvent{Type: domain.StreamDone, Response: uc.response(query, prep, finalAnswer, prep.model)})
}

// prepare runs normalization, the pre-query gate, retrieval, source
// selection, prompt assembly and routing. Retrieval failures propagate;
// a blocked decision is carried in the result, not returned as an error.
func (uc *AskUseCase) prepare(ctx context.Context, query domain.Query) (*preparedQuery, error) {
	prep := &preparedQuery{
		queryID: shortQueryID(),
		start:   time.Now(),
	}

	// Normalization precedes the gate, so a query blocked below may
	// still have cost one fast-tier translation round trip. The gate
	// verdict alone decides whether an answer is generated; blocked
	// queries never reach retrieval or the generation call.
	detected, searchText := uc.language.Normalize(ctx, query.Text, query.Language)
	prep.detectedLang = detected

	if decision := uc.safety.EvaluateQuery(ctx, query.Text); decision.Blocked {
		prep.blocked = &decision
		return prep, nil
	}

	filter := buildFilter(query.Context, query.Mode)
	results, err := uc.retrieval.Search(ctx, searchText, filter)
	if err != nil {
		return nil, err
	}

	prep.sources = SelectSources(results, uc.cfg.RerankLimit)
	prep.systemPrompt = prompt.Build(query.Mode, query.Context, prep.sources, detected)
	prep.userMessage = prompt.BuildUserMessage(query.Text, prep.sources, detected)
	prep.model = uc.router.Route(query.Text, query.Mode)
	return prep, nil
}

func (uc *AskUseCase) params(mode domain.Mode) ports.GenerationParams {
	temperature := uc.cfg.Temperature
	if mode == domain.ModeKidFriendly {
		temperature = uc.cfg.TemperatureCreative
	}
	return ports.GenerationParams{
		Temperature: temperature,
		TopP:        uc.cfg.TopP,
		MaxTokens:   uc.cfg.MaxTokens,
	}
}

func (uc *AskUseCase) response(query domain.Query, prep *preparedQuery, answer, model string) *domain.PipelineResponse {
	sources := make([]domain.SourceRef, 0, len(prep.sources))
	for _, source := range prep.sources {
		sources = append(sources, domain.SourceRef{
			SourceID:    source.SourceID,
			SourceType:  source.SourceType,
			Title:       source.SourceID,
			Excerpt:     truncateExcerpt(source.Text, sourceExcerptChars),
			Score:       source.Score,
			Sensitivity: source.Sensitivity,
		})
	}

	return &domain.PipelineResponse{
		Answer:           answer,
		Sources:          sources,
		LanguageDetected: prep.detectedLang,
		LanguageResponse: prep.detectedLang,
		Mode:             query.Mode,
		ModelUsed:        model,
		QueryID:          prep.queryID,
		ProcessingMS:     time.Since(prep.start).Milliseconds(),
	}
}

func (uc *AskUseCase) blockedResponse(query domain.Query, prep *preparedQuery) *domain.PipelineResponse {
	return &domain.PipelineResponse{
		Answer:           prep.blocked.SafeResponse,
		Sources:          []domain.SourceRef{},
		LanguageDetected: prep.detectedLang,
		LanguageResponse: prep.detectedLang,
		Mode:             query.Mode,
		ModelUsed:        domain.ModelTierSafetyFilter,
		QueryID:          prep.queryID,
		ProcessingMS:     time.Since(prep.start).Milliseconds(),
	}
}

// buildFilter derives the retrieval restriction from the query context.
// The sensitivity ceiling always comes from the mode; location scoping is
// applied only for dimensions present in the context.
func buildFilter(ctx domain.QueryContext, mode domain.Mode) domain.SearchFilter {
	return domain.SearchFilter{
		SensitivityCeiling: SensitivityCeiling(mode),
		LocationID:         ctx.LocationID,
		MuseumID:           ctx.MuseumID,
		RouteID:            ctx.RouteID,
	}
}

func shortQueryID() string {
	id := uuid.NewString()
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
