// Package bootstrap wires configuration into the running application
// graph shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/muraho-rwanda/ai-guide/internal/config"
	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
	"github.com/muraho-rwanda/ai-guide/internal/core/usecase"
	"github.com/muraho-rwanda/ai-guide/internal/infrastructure/audit"
	"github.com/muraho-rwanda/ai-guide/internal/infrastructure/chunking"
	"github.com/muraho-rwanda/ai-guide/internal/infrastructure/embedding/ollama"
	linguadetect "github.com/muraho-rwanda/ai-guide/internal/infrastructure/language/lingua"
	"github.com/muraho-rwanda/ai-guide/internal/infrastructure/llm/openaicompat"
	natsqueue "github.com/muraho-rwanda/ai-guide/internal/infrastructure/queue/nats"
	"github.com/muraho-rwanda/ai-guide/internal/infrastructure/resilience"
	"github.com/muraho-rwanda/ai-guide/internal/infrastructure/store/pgvector"
	"github.com/muraho-rwanda/ai-guide/internal/observability/logging"
	"github.com/muraho-rwanda/ai-guide/internal/observability/metrics"
	"github.com/muraho-rwanda/ai-guide/internal/safetyrules"
)

type App struct {
	Config config.Config

	Queue   *natsqueue.Queue
	Store   *pgvector.Store
	AskUC   *usecase.AskUseCase
	IndexUC *usecase.IndexContentUseCase

	safety    *usecase.SafetyGate
	retrieval *usecase.RetrievalEngine

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	rules, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("safety_rules_loaded", "version", rules.Version())

	var auditLog ports.AuditLog
	if cfg.AuditEnabled {
		writer, err := audit.NewJSONLWriter(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("init audit log: %w", err)
		}
		auditLog = writer
	}

	db, err := pgvector.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := pgvector.New(db, cfg.VectorTable, cfg.EmbedDimension)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSIndexSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient := openaicompat.New(cfg.LLMBaseURL, openaicompat.WithExecutor(executor))
	translator := openaicompat.NewTranslator(llmClient, cfg.LLMModelFast)
	embedder := ollama.NewEmbedder(cfg.EmbedBaseURL, cfg.EmbedModel)
	detector := linguadetect.NewDetector()
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	language := usecase.NewLanguageNormalizer(detector, translator)
	safety := usecase.NewSafetyGate(rules, auditLog, cfg.SafetyMaxQueryLength)
	retrieval := usecase.NewRetrievalEngine(embedder, store, usecase.RetrievalConfig{
		SearchLimit:        cfg.RetrievalSearchLimit,
		KeywordLimit:       cfg.RetrievalKeywordLimit,
		MinSimilarity:      cfg.RetrievalMinSimilarity,
		FallbackConfidence: cfg.RetrievalFallbackConfidence,
	})
	modelRouter := usecase.NewModelRouter(cfg.LLMModelFast, cfg.LLMModelHeavy, rules.HeavyModelSignals(), cfg.RouterHeavyWordCount)

	askUC := usecase.NewAskUseCase(language, safety, retrieval, modelRouter, llmClient, usecase.AskConfig{
		RerankLimit:         cfg.RetrievalRerankLimit,
		Temperature:         cfg.LLMTemperature,
		TemperatureCreative: cfg.LLMTemperatureCreative,
		TopP:                cfg.LLMTopP,
		MaxTokens:           cfg.LLMMaxTokens,
	})
	indexUC := usecase.NewIndexContentUseCase(chunker, embedder, store)

	return &App{
		Config: cfg,

		Queue:   queue,
		Store:   store,
		AskUC:   askUC,
		IndexUC: indexUC,

		safety:    safety,
		retrieval: retrieval,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// AttachMetrics hooks the pipeline counters that only fire from inside
// the use cases.
func (a *App) AttachMetrics(m *metrics.HTTPServerMetrics, service string) {
	a.retrieval.SetFallbackHook(func() {
		m.RecordKeywordFallback(service)
	})
	a.safety.SetDecisionHook(func(kind domain.SafetyKind, reason string) {
		if kind == domain.SafetyOutputFlagged {
			m.RecordOutputSubstitution(service, reason)
			return
		}
		m.RecordBlockedQuery(service, reason)
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func loadRules(cfg config.Config) (*safetyrules.RuleSet, error) {
	if cfg.SafetyRulesPath != "" {
		rules, err := safetyrules.LoadFile(cfg.SafetyRulesPath)
		if err != nil {
			return nil, fmt.Errorf("load safety rules from %s: %w", cfg.SafetyRulesPath, err)
		}
		return rules, nil
	}
	rules, err := safetyrules.Load()
	if err != nil {
		return nil, fmt.Errorf("load embedded safety rules: %w", err)
	}
	return rules, nil
}
