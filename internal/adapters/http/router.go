// Package httpadapter exposes the query pipeline and the content index
// entry points over HTTP.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
	"github.com/muraho-rwanda/ai-guide/internal/core/usecase"
	"github.com/muraho-rwanda/ai-guide/internal/observability/metrics"
)

// RateLimits are daily query quotas per access tier.
type RateLimits struct {
	FreePerDay   int
	PaidPerDay   int
	AgencyPerDay int
}

type Router struct {
	askUC   *usecase.AskUseCase
	queue   ports.ContentQueue
	metrics *metrics.HTTPServerMetrics
	limits  *tierRateLimiter
	service string
}

func NewRouter(askUC *usecase.AskUseCase, queue ports.ContentQueue, m *metrics.HTTPServerMetrics, limits RateLimits, service string) *Router {
	return &Router{
		askUC:   askUC,
		queue:   queue,
		metrics: m,
		limits:  newTierRateLimiter(limits.FreePerDay, limits.PaidPerDay, limits.AgencyPerDay),
		service: service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/index", rt.indexContent)
	mux.HandleFunc("/v1/sources/", rt.unpublishSource)
	mux.Handle("/metrics", rt.metrics.Handler())

	return rt.metrics.Middleware(rt.service, requestIDMiddleware(accessLogMiddleware(mux)))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question   string              `json:"question"`
	Language   string              `json:"language"`
	Mode       string              `json:"mode"`
	Context    domain.QueryContext `json:"context"`
	AccessTier string              `json:"access_tier"`
	Stream     bool                `json:"stream"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	query := domain.Query{
		Text:       req.Question,
		Language:   normalizeLanguage(req.Language),
		Mode:       normalizeMode(req.Mode),
		Context:    req.Context,
		AccessTier: normalizeTier(req.AccessTier),
		Stream:     req.Stream,
	}

	if !rt.limits.Allow(query.AccessTier) {
		rt.metrics.RecordRateLimited(rt.service, string(query.AccessTier))
		w.Header().Set("Retry-After", "3600")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	if query.Stream {
		rt.askStream(w, r, query)
		return
	}

	start := time.Now()
	response, err := rt.askUC.Ask(r.Context(), query)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "query processing failed"})
		return
	}

	rt.recordPipeline(query, response, time.Since(start))
	writeJSON(w, http.StatusOK, response)
}

func (rt *Router) askStream(w http.ResponseWriter, r *http.Request, query domain.Query) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	start := time.Now()
	err = rt.askUC.AskStream(r.Context(), query, func(event domain.StreamEvent) error {
		if event.Type == domain.StreamDone && event.Response != nil {
			rt.recordPipeline(query, event.Response, time.Since(start))
		}
		return sse.WriteEvent(event)
	})
	if err != nil {
		// Headers are committed; the best we can do is an in-band error.
		_ = sse.WriteEvent(domain.StreamEvent{
			Type:    domain.StreamError,
			Message: "query processing failed",
		})
	}
	_ = sse.WriteDone()
}

func (rt *Router) recordPipeline(query domain.Query, response *domain.PipelineResponse, elapsed time.Duration) {
	rt.metrics.RecordPipeline(rt.service, string(query.Mode), len(response.Sources), elapsed)
	rt.metrics.RecordModelTier(rt.service, response.ModelUsed)
}

// indexContent accepts a publish event from the CMS and hands it to the
// index worker through the queue. The API never embeds inline.
func (rt *Router) indexContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var event usecase.IndexEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(event.SourceID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_id is required"})
		return
	}
	if event.Action == "" {
		event.Action = "index"
	}
	if event.Action == "index" && strings.TrimSpace(event.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode index request"})
		return
	}
	if err := rt.queue.PublishIndexRequest(r.Context(), payload); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "queue unavailable"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"source_id": event.SourceID,
	})
}

func (rt *Router) unpublishSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sourceID := strings.TrimPrefix(r.URL.Path, "/v1/sources/")
	if sourceID == "" || strings.Contains(sourceID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source id is required"})
		return
	}

	payload, err := json.Marshal(usecase.IndexEvent{
		Action:   "unpublish",
		SourceID: sourceID,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode index request"})
		return
	}
	if err := rt.queue.PublishIndexRequest(r.Context(), payload); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "queue unavailable"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"source_id": sourceID,
	})
}

func normalizeMode(mode string) domain.Mode {
	switch domain.Mode(mode) {
	case domain.ModePersonalVoices:
		return domain.ModePersonalVoices
	case domain.ModeKidFriendly:
		return domain.ModeKidFriendly
	default:
		return domain.ModeStandard
	}
}

func normalizeLanguage(language string) string {
	switch language {
	case "en", "fr", "rw":
		return language
	default:
		return "auto"
	}
}

func normalizeTier(tier string) domain.AccessTier {
	switch domain.AccessTier(tier) {
	case domain.TierDayPass:
		return domain.TierDayPass
	case domain.TierSubscriber:
		return domain.TierSubscriber
	case domain.TierAgency:
		return domain.TierAgency
	default:
		return domain.TierFree
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
