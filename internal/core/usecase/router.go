package usecase

import (
	"strings"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
)

// ModelRouter maps (query, mode) to a generation model. The rules are an
// ordered, transparent list rather than a learned classifier so that
// safety-adjacent queries are provably routed to the stronger tier.
type ModelRouter struct {
	fastModel      string
	heavyModel     string
	heavySignals   []string
	heavyWordCount int
}

func NewModelRouter(fastModel, heavyModel string, heavySignals []string, heavyWordCount int) *ModelRouter {
	if heavyWordCount <= 0 {
		heavyWordCount = 40
	}
	lowered := make([]string, 0, len(heavySignals))
	for _, signal := range heavySignals {
		lowered = append(lowered, strings.ToLower(signal))
	}
	return &ModelRouter{
		fastModel:      fastModel,
		heavyModel:     heavyModel,
		heavySignals:   lowered,
		heavyWordCount: heavyWordCount,
	}
}

// Route is deterministic and order sensitive: personal_voices mode always
// escalates, then signal terms, then query length.
func (r *ModelRouter) Route(query string, mode domain.Mode) string {
	if mode == domain.ModePersonalVoices {
		return r.heavyModel
	}

	lowered := strings.ToLower(query)
	for _, signal := range r.heavySignals {
		if strings.Contains(lowered, signal) {
			return r.heavyModel
		}
	}

	if len(strings.Fields(query)) > r.heavyWordCount {
		return r.heavyModel
	}
	return r.fastModel
}
