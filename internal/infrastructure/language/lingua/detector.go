// Package lingua detects the query language for the en/fr/rw pipeline.
//
// lingua-go has no Kinyarwanda model, so detection runs in two stages: a
// keyword scan for common Kinyarwanda function words first, then the
// statistical detector restricted to English, French and Swahili. Swahili
// is the closest Bantu language lingua knows; a Swahili verdict on text
// that reached this service almost always means Kinyarwanda.
package lingua

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

var kinyarwandaSignals = []string{
	"muraho", "amakuru", "murakoze", "mwaramutse", "mwiriwe",
	"ndashaka", "mbwira", "sobanura", "ni iki", "ni nde",
	"igihugu", "ubwoko", "abantu", "umuntu", "jenoside",
	"urwibutso", "inzibutso", "kwibuka", "icyunamo",
}

type Detector struct {
	detector lingua.LanguageDetector
}

func NewDetector() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.French, lingua.Swahili).
			Build(),
	}
}

// Detect returns "en", "fr" or "rw". Unknown or ambiguous input maps to
// English, the pipeline's pivot language.
func (d *Detector) Detect(text string) string {
	lowered := strings.ToLower(text)
	for _, signal := range kinyarwandaSignals {
		if strings.Contains(lowered, signal) {
			return "rw"
		}
	}

	detected, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "en"
	}
	switch detected {
	case lingua.French:
		return "fr"
	case lingua.Swahili:
		return "rw"
	default:
		return "en"
	}
}
