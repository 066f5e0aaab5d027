// Package safetyrules loads the content-safety pattern taxonomy. The
// taxonomy lives in versioned YAML so it can be reviewed and revised
// without touching pipeline code.
package safetyrules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embeddedRules []byte

type rulesFile struct {
	Version       string `yaml:"version"`
	QueryPatterns []struct {
		Reason   string   `yaml:"reason"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"query_patterns"`
	OutputSignals []struct {
		Reason    string   `yaml:"reason"`
		RespondAs string   `yaml:"respond_as"`
		Signals   []string `yaml:"signals"`
	} `yaml:"output_signals"`
	SafeResponses     map[string]string `yaml:"safe_responses"`
	HeavyModelSignals []string          `yaml:"heavy_model_signals"`
}

type patternGroup struct {
	reason   string
	patterns []*regexp.Regexp
}

type signalGroup struct {
	reason    string
	respondAs string
	signals   []string
}

// RuleSet is the compiled taxonomy. Groups are evaluated in file order;
// the first matching group wins.
type RuleSet struct {
	version       string
	queryGroups   []patternGroup
	outputGroups  []signalGroup
	safeResponses map[string]string
	heavySignals  []string
}

// Load returns the embedded default rule set.
func Load() (*RuleSet, error) {
	return parse(embeddedRules)
}

// LoadFile loads a reviewed rules file from disk, for deployments that
// pin an external revision.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read safety rules: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*RuleSet, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse safety rules: %w", err)
	}
	if len(file.QueryPatterns) == 0 {
		return nil, fmt.Errorf("safety rules: no query pattern groups")
	}

	rs := &RuleSet{
		version:       file.Version,
		safeResponses: file.SafeResponses,
		heavySignals:  file.HeavyModelSignals,
	}
	for _, group := range file.QueryPatterns {
		compiled := patternGroup{reason: group.Reason}
		for _, raw := range group.Patterns {
			re, err := regexp.Compile("(?i)" + raw)
			if err != nil {
				return nil, fmt.Errorf("compile pattern %q in group %s: %w", raw, group.Reason, err)
			}
			compiled.patterns = append(compiled.patterns, re)
		}
		rs.queryGroups = append(rs.queryGroups, compiled)
	}
	for _, group := range file.OutputSignals {
		lowered := make([]string, 0, len(group.Signals))
		for _, signal := range group.Signals {
			lowered = append(lowered, strings.ToLower(signal))
		}
		rs.outputGroups = append(rs.outputGroups, signalGroup{
			reason:    group.Reason,
			respondAs: group.RespondAs,
			signals:   lowered,
		})
	}
	return rs, nil
}

func (rs *RuleSet) Version() string { return rs.version }

// MatchQuery returns the reason code of the first matching pattern group.
func (rs *RuleSet) MatchQuery(text string) (string, bool) {
	for _, group := range rs.queryGroups {
		for _, re := range group.patterns {
			if re.MatchString(text) {
				return group.reason, true
			}
		}
	}
	return "", false
}

// MatchOutput scans generated text for denial/violence phrase signals.
// The second return value is the safe-response key to substitute.
func (rs *RuleSet) MatchOutput(text string) (reason, respondAs string, ok bool) {
	lowered := strings.ToLower(text)
	for _, group := range rs.outputGroups {
		for _, signal := range group.signals {
			if strings.Contains(lowered, signal) {
				return group.reason, group.respondAs, true
			}
		}
	}
	return "", "", false
}

// SafeResponse returns the pre-authored substitute text for a reason key.
func (rs *RuleSet) SafeResponse(key string) string {
	return rs.safeResponses[key]
}

// HeavyModelSignals is the curated term set the model router checks.
func (rs *RuleSet) HeavyModelSignals() []string {
	return rs.heavySignals
}
