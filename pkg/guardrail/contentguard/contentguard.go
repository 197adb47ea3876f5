package contentguard

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/nightfable/storygate/pkg/guardrail"
	"github.com/nightfable/storygate/pkg/guardrail/ruleset"
	"github.com/nightfable/storygate/pkg/infra/prometheus"
)

// Tokens shorter than this are never counted as shouting, so acronyms and
// initials do not trip the all-caps scan.
const minShoutingChunkLen = 3

// ContentGuard inspects generated story text for safety and tone. It is
// advisory: findings come back as violations and the caller decides what
// to do with them. The only error it can return is a config failure.
type ContentGuard struct {
	rules  *ruleset.Loader
	logger *logrus.Logger
}

func NewContentGuard(rules *ruleset.Loader, logger *logrus.Logger) *ContentGuard {
	return &ContentGuard{
		rules:  rules,
		logger: logger,
	}
}

// CheckStory scans text against the rules resolved for the given profile
// and returns every violation found. An empty list means the story is
// clean. A nil profile checks against defaults only.
func (g *ContentGuard) CheckStory(text string, profile *guardrail.UserProfile) ([]guardrail.Violation, error) {
	cfg, err := g.rules.Resolve(profile.OverrideKey())
	if err != nil {
		return nil, err
	}

	prometheus.ChecksTotal.WithLabelValues("guard").Inc()

	violations := []guardrail.Violation{}

	for _, term := range cfg.BannedTerms.Match(text) {
		violations = append(violations, guardrail.Violation{
			Category: guardrail.CategorySafety,
			Detail:   fmt.Sprintf("banned term %q", term),
		})
	}

	if count := strings.Count(text, "!"); count > cfg.Tone.MaxExclamationPoints {
		violations = append(violations, guardrail.Violation{
			Category: guardrail.CategoryTone,
			Detail: fmt.Sprintf("%d exclamation points exceed max_exclamation_points %d",
				count, cfg.Tone.MaxExclamationPoints),
		})
	}

	if count := countShoutingChunks(text); count > cfg.Tone.MaxAllCapsChunks {
		violations = append(violations, guardrail.Violation{
			Category: guardrail.CategoryTone,
			Detail: fmt.Sprintf("%d all-caps chunks exceed max_all_caps_chunks %d",
				count, cfg.Tone.MaxAllCapsChunks),
		})
	}

	if len(violations) > 0 {
		for _, v := range violations {
			prometheus.ViolationsTotal.WithLabelValues(string(v.Category)).Inc()
		}
		g.logger.WithFields(logrus.Fields{
			"profile":    profile.OverrideKey(),
			"violations": len(violations),
		}).Warn("story text flagged")
	}

	return violations, nil
}

// countShoutingChunks counts whitespace-delimited tokens that read as
// shouting: all letters upper-case, at least minShoutingChunkLen runes
// once surrounding punctuation is stripped.
func countShoutingChunks(text string) int {
	count := 0
	for _, token := range strings.Fields(text) {
		core := strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(core)) < minShoutingChunkLen {
			continue
		}
		hasLetter := false
		hasLower := false
		for _, r := range core {
			if unicode.IsLetter(r) {
				hasLetter = true
				if unicode.IsLower(r) {
					hasLower = true
					break
				}
			}
		}
		if hasLetter && !hasLower {
			count++
		}
	}
	return count
}
