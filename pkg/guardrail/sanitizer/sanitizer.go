package sanitizer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nightfable/storygate/pkg/guardrail"
	"github.com/nightfable/storygate/pkg/guardrail/ruleset"
	"github.com/nightfable/storygate/pkg/infra/prometheus"
)

// PromptKind selects which checks apply to a prompt.
type PromptKind string

const (
	// Narration prompts feed the story-text model.
	Narration PromptKind = "narration"
	// Visual prompts feed the image model; their tokens are format
	// sensitive, so the character gate applies to them.
	Visual PromptKind = "visual"
)

// PromptSanitizer gates raw prompts before they reach any generation
// model. It only accepts or rejects; it never rewrites a prompt.
type PromptSanitizer struct {
	rules  *ruleset.Loader
	logger *logrus.Logger
}

func NewPromptSanitizer(rules *ruleset.Loader, logger *logrus.Logger) *PromptSanitizer {
	return &PromptSanitizer{
		rules:  rules,
		logger: logger,
	}
}

// Enforce returns the prompt unchanged when it passes every check. On
// failure it returns a *guardrail.GuardrailError carrying all violations
// found in the pass, so the caller can report everything at once.
func (s *PromptSanitizer) Enforce(prompt string, kind PromptKind) (string, error) {
	cfg, err := s.rules.Resolve("")
	if err != nil {
		return "", err
	}

	prometheus.ChecksTotal.WithLabelValues("sanitizer").Inc()

	var violations []guardrail.Violation

	for _, term := range cfg.BannedTerms.Match(prompt) {
		violations = append(violations, guardrail.Violation{
			Category: guardrail.CategorySafety,
			Detail:   fmt.Sprintf("banned term %q", term),
		})
	}

	if kind == Visual {
		violations = append(violations, checkCharacters(prompt, cfg.AllowedRunes)...)
	}

	if len(violations) > 0 {
		for _, v := range violations {
			prometheus.ViolationsTotal.WithLabelValues(string(v.Category)).Inc()
		}
		s.logger.WithFields(logrus.Fields{
			"prompt_kind": string(kind),
			"violations":  len(violations),
		}).Warn("prompt rejected")
		return "", &guardrail.GuardrailError{Violations: violations}
	}

	return prompt, nil
}

// checkCharacters reports one violation per distinct rune that is neither
// basic ASCII nor on the allow-list, in first-seen order. Invisible
// formatting runes used by emoji sequences are never flagged on their own.
func checkCharacters(prompt string, allowed map[rune]struct{}) []guardrail.Violation {
	var violations []guardrail.Violation
	flagged := make(map[rune]struct{})

	for _, r := range prompt {
		if isBasicRune(r) || isEmojiJoiner(r) {
			continue
		}
		if _, ok := allowed[r]; ok {
			continue
		}
		if _, ok := flagged[r]; ok {
			continue
		}
		flagged[r] = struct{}{}
		violations = append(violations, guardrail.Violation{
			Category: guardrail.CategoryCharacter,
			Detail:   fmt.Sprintf("disallowed character %q (%U)", r, r),
		})
	}
	return violations
}

// isBasicRune covers printable ASCII plus common whitespace, which passes
// without consulting the allow-list.
func isBasicRune(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return true
	}
	return r >= 0x20 && r <= 0x7e
}

// isEmojiJoiner reports variation selectors and the zero-width joiner,
// which carry no content of their own.
func isEmojiJoiner(r rune) bool {
	return (r >= 0xfe00 && r <= 0xfe0f) || r == 0x200d
}
