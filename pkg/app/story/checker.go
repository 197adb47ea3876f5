package story

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nightfable/storygate/pkg/guardrail"
	"github.com/nightfable/storygate/pkg/guardrail/contentguard"
	"github.com/nightfable/storygate/pkg/guardrail/sanitizer"
)

// Generation is one story-generation round to review: the prompt that was
// (or would be) sent to the model and the text that came back.
type Generation struct {
	Prompt  string
	Kind    sanitizer.PromptKind
	Story   string
	Profile *guardrail.UserProfile
}

// Report is the outcome of reviewing one generation. PromptViolations
// come from the pre-generation gate, StoryViolations from the
// post-generation scan; either list non-empty means the generation should
// not be delivered as-is.
type Report struct {
	ID               uuid.UUID             `json:"id"`
	Passed           bool                  `json:"passed"`
	PromptViolations []guardrail.Violation `json:"prompt_violations,omitempty"`
	StoryViolations  []guardrail.Violation `json:"story_violations,omitempty"`
}

// Checker composes the two guardrail gates into the review flow the story
// pipeline runs around every generation.
type Checker struct {
	sanitizer *sanitizer.PromptSanitizer
	guard     *contentguard.ContentGuard
	logger    *logrus.Logger
}

func NewChecker(
	promptSanitizer *sanitizer.PromptSanitizer,
	guard *contentguard.ContentGuard,
	logger *logrus.Logger,
) *Checker {
	return &Checker{
		sanitizer: promptSanitizer,
		guard:     guard,
		logger:    logger,
	}
}

// Review gates the prompt and scans the story text, folding both results
// into one report. Guardrail findings are data here, not errors; only a
// config failure comes back as an error.
func (c *Checker) Review(ctx context.Context, gen Generation) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{ID: uuid.New()}

	if _, err := c.sanitizer.Enforce(gen.Prompt, gen.Kind); err != nil {
		var guardrailErr *guardrail.GuardrailError
		if !errors.As(err, &guardrailErr) {
			return nil, err
		}
		report.PromptViolations = guardrailErr.Violations
	}

	storyViolations, err := c.guard.CheckStory(gen.Story, gen.Profile)
	if err != nil {
		return nil, err
	}
	if len(storyViolations) > 0 {
		report.StoryViolations = storyViolations
	}

	report.Passed = len(report.PromptViolations) == 0 && len(report.StoryViolations) == 0
	c.logger.WithFields(logrus.Fields{
		"report_id": report.ID.String(),
		"passed":    report.Passed,
	}).Debug("generation reviewed")

	return report, nil
}

// ReviewBatch reviews generations concurrently and returns reports in
// input order. The first config failure cancels the remaining reviews.
func (c *Checker) ReviewBatch(ctx context.Context, gens []Generation) ([]*Report, error) {
	reports := make([]*Report, len(gens))

	g, ctx := errgroup.WithContext(ctx)
	for i, gen := range gens {
		i, gen := i, gen
		g.Go(func() error {
			report, err := c.Review(ctx, gen)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return reports, nil
}
