package story_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightfable/storygate/pkg/app/story"
	"github.com/nightfable/storygate/pkg/guardrail"
	"github.com/nightfable/storygate/pkg/guardrail/contentguard"
	"github.com/nightfable/storygate/pkg/guardrail/ruleset"
	"github.com/nightfable/storygate/pkg/guardrail/sanitizer"
)

const rules = `
defaults:
  banned_terms:
    - goblin
  tone_thresholds:
    max_exclamation_points: 10
    max_all_caps_chunks: 3
profiles:
  anxious:
    tone_thresholds:
      max_exclamation_points: 2
`

func newChecker(t *testing.T) *story.Checker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardrails.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rules), 0600))
	loader, err := ruleset.NewLoader(path, logrus.New())
	require.NoError(t, err)

	logger := logrus.New()
	return story.NewChecker(
		sanitizer.NewPromptSanitizer(loader, logger),
		contentguard.NewContentGuard(loader, logger),
		logger,
	)
}

func TestReview_CleanGenerationPasses(t *testing.T) {
	checker := newChecker(t)

	report, err := checker.Review(context.Background(), story.Generation{
		Prompt: "A quiet forest clearing under the stars.",
		Kind:   sanitizer.Visual,
		Story:  "The fox curled up and fell asleep.",
	})

	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.NotEqual(t, uuid.Nil, report.ID)
	assert.Empty(t, report.PromptViolations)
	assert.Empty(t, report.StoryViolations)
}

func TestReview_PromptViolationsAreDataNotErrors(t *testing.T) {
	checker := newChecker(t)

	report, err := checker.Review(context.Background(), story.Generation{
		Prompt: "A goblin king on his throne.",
		Kind:   sanitizer.Narration,
		Story:  "The fox curled up and fell asleep.",
	})

	require.NoError(t, err)
	assert.False(t, report.Passed)
	require.Len(t, report.PromptViolations, 1)
	assert.Equal(t, guardrail.CategorySafety, report.PromptViolations[0].Category)
}

func TestReview_StoryViolationsUseProfileThresholds(t *testing.T) {
	checker := newChecker(t)

	report, err := checker.Review(context.Background(), story.Generation{
		Prompt:  "A calm bedtime tale.",
		Kind:    sanitizer.Narration,
		Story:   "Hooray! Hooray! Hooray!",
		Profile: &guardrail.UserProfile{Name: "anxious"},
	})

	require.NoError(t, err)
	assert.False(t, report.Passed)
	require.Len(t, report.StoryViolations, 1)
	assert.Equal(t, guardrail.CategoryTone, report.StoryViolations[0].Category)
}

func TestReviewBatch_KeepsInputOrder(t *testing.T) {
	checker := newChecker(t)

	reports, err := checker.ReviewBatch(context.Background(), []story.Generation{
		{Prompt: "clean prompt", Kind: sanitizer.Narration, Story: "A calm tale."},
		{Prompt: "a goblin lurks", Kind: sanitizer.Narration, Story: "A calm tale."},
		{Prompt: "clean prompt", Kind: sanitizer.Narration, Story: "A calm tale."},
	})

	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.True(t, reports[0].Passed)
	assert.False(t, reports[1].Passed)
	assert.True(t, reports[2].Passed)
}

func TestReview_CancelledContext(t *testing.T) {
	checker := newChecker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := checker.Review(ctx, story.Generation{
		Prompt: "clean prompt",
		Kind:   sanitizer.Narration,
		Story:  "A calm tale.",
	})

	assert.ErrorIs(t, err, context.Canceled)
}
