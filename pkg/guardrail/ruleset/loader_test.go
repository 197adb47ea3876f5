package ruleset_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightfable/storygate/pkg/guardrail"
	"github.com/nightfable/storygate/pkg/guardrail/ruleset"
)

const baseRules = `
defaults:
  banned_terms:
    - goblin
    - nightmare
  tone_thresholds:
    max_exclamation_points: 10
    max_all_caps_chunks: 3
  allowed_emoji:
    - "🌙"
profiles:
  anxious:
    banned_terms:
      - storm
    tone_thresholds:
      max_exclamation_points: 2
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardrails.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func rewriteRules(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	// push mtime forward so the reload check sees the change regardless of
	// filesystem timestamp granularity
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
}

func TestNewLoader_MissingFile(t *testing.T) {
	_, err := ruleset.NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), logrus.New())

	assert.Error(t, err)
	assert.True(t, guardrail.IsConfigError(err))
}

func TestNewLoader_InvalidSyntax(t *testing.T) {
	path := writeRules(t, "defaults: [not: valid: yaml")

	_, err := ruleset.NewLoader(path, logrus.New())

	assert.Error(t, err)
	assert.True(t, guardrail.IsConfigError(err))
}

func TestResolve_DefaultsOnly(t *testing.T) {
	loader, err := ruleset.NewLoader(writeRules(t, baseRules), logrus.New())
	require.NoError(t, err)

	cfg, err := loader.Resolve("")

	require.NoError(t, err)
	assert.Equal(t, []string{"goblin", "nightmare"}, cfg.BannedTerms.Terms())
	assert.Equal(t, 10, cfg.Tone.MaxExclamationPoints)
	assert.Equal(t, 3, cfg.Tone.MaxAllCapsChunks)
	assert.Contains(t, cfg.AllowedRunes, '🌙')
}

func TestResolve_UnknownProfileFallsBackToDefaults(t *testing.T) {
	loader, err := ruleset.NewLoader(writeRules(t, baseRules), logrus.New())
	require.NoError(t, err)

	cfg, err := loader.Resolve("sleepy")

	require.NoError(t, err)
	assert.Equal(t, []string{"goblin", "nightmare"}, cfg.BannedTerms.Terms())
	assert.Equal(t, 10, cfg.Tone.MaxExclamationPoints)
}

func TestResolve_ProfileOverridesPerField(t *testing.T) {
	loader, err := ruleset.NewLoader(writeRules(t, baseRules), logrus.New())
	require.NoError(t, err)

	cfg, err := loader.Resolve("anxious")

	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Tone.MaxExclamationPoints)
	// max_all_caps_chunks is not overridden by the profile and must keep
	// the default
	assert.Equal(t, 3, cfg.Tone.MaxAllCapsChunks)
}

func TestResolve_ProfileBannedTermsUnionWithDefaults(t *testing.T) {
	loader, err := ruleset.NewLoader(writeRules(t, baseRules), logrus.New())
	require.NoError(t, err)

	cfg, err := loader.Resolve("anxious")

	require.NoError(t, err)
	assert.Equal(t, []string{"goblin", "nightmare", "storm"}, cfg.BannedTerms.Terms())
}

func TestResolve_MissingSectionsAreValid(t *testing.T) {
	loader, err := ruleset.NewLoader(writeRules(t, "defaults:\n  tone_thresholds:\n    max_exclamation_points: 5\n"), logrus.New())
	require.NoError(t, err)

	cfg, err := loader.Resolve("anyone")

	require.NoError(t, err)
	assert.Empty(t, cfg.BannedTerms.Terms())
	assert.Equal(t, 5, cfg.Tone.MaxExclamationPoints)
	// unset threshold falls back so the resolved config is fully populated
	assert.Equal(t, 3, cfg.Tone.MaxAllCapsChunks)
}

func TestResolve_HotReloadPicksUpNewRules(t *testing.T) {
	path := writeRules(t, baseRules)
	loader, err := ruleset.NewLoader(path, logrus.New())
	require.NoError(t, err)

	cfg, err := loader.Resolve("")
	require.NoError(t, err)
	assert.NotContains(t, cfg.BannedTerms.Terms(), "dragon")

	rewriteRules(t, path, `
defaults:
  banned_terms:
    - dragon
  tone_thresholds:
    max_exclamation_points: 1
    max_all_caps_chunks: 1
`)

	cfg, err = loader.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, []string{"dragon"}, cfg.BannedTerms.Terms())
	assert.Equal(t, 1, cfg.Tone.MaxExclamationPoints)
}

func TestResolve_KeepsPreviousRulesWhenReloadFails(t *testing.T) {
	path := writeRules(t, baseRules)
	loader, err := ruleset.NewLoader(path, logrus.New())
	require.NoError(t, err)

	rewriteRules(t, path, "defaults: [broken: yaml")

	cfg, err := loader.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, []string{"goblin", "nightmare"}, cfg.BannedTerms.Terms())
}

func TestResolve_UnchangedFileDoesNotReparse(t *testing.T) {
	path := writeRules(t, baseRules)
	loader, err := ruleset.NewLoader(path, logrus.New())
	require.NoError(t, err)

	first, err := loader.Resolve("")
	require.NoError(t, err)
	second, err := loader.Resolve("")
	require.NoError(t, err)

	// same compiled term set instance until a reload: term patterns are
	// compiled at parse time, never on the check path
	assert.Same(t, first.BannedTerms, second.BannedTerms)
	assert.Equal(t, first.Tone, second.Tone)
}

func TestResolve_ProfileNameFoldsCase(t *testing.T) {
	loader, err := ruleset.NewLoader(writeRules(t, baseRules), logrus.New())
	require.NoError(t, err)

	cfg, err := loader.Resolve("Anxious")

	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Tone.MaxExclamationPoints)
	assert.Contains(t, cfg.BannedTerms.Terms(), "storm")
}
