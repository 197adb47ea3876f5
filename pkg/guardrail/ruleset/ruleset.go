package ruleset

import (
	"strings"

	"github.com/nightfable/storygate/pkg/guardrail"
)

// Fallback thresholds used when the rule file leaves a tone limit unset,
// so a resolved config is always fully populated.
const (
	fallbackMaxExclamationPoints = 10
	fallbackMaxAllCapsChunks     = 3
)

// toneBlock is the raw tone_thresholds section. Pointer fields distinguish
// "absent" from an explicit zero so profile overrides merge per field.
type toneBlock struct {
	MaxExclamationPoints *int `mapstructure:"max_exclamation_points"`
	MaxAllCapsChunks     *int `mapstructure:"max_all_caps_chunks"`
}

// ruleBlock is one defaults or profile section of the rule file.
type ruleBlock struct {
	BannedTerms       []string  `mapstructure:"banned_terms"`
	ToneThresholds    toneBlock `mapstructure:"tone_thresholds"`
	AllowedCharacters []string  `mapstructure:"allowed_characters"`
	AllowedEmoji      []string  `mapstructure:"allowed_emoji"`
}

// document is the full on-disk rule file: defaults plus named partial
// override blocks, with every profile's merged config precomputed so term
// patterns compile once per parse, not per check.
type document struct {
	Defaults ruleBlock            `mapstructure:"defaults"`
	Profiles map[string]ruleBlock `mapstructure:"profiles"`

	resolved map[string]guardrail.Config
}

// buildResolved merges each profile block over defaults once, right after
// parse. The profile set is closed until the next reload, so resolution
// is a lookup on the hot path.
func (d *document) buildResolved() {
	d.resolved = make(map[string]guardrail.Config, len(d.Profiles)+1)
	d.resolved[""] = mergeBlocks(d.Defaults)
	for name, block := range d.Profiles {
		d.resolved[name] = mergeBlocks(d.Defaults, block)
	}
}

// resolve returns the precomputed config for the named profile. Viper
// lowercases document keys, so the lookup folds case; an empty or unknown
// name falls back to defaults only.
func (d *document) resolve(profileName string) guardrail.Config {
	if cfg, ok := d.resolved[strings.ToLower(profileName)]; ok {
		return cfg
	}
	return d.resolved[""]
}

// mergeBlocks folds the blocks left to right into a fully-populated
// config. Term and character lists union; thresholds override only when a
// later block sets them.
func mergeBlocks(blocks ...ruleBlock) guardrail.Config {
	cfg := guardrail.Config{
		Tone: guardrail.ToneThresholds{
			MaxExclamationPoints: fallbackMaxExclamationPoints,
			MaxAllCapsChunks:     fallbackMaxAllCapsChunks,
		},
		AllowedRunes: make(map[rune]struct{}),
	}

	var terms []string
	for _, block := range blocks {
		terms = append(terms, block.BannedTerms...)
		if block.ToneThresholds.MaxExclamationPoints != nil {
			cfg.Tone.MaxExclamationPoints = *block.ToneThresholds.MaxExclamationPoints
		}
		if block.ToneThresholds.MaxAllCapsChunks != nil {
			cfg.Tone.MaxAllCapsChunks = *block.ToneThresholds.MaxAllCapsChunks
		}
		for _, list := range [][]string{block.AllowedCharacters, block.AllowedEmoji} {
			for _, entry := range list {
				for _, r := range entry {
					cfg.AllowedRunes[r] = struct{}{}
				}
			}
		}
	}
	cfg.BannedTerms = guardrail.NewTermSet(terms)

	return cfg
}
