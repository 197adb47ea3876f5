package guardrail

import (
	"regexp"
	"sort"
	"strings"
)

// Category classifies a single rule breach.
type Category string

const (
	// CategorySafety marks a banned-term match.
	CategorySafety Category = "safety"
	// CategoryTone marks an exceeded tone threshold.
	CategoryTone Category = "tone"
	// CategoryCharacter marks a disallowed symbol or emoji in a prompt.
	CategoryCharacter Category = "character"
)

// Violation is one rule breach found during a check. An empty violation
// list means the content passed.
type Violation struct {
	Category Category `json:"category"`
	Detail   string   `json:"detail"`
}

// ToneThresholds are the limits applied by the tone scan.
type ToneThresholds struct {
	MaxExclamationPoints int `mapstructure:"max_exclamation_points" json:"max_exclamation_points"`
	MaxAllCapsChunks     int `mapstructure:"max_all_caps_chunks" json:"max_all_caps_chunks"`
}

// Config is a fully-resolved rule set for one profile: defaults with the
// profile's overrides already merged in. Every field is populated and the
// whole value is read-only once built, so it is safe to share across
// concurrent checks.
type Config struct {
	BannedTerms  *TermSet
	Tone         ToneThresholds
	AllowedRunes map[rune]struct{}
}

// UserProfile is the caller-owned profile shape consumed for override
// lookup. The guard never mutates it.
type UserProfile struct {
	Name        string            `json:"name"`
	Mood        string            `json:"mood"`
	Routine     string            `json:"routine"`
	Preferences map[string]string `json:"preferences"`
}

// OverrideKey returns the config profile key for this profile, falling
// back to mood when no explicit name is set.
func (p *UserProfile) OverrideKey() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Mood
}

// TermSet is an immutable set of banned terms whose match patterns are
// compiled once at construction, so per-check scans never compile.
type TermSet struct {
	terms    []string
	patterns []*regexp.Regexp
}

// NewTermSet lowercases, trims, dedupes and sorts the terms, then
// compiles one case-insensitive pattern per term.
func NewTermSet(terms []string) *TermSet {
	seen := make(map[string]struct{}, len(terms))
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		cleaned = append(cleaned, term)
	}
	sort.Strings(cleaned)

	patterns := make([]*regexp.Regexp, len(cleaned))
	for i, term := range cleaned {
		patterns[i] = compileTermPattern(term)
	}

	return &TermSet{terms: cleaned, patterns: patterns}
}

// Terms returns the normalized terms in sorted order.
func (s *TermSet) Terms() []string {
	if s == nil {
		return nil
	}
	return s.terms
}

// Match returns the banned terms found in text, case-insensitively and
// word-boundary aware, in sorted term order. "goblin" matches "GOBLIN"
// but not the inside of a larger token.
func (s *TermSet) Match(text string) []string {
	if s == nil {
		return nil
	}
	var matched []string
	for i, pattern := range s.patterns {
		if pattern.MatchString(text) {
			matched = append(matched, s.terms[i])
		}
	}
	return matched
}

// compileTermPattern anchors with \b only where the term edge is a word
// rune; a term starting or ending in punctuation or an emoji has no word
// boundary there and would never match if anchored.
func compileTermPattern(term string) *regexp.Regexp {
	expr := regexp.QuoteMeta(term)
	runes := []rune(term)
	if isWordRune(runes[0]) {
		expr = `\b` + expr
	}
	if isWordRune(runes[len(runes)-1]) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

// isWordRune mirrors the regexp package's \w class, which is what \b
// anchors against.
func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}
