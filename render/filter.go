package render

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/src-d/enry/v2"
)

// allLanguages disables the language filter.
const allLanguages = "all"

// PathFilter is the renderer's path predicate: a file contributes to the
// chart when it matches any of the glob patterns (or there are none) and its
// detected language is allowed.
type PathFilter struct {
	patterns  []glob.Glob
	languages map[string]bool
}

// NewPathFilter compiles the glob patterns and the language allowlist.
// Language names follow enry; the special name "all" (or an empty list)
// lets every file through.
func NewPathFilter(patterns, languages []string) (*PathFilter, error) {
	filter := &PathFilter{}
	for _, pattern := range patterns {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path pattern %q", pattern)
		}
		filter.patterns = append(filter.patterns, compiled)
	}
	for _, language := range languages {
		language = strings.TrimSpace(language)
		if language == "" {
			continue
		}
		if strings.EqualFold(language, allLanguages) {
			filter.languages = nil
			break
		}
		if filter.languages == nil {
			filter.languages = map[string]bool{}
		}
		filter.languages[strings.ToLower(language)] = true
	}
	return filter, nil
}

// Match implements the predicate consumed by Tree.Stat.
func (filter *PathFilter) Match(path string) bool {
	if len(filter.patterns) > 0 {
		matched := false
		for _, pattern := range filter.patterns {
			if pattern.Match(path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if filter.languages == nil {
		return true
	}
	language, _ := enry.GetLanguageByExtension(path)
	if language == "" {
		language, _ = enry.GetLanguageByFilename(path)
	}
	return filter.languages[strings.ToLower(language)]
}
