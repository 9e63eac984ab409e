// Package filter decides which replica-relative paths a scan skips.
package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Rules is the ignore configuration shared by every replica. A path is ignored
// when any rule matches:
//  1. Paths: the path equals an entry or lies below it (component-wise prefix)
//  2. Regexes: the regex matches the slash-separated path string
//  3. Patterns: a gitignore-style pattern matches
type Rules struct {
	Paths   []string
	Regexes []*regexp.Regexp

	patterns []string
	matcher  *ignore.GitIgnore
}

// Compile builds Rules from configuration strings.
func Compile(paths, regexes, patterns []string) (*Rules, error) {
	r := &Rules{}
	for _, p := range paths {
		if p = normalizePrefix(p); p != "" {
			r.Paths = append(r.Paths, p)
		}
	}
	for _, expr := range regexes {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore regex %q: %w", expr, err)
		}
		r.Regexes = append(r.Regexes, re)
	}
	r.SetPatterns(patterns...)
	return r, nil
}

// SetPatterns replaces the gitignore-style patterns.
func (r *Rules) SetPatterns(patterns ...string) {
	r.patterns = patterns
	r.matcher = nil
	if len(patterns) > 0 {
		r.matcher = ignore.CompileIgnoreLines(patterns...)
	}
}

// Patterns returns the gitignore-style patterns in use.
func (r *Rules) Patterns() []string {
	return r.patterns
}

// IsIgnored checks if the relative path is on the ignore list. A nil Rules
// ignores nothing.
func (r *Rules) IsIgnored(relPath string) bool {
	if r == nil {
		return false
	}
	slashed := filepath.ToSlash(relPath)

	for _, p := range r.Paths {
		if p = normalizePrefix(p); p == "" {
			continue
		}
		if slashed == p || strings.HasPrefix(slashed, p+"/") {
			return true
		}
	}
	for _, re := range r.Regexes {
		if re.MatchString(slashed) {
			return true
		}
	}
	if r.matcher != nil && r.matcher.MatchesPath(slashed) {
		return true
	}
	return false
}

// normalizePrefix turns a configured path into its slash form without outer
// slashes. The replica root normalizes to "".
func normalizePrefix(p string) string {
	p = strings.Trim(filepath.ToSlash(filepath.Clean(p)), "/")
	if p == "." {
		return ""
	}
	return p
}

// IsIgnored is the functional form of Rules.IsIgnored.
func IsIgnored(rules *Rules, relPath string) bool {
	return rules.IsIgnored(relPath)
}
