// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"fmt"
	"regexp"
)

// Policy is a compiled pair of include and exclude patterns. A name is selected
// if it matches at least one include pattern and none of the exclude patterns.
// Patterns are regular expressions that must match the complete name. Without
// include patterns every name is included.
//
// The same policy is applied to walked paths and to archive entry names. A
// Policy is immutable and safe for concurrent use.
type Policy struct {
	includes     []*regexp.Regexp
	excludes     []*regexp.Regexp
	includesFold []*regexp.Regexp
	excludesFold []*regexp.Regexp
}

// NewPolicy compiles includes and excludes. An empty or invalid pattern is
// returned as error.
func NewPolicy(includes []string, excludes []string) (*Policy, error) {
	p := &Policy{}
	var err error
	if p.includes, err = compilePatterns(includes, false); err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	if p.excludes, err = compilePatterns(excludes, false); err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	if p.includesFold, err = compilePatterns(includes, true); err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	if p.excludesFold, err = compilePatterns(excludes, true); err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return p, nil
}

// compilePatterns anchors every pattern at both ends and compiles it. If fold
// is true, the expressions match case-insensitive.
func compilePatterns(patterns []string, fold bool) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		if len(pattern) == 0 {
			return nil, ErrEmptyPattern
		}
		expr := "^(?s:" + pattern + ")$"
		if fold {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Match returns true if name is selected by the policy.
func (p *Policy) Match(name string) bool {
	return isMatch(name, p.includes, p.excludes)
}

// MatchFold is like Match, but ignores the case of name.
func (p *Policy) MatchFold(name string) bool {
	return isMatch(name, p.includesFold, p.excludesFold)
}

// isMatch checks name against includes first and excludes afterwards.
func isMatch(name string, includes []*regexp.Regexp, excludes []*regexp.Regexp) bool {
	if len(includes) > 0 && !matchesAny(name, includes) {
		return false
	}
	return !matchesAny(name, excludes)
}

// matchesAny returns true if at least one expression matches name.
func matchesAny(name string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
