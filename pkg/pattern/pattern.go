// Package pattern provides unified pattern matching for host and URL
// allowlists.
//
// Pattern Matching Behavior:
//
//   - Exact (no prefix): Case-insensitive exact match
//     Example: "blog.example.com" matches "Blog.Example.COM"
//
//   - Wildcard (*): Case-insensitive pattern with * matching any characters
//     Example: "*.example.com" matches "www.example.com", "shop.EXAMPLE.com"
//
//   - Regexp (~): Case-sensitive regular expression
//     Example: "~^cdn[0-9]+\.example\.com$" matches "cdn2.example.com"
//
//   - Regexp (~*): Case-insensitive regular expression
//     Example: "~*example|sample" matches "Example.com", "SAMPLE.org"
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Type defines the pattern matching type
type Type int

const (
	TypeWildcard Type = iota
	TypeRegexp
	TypeExact
)

// Pattern represents a compiled pattern ready for matching
type Pattern struct {
	Original        string // Original pattern string
	Type            Type   // Exact, Wildcard, or Regexp
	CaseInsensitive bool   // For ~* prefix
	clean           string // Pattern with prefix removed
	re              *regexp.Regexp
}

// Compile pre-compiles a pattern for efficient matching. Call once during
// configuration loading.
func Compile(raw string) (*Pattern, error) {
	if raw == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	p := &Pattern{Original: raw}
	switch {
	case strings.HasPrefix(raw, "~*"):
		p.Type = TypeRegexp
		p.CaseInsensitive = true
		p.clean = raw[2:]
	case strings.HasPrefix(raw, "~"):
		p.Type = TypeRegexp
		p.clean = raw[1:]
	case strings.Contains(raw, "*"):
		p.Type = TypeWildcard
		p.clean = raw
	default:
		p.Type = TypeExact
		p.clean = raw
	}

	if p.Type == TypeRegexp {
		expr := p.clean
		if p.CaseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp pattern '%s': %w", raw, err)
		}
		p.re = re
	}

	return p, nil
}

// Match tests if input matches the compiled pattern
func (p *Pattern) Match(input string) bool {
	if p == nil {
		return false
	}

	switch p.Type {
	case TypeRegexp:
		if p.re == nil {
			return false
		}
		return p.re.MatchString(input)

	case TypeWildcard:
		// Wildcard matching is case-insensitive
		return MatchWildcard(strings.ToLower(input), strings.ToLower(p.clean))

	case TypeExact:
		// Exact matching is case-insensitive
		return strings.EqualFold(input, p.clean)

	default:
		return false
	}
}

// List is a compiled pattern list, typically built once from configuration.
type List []*Pattern

// CompileList compiles all patterns; a single invalid pattern fails the list.
func CompileList(raw []string) (List, error) {
	list := make(List, 0, len(raw))
	for _, r := range raw {
		p, err := Compile(r)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, nil
}

// MatchAny reports whether any pattern in the list matches input.
// An empty list matches nothing.
func (l List) MatchAny(input string) bool {
	for _, p := range l {
		if p.Match(input) {
			return true
		}
	}
	return false
}

// MatchWildcard performs wildcard matching on raw strings. The wildcard *
// matches any sequence of characters including none; multiple wildcards are
// supported. Prefer Compile + Match for configured patterns.
func MatchWildcard(text, pattern string) bool {
	// If no wildcard, do exact match
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")

	// Text must start with first part
	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	// Text must end with last part
	if !strings.HasSuffix(text, parts[len(parts)-1]) {
		return false
	}
	text = text[:len(text)-len(parts[len(parts)-1])]

	// Check middle parts exist in order
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "" {
			continue
		}
		idx := strings.Index(text, parts[i])
		if idx == -1 {
			return false
		}
		text = text[idx+len(parts[i]):]
	}

	return true
}
