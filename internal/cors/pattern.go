package cors

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternKind distinguishes literal origins from regular expressions.
type PatternKind string

const (
	PatternExact PatternKind = "exact"
	PatternRegex PatternKind = "regex"
)

// Pattern is a single entry of an allowed origin set.
type Pattern struct {
	kind  PatternKind
	value string
	re    *regexp.Regexp
}

// Exact returns a pattern matching origin by string equality.
func Exact(origin string) Pattern {
	return Pattern{kind: PatternExact, value: strings.TrimSpace(origin)}
}

// Regex compiles expr into a pattern that must match the whole origin.
// Anchors already present in expr are harmless.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile origin pattern %q: %w", expr, err)
	}
	return Pattern{kind: PatternRegex, value: expr, re: re}, nil
}

// MustRegex is like Regex but panics on an invalid expression.
func MustRegex(expr string) Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPattern builds a pattern from its kind and textual value.
func NewPattern(kind PatternKind, value string) (Pattern, error) {
	switch kind {
	case PatternExact:
		if strings.TrimSpace(value) == "" {
			return Pattern{}, fmt.Errorf("exact origin cannot be empty")
		}
		return Exact(value), nil
	case PatternRegex:
		return Regex(value)
	default:
		return Pattern{}, fmt.Errorf("unknown pattern kind %q", kind)
	}
}

// Kind reports whether the pattern is exact or regex.
func (p Pattern) Kind() PatternKind { return p.kind }

// Value is the literal origin or the source expression.
func (p Pattern) Value() string { return p.value }

// Matches reports whether origin satisfies the pattern.
func (p Pattern) Matches(origin string) bool {
	if p.re != nil {
		return p.re.MatchString(origin)
	}
	return p.value != "" && p.value == origin
}

func (p Pattern) String() string {
	return string(p.kind) + ":" + p.value
}
