// Package cors decides which request origins may receive cross-origin responses.
package cors

import (
	"errors"
	"fmt"
	"net/http"
)

// Header values attached to every allowed cross-origin response.
const (
	AllowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	AllowedHeaders = "Content-Type, Authorization, x-jwt-token"
)

// ErrOriginRejected is returned when an origin matches no allowed pattern.
var ErrOriginRejected = errors.New("Not allowed by CORS")

// RejectedError carries the origin that failed authorization.
type RejectedError struct {
	Origin string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("origin %q: %s", e.Origin, ErrOriginRejected.Error())
}

// Is makes errors.Is(err, ErrOriginRejected) hold for every RejectedError.
func (e *RejectedError) Is(target error) bool {
	return target == ErrOriginRejected
}

// Decision is the outcome of authorizing one origin.
type Decision struct {
	Allowed bool
	Origin  string
}

// Apply writes the CORS response headers for an allowed decision.
// Nothing is written when the decision denies or carries no origin.
func (d Decision) Apply(h http.Header) {
	if !d.Allowed || d.Origin == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", d.Origin)
	h.Set("Access-Control-Allow-Methods", AllowedMethods)
	h.Set("Access-Control-Allow-Headers", AllowedHeaders)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Add("Vary", "Origin")
}

// Authorizer evaluates origins against an immutable allowed origin set.
// It is safe for concurrent use.
type Authorizer struct {
	patterns []Pattern
}

// NewAuthorizer copies patterns so later changes by the caller cannot leak in.
func NewAuthorizer(patterns ...Pattern) *Authorizer {
	cp := make([]Pattern, len(patterns))
	copy(cp, patterns)
	return &Authorizer{patterns: cp}
}

// Patterns returns a copy of the allowed origin set.
func (a *Authorizer) Patterns() []Pattern {
	cp := make([]Pattern, len(a.patterns))
	copy(cp, a.patterns)
	return cp
}

// Authorize allows an empty origin, and otherwise allows origin only if some
// pattern matches. A denied origin yields a *RejectedError.
func (a *Authorizer) Authorize(origin string) (Decision, error) {
	if origin == "" {
		return Decision{Allowed: true}, nil
	}
	for _, p := range a.patterns {
		if p.Matches(origin) {
			return Decision{Allowed: true, Origin: origin}, nil
		}
	}
	return Decision{Origin: origin}, &RejectedError{Origin: origin}
}
