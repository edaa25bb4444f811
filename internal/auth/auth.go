// Package auth authorizes inbound catalog requests by bearer token.
package auth

import "net/http"

// TokenHeader is the request header carrying the caller's token.
const TokenHeader = "token"

// Authorizer decides whether a request may proceed.
type Authorizer interface {
	// Authorize returns true when the request carries a valid credential.
	Authorize(r *http.Request) bool
}

// StaticTokenAuthorizer accepts requests whose token header matches one of
// a fixed set of tokens loaded at startup.
type StaticTokenAuthorizer struct {
	tokens map[string]struct{}
}

// NewStaticTokenAuthorizer creates an authorizer from the given token list.
// Empty strings are ignored so a blank header can never authenticate.
func NewStaticTokenAuthorizer(tokens []string) *StaticTokenAuthorizer {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return &StaticTokenAuthorizer{tokens: set}
}

// Authorize checks the token header against the configured set.
func (a *StaticTokenAuthorizer) Authorize(r *http.Request) bool {
	token := r.Header.Get(TokenHeader)
	if token == "" {
		return false
	}
	_, ok := a.tokens[token]
	return ok
}

// AllowAll authorizes every request. Used when authentication is disabled.
type AllowAll struct{}

// Authorize always returns true.
func (AllowAll) Authorize(*http.Request) bool { return true }
