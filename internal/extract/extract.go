// package extract recovers bearer tokens from implicit-grant redirect URLs.
//
// Browsers and intermediate redirect hops sometimes produce URLs that are
// not well-formed query strings (stray ampersands, missing ? prefix,
// double-encoded fragments). Extraction therefore runs a three-tier
// fallback: structured fragment parse, structured query parse, then a raw
// regex capture that only activates when the structured parses find
// nothing. The regex tier recovers tokens from malformed URLs without ever
// guessing wrongly on well-formed ones.
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies an extraction result.
type Kind int

const (
	// NoToken means the URL was examined by every tier and carries no token.
	NoToken Kind = iota
	// TokenFound means a grant was recovered.
	TokenFound
	// ProviderError means the provider returned error= and extraction
	// short-circuited before looking for a token.
	ProviderError
)

// Grant holds the fields recovered from a successful redirect.
type Grant struct {
	AccessToken string
	ExpiresIn   int64 // seconds; 0 when the provider omitted or mangled it
	UserID      string
	Scope       string
}

// AuthError carries a provider-surfaced error= / error_description= pair.
//
// Surfaced verbatim to the user and never retried automatically.
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Result is the outcome of one extraction pass. Exactly one of Grant or
// Err is meaningful, selected by Kind.
type Result struct {
	Kind  Kind
	Grant Grant
	Err   *AuthError
}

var (
	errPattern     = regexp.MustCompile(`(?:^|[#?&])error=([^&]+)`)
	errDescPattern = regexp.MustCompile(`(?:^|[#?&])error_description=([^&]+)`)
	tokenPattern   = regexp.MustCompile(`[#?&]access_token=([^&]+)`)
	expiresPattern = regexp.MustCompile(`[#?&]expires_in=([^&]+)`)
	userIDPattern  = regexp.MustCompile(`[#?&]user_id=([^&]+)`)
	scopePattern   = regexp.MustCompile(`[#?&]scope=([^&]+)`)
	bareTokenShape = regexp.MustCompile(`^[A-Za-z0-9._~+=-]+$`)
)

// Extract runs the ordered extraction algorithm over the full redirect URL.
//
// Tier order: provider error short-circuit, fragment parse, query parse,
// raw regex capture. First match wins. Parsing never fails across this
// boundary; malformed input resolves to a NoToken result.
func Extract(rawURL string) Result {
	if code, ok := firstCapture(errPattern, rawURL); ok {
		desc, _ := firstCapture(errDescPattern, rawURL)
		return Result{Kind: ProviderError, Err: &AuthError{Code: code, Description: desc}}
	}

	if idx := strings.Index(rawURL, "#"); idx >= 0 {
		if g, ok := grantFromPairs(parsePairs(rawURL[idx+1:])); ok {
			return Result{Kind: TokenFound, Grant: g}
		}
	} else if idx := strings.Index(rawURL, "?"); idx >= 0 {
		if g, ok := grantFromPairs(parsePairs(rawURL[idx+1:])); ok {
			return Result{Kind: TokenFound, Grant: g}
		}
	}

	if g, ok := grantFromRegex(rawURL); ok {
		return Result{Kind: TokenFound, Grant: g}
	}

	return Result{Kind: NoToken}
}

// FromManualInput tolerates users pasting either the full redirect URL or
// just the bare token. URLs go through the normal tiers; anything that
// looks like an opaque token is accepted as one with an unknown lifetime.
func FromManualInput(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{Kind: NoToken}
	}

	if res := Extract(raw); res.Kind != NoToken {
		return res
	}

	if bareTokenShape.MatchString(raw) {
		return Result{Kind: TokenFound, Grant: Grant{AccessToken: raw}}
	}

	return Result{Kind: NoToken}
}

// parsePairs splits an &-delimited key=value list, percent-decoding values.
// A value whose escaping is broken falls back to its raw form.
func parsePairs(s string) map[string]string {
	pairs := make(map[string]string)
	for _, field := range strings.Split(s, "&") {
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, "=")
		if !found || key == "" {
			continue
		}
		pairs[key] = decode(value)
	}
	return pairs
}

func grantFromPairs(pairs map[string]string) (Grant, bool) {
	token, ok := pairs["access_token"]
	if !ok || token == "" {
		return Grant{}, false
	}

	return Grant{
		AccessToken: token,
		ExpiresIn:   parseLifetime(pairs["expires_in"]),
		UserID:      pairs["user_id"],
		Scope:       pairs["scope"],
	}, true
}

// grantFromRegex is the last-resort tier for malformed or double-encoded
// URLs that the structured parses could not read.
func grantFromRegex(rawURL string) (Grant, bool) {
	token, ok := firstCapture(tokenPattern, rawURL)
	if !ok || token == "" {
		return Grant{}, false
	}

	g := Grant{AccessToken: token}
	if v, ok := firstCapture(expiresPattern, rawURL); ok {
		g.ExpiresIn = parseLifetime(v)
	}
	if v, ok := firstCapture(userIDPattern, rawURL); ok {
		g.UserID = v
	}
	if v, ok := firstCapture(scopePattern, rawURL); ok {
		g.Scope = v
	}
	return g, true
}

func firstCapture(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return decode(m[1]), true
}

func decode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

func parseLifetime(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
