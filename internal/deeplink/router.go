// package deeplink classifies incoming URIs and extracts auth deliveries.
//
// The OS hands the app URIs from several sources: the URI that launched
// the process, live url events while foregrounded, and unrelated deep
// links that have nothing to do with auth. The router decides which ones
// carry a token and normalizes them into [models.Delivery] values; all
// delivery channels converge on the orchestrator's single entry point.
package deeplink

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fitlink/internal/extract"
	"github.com/desertthunder/fitlink/internal/models"
)

// directPathHost is the host segment of the most reliable encoding:
// scheme://auth-token/<TOKEN>?expires_in=...&user_id=...
// Path segments are rarely mangled by intermediate OS or browser
// processing, so this rule is evaluated first.
const directPathHost = "auth-token"

// Router classifies incoming URIs with a fixed priority order.
type Router struct {
	scheme       string
	knownDomains []string
	logger       *log.Logger
}

// NewRouter creates a Router for the given app custom scheme and the set
// of provider domains whose URLs are treated as token-bearing callbacks.
func NewRouter(scheme string, knownDomains []string, logger *log.Logger) *Router {
	return &Router{scheme: scheme, knownDomains: knownDomains, logger: logger}
}

// Route inspects an incoming URI and extracts a token delivery from it.
//
// Priority, first match wins:
//  1. direct-path: token as the raw path segment after auth-token
//  2. access_token= anywhere, or a known provider domain: delegate to the
//     extractor's structured/regex tiers
//  3. anything else passes through unrecognized (false); many deep links
//     are unrelated to auth, so this is not an error
//
// The returned Delivery carries no Channel; the caller stamps the channel
// it received the URI on.
func (r *Router) Route(uri string) (models.Delivery, bool) {
	if d, ok := r.routeDirectPath(uri); ok {
		return d, true
	}

	if strings.Contains(uri, "access_token=") || r.isKnownDomain(uri) {
		if res := extract.Extract(uri); res.Kind == extract.TokenFound {
			return deliveryFromGrant(res.Grant, uri), true
		}
	}

	r.logger.Debug("ignoring unrecognized deep link", "uri", uri)
	return models.Delivery{}, false
}

// RouteError reports a provider error carried by the URI, if any.
// Checked by the orchestrator before Route so an error= redirect is
// surfaced instead of being dropped as unrecognized.
func (r *Router) RouteError(uri string) (*extract.AuthError, bool) {
	if !strings.HasPrefix(uri, r.scheme+"://") && !r.isKnownDomain(uri) {
		return nil, false
	}
	if res := extract.Extract(uri); res.Kind == extract.ProviderError {
		return res.Err, true
	}
	return nil, false
}

// routeDirectPath handles scheme://auth-token/<TOKEN>?expires_in=&user_id=.
// The token is the raw path segment, not a query parameter.
func (r *Router) routeDirectPath(uri string) (models.Delivery, bool) {
	prefix := r.scheme + "://" + directPathHost + "/"
	if !strings.HasPrefix(uri, prefix) {
		return models.Delivery{}, false
	}

	rest := uri[len(prefix):]
	token := rest
	var query string
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		token = rest[:i]
		query = rest[i+1:]
	}
	if token == "" {
		return models.Delivery{}, false
	}

	d := models.Delivery{AccessToken: token, RawURI: uri}
	if query != "" {
		values, err := url.ParseQuery(query)
		if err == nil {
			d.ExpiresIn = parseLifetime(values.Get("expires_in"))
			d.UserID = values.Get("user_id")
			d.Scope = values.Get("scope")
		}
	}
	return d, true
}

func (r *Router) isKnownDomain(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range r.knownDomains {
		if host == strings.ToLower(domain) {
			return true
		}
	}
	return false
}

func deliveryFromGrant(g extract.Grant, uri string) models.Delivery {
	return models.Delivery{
		AccessToken: g.AccessToken,
		ExpiresIn:   g.ExpiresIn,
		UserID:      g.UserID,
		Scope:       g.Scope,
		RawURI:      uri,
	}
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
