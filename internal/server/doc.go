// Package server hosts the redirect bridge: the HTTP surface standing in
// for the static web page registered as the provider's OAuth redirect
// target.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern. The [BasicRouter] implementation uses
// [http.ServeMux] internally with method filtering.
//
// # Bridge Handler
//
// [BridgeHandler] serves the capture flow:
//
//   - GET /auth renders a shim page that reflects the fragment the provider
//     appended into a server-readable query (fragments never reach the
//     server on their own).
//   - GET /auth/capture runs token extraction over the reflected URL,
//     parks the grant in the [PendingStore], and renders the hand-off page:
//     the token in a selectable field with a copy control first, then the
//     staggered deep-link attempt schedule.
//   - GET /auth/pending is the app-side poll endpoint; parked grants are
//     single-consumer and expire with their TTL.
//   - GET /health reports liveness and the pending-store kind.
//
// # Pending Store
//
// [MemoryStore] is the in-process default. [RedisStore] backs deployments
// running more than one bridge instance behind the redirect host.
package server

import (
	"net/http"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the bridge.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}
