// package dispatch implements the redirect page's token hand-off broadcast.
//
// Delivering a token from a web page to a native app is a best-effort
// broadcast over an unreliable channel: the page fires several deep-link
// encodings and never learns whether the OS routed any of them. The
// dispatcher models that explicitly as a bounded retry policy over an
// ordered encoding list, with the clock and the transport injected so
// the whole schedule is testable.
package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fitlink/internal/extract"
)

// Encoding is a named pure function from grant fields to a URI.
type Encoding struct {
	Method string
	Build  func(token string, expiresIn int64, userID string) string
}

// Encodings returns the fixed, ordered transport encodings for an app
// scheme and redirect host. Order matters: the direct-path form goes
// first because path segments survive OS and browser mangling best.
func Encodings(scheme, redirectHost string) []Encoding {
	aux := func(expiresIn int64, userID string) string {
		v := url.Values{}
		v.Set("expires_in", fmt.Sprintf("%d", expiresIn))
		if userID != "" {
			v.Set("user_id", userID)
		}
		return v.Encode()
	}

	return []Encoding{
		{
			Method: "direct-path",
			Build: func(token string, expiresIn int64, userID string) string {
				return fmt.Sprintf("%s://auth-token/%s?%s", scheme, url.PathEscape(token), aux(expiresIn, userID))
			},
		},
		{
			Method: "callback-query",
			Build: func(token string, expiresIn int64, userID string) string {
				return fmt.Sprintf("%s://fitbit-callback?access_token=%s&%s", scheme, url.QueryEscape(token), aux(expiresIn, userID))
			},
		},
		{
			Method: "hash",
			Build: func(token string, expiresIn int64, userID string) string {
				return fmt.Sprintf("%s://#access_token=%s&%s", scheme, url.QueryEscape(token), aux(expiresIn, userID))
			},
		},
		{
			Method: "query",
			Build: func(token string, expiresIn int64, userID string) string {
				return fmt.Sprintf("%s://?access_token=%s&%s", scheme, url.QueryEscape(token), aux(expiresIn, userID))
			},
		},
		{
			Method: "universal-link",
			Build: func(token string, expiresIn int64, userID string) string {
				return fmt.Sprintf("https://%s/auth?access_token=%s&%s", redirectHost, url.QueryEscape(token), aux(expiresIn, userID))
			},
		},
	}
}

// Attempt records one transport method tried during a dispatch round.
// The outcome is always unknown: the page cannot observe whether the OS
// hand-off succeeded. Ephemeral, never persisted.
type Attempt struct {
	Method string        `json:"method"`
	URI    string        `json:"uri"`
	Delay  time.Duration `json:"delay"`
}

// Transport fires one deep-link attempt out-of-band. Implementations must
// not block and must not navigate the visible page away; the token stays
// visible for manual copy regardless of transport outcome.
type Transport interface {
	Attempt(method, uri string)
}

// Parker parks a grant in the same-origin fallback store before any
// transport attempt, so the app can poll for it if it was foregrounded by
// means other than a deep link.
type Parker interface {
	Park(ctx context.Context, state string, g extract.Grant) error
}

// Clock abstracts timer scheduling so tests can drive the stagger.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Policy bounds the broadcast: attempt i fires at i x Interval, and no
// more than MaxAttempts encodings are tried even if the page re-renders.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy mirrors the production stagger.
func DefaultPolicy() Policy {
	return Policy{Interval: 700 * time.Millisecond, MaxAttempts: 4}
}

// Dispatcher drives one authorization round's hand-off attempts.
type Dispatcher struct {
	encodings []Encoding
	policy    Policy
	clock     Clock
	transport Transport
	parker    Parker
	logger    *log.Logger

	mu        sync.Mutex
	attempted bool
	draining  bool
	manual    bool
}

// Opts configures a Dispatcher. Clock defaults to the wall clock,
// Policy to DefaultPolicy.
type Opts struct {
	Encodings []Encoding
	Policy    Policy
	Clock     Clock
	Transport Transport
	Parker    Parker
	Logger    *log.Logger
}

// NewDispatcher creates a Dispatcher from Opts.
func NewDispatcher(opts Opts) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Policy.Interval <= 0 {
		opts.Policy.Interval = DefaultPolicy().Interval
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}

	return &Dispatcher{
		encodings: opts.Encodings,
		policy:    opts.Policy,
		clock:     opts.Clock,
		transport: opts.Transport,
		parker:    opts.Parker,
		logger:    opts.Logger,
	}
}

// Dispatch parks the grant in the fallback store, then schedules the
// staggered transport attempts and returns the plan immediately.
//
// Parking happens before any transport fires so the last-resort channel
// exists even if every deep link is swallowed. The returned error reports
// a parking failure only; transport attempts are fire-and-forget and have
// no observable outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, state string, g extract.Grant) ([]Attempt, error) {
	var parkErr error
	if d.parker != nil {
		if parkErr = d.parker.Park(ctx, state, g); parkErr != nil {
			d.logger.Warn("failed to park token in fallback store", "error", parkErr)
		}
	}

	attempts := d.Plan(g)

	d.mu.Lock()
	d.attempted = true
	d.draining = true
	d.mu.Unlock()

	go d.run(ctx, attempts)

	return attempts, parkErr
}

// Plan computes the attempt schedule without executing it.
func (d *Dispatcher) Plan(g extract.Grant) []Attempt {
	n := len(d.encodings)
	if n > d.policy.MaxAttempts {
		n = d.policy.MaxAttempts
	}

	attempts := make([]Attempt, 0, n)
	for i := 0; i < n; i++ {
		enc := d.encodings[i]
		attempts = append(attempts, Attempt{
			Method: enc.Method,
			URI:    enc.Build(g.AccessToken, g.ExpiresIn, g.UserID),
			Delay:  time.Duration(i) * d.policy.Interval,
		})
	}
	return attempts
}

// run fires the attempts on the injected clock. Each attempt is
// fire-and-forget; the schedule drains even if the OS switched focus away
// after the first hit.
func (d *Dispatcher) run(ctx context.Context, attempts []Attempt) {
	defer func() {
		d.mu.Lock()
		d.draining = false
		d.mu.Unlock()
	}()

	for i, a := range attempts {
		if i > 0 {
			select {
			case <-ctx.Done():
				d.logger.Debug("dispatch abandoned", "remaining", len(attempts)-i)
				return
			case <-d.clock.After(d.policy.Interval):
			}
		}
		d.logger.Debug("firing hand-off attempt", "method", a.Method)
		d.transport.Attempt(a.Method, a.URI)
	}
}

// VisibilityRegained records that the page returned to the foreground.
//
// During the attempt window visibility churns as the OS flips focus
// between browser and app, so signals are debounced until the schedule
// has drained. After that, regaining visibility is the only evidence of
// failure the page gets, and the UI state upgrades to manual-recommended.
func (d *Dispatcher) VisibilityRegained() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.attempted || d.draining {
		return false
	}
	d.manual = true
	return true
}

// ManualRecommended reports whether manual entry should be suggested.
func (d *Dispatcher) ManualRecommended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.manual
}
