// package auth sequences a single authorization attempt.
//
// The orchestrator listens for deep-link deliveries, falls back to polling
// the bridge's pending store, falls back further to user-driven manual
// entry, and reports every outcome to the presentation layer through a
// typed event channel. It never reaches into navigation or UI state
// directly, and no error it produces crosses the package boundary as a
// panic; the worst case is landing in ManualEntry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fitlink/internal/deeplink"
	"github.com/desertthunder/fitlink/internal/extract"
	"github.com/desertthunder/fitlink/internal/models"
	"github.com/desertthunder/fitlink/internal/services"
	"github.com/desertthunder/fitlink/internal/shared"
	"github.com/desertthunder/fitlink/internal/tokenstore"
	"golang.org/x/time/rate"
)

// State of a single authorization attempt.
type State int

const (
	Idle State = iota
	AwaitingRedirect
	TokenReceived
	NoTokenReceived
	ErrorReceived
	Validating
	Connected
	ValidationFailed
	ManualEntry
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingRedirect:
		return "awaiting-redirect"
	case TokenReceived:
		return "token-received"
	case NoTokenReceived:
		return "no-token-received"
	case ErrorReceived:
		return "error-received"
	case Validating:
		return "validating"
	case Connected:
		return "connected"
	case ValidationFailed:
		return "validation-failed"
	case ManualEntry:
		return "manual-entry"
	default:
		return "unknown"
	}
}

// OutcomeKind enumerates the events the orchestrator reports.
type OutcomeKind int

const (
	// OutcomeConnected: token validated and stored; the UI should reset
	// navigation to the home context so stale auth screens don't linger
	// on the back stack.
	OutcomeConnected OutcomeKind = iota
	// OutcomeValidationFailed: retry or manual entry suggested. Reason
	// distinguishes a provider rejection from an ambiguous network
	// failure; only the former cleared the stored token.
	OutcomeValidationFailed
	// OutcomeAuthError: the provider returned error=, surfaced verbatim.
	OutcomeAuthError
	// OutcomeNoToken: the attempt window closed with nothing extractable.
	OutcomeNoToken
	// OutcomePersistenceWarning: the local write failed; the session
	// continues in memory but reconnecting will be required on restart.
	OutcomePersistenceWarning
)

// Outcome is a typed event consumed by the presentation layer.
type Outcome struct {
	Kind            OutcomeKind
	Device          *models.LinkedDevice
	ResetNavigation bool
	Reason          tokenstore.Reason
	Err             error
}

// Poller checks the bridge's pending store for a parked token. Returns
// nil with no error when nothing is parked yet.
type Poller interface {
	Poll(ctx context.Context, state string) (*models.Delivery, error)
}

// BrowserOpener launches the external browser at the authorization URL.
type BrowserOpener func(url string) error

// Opts configures an Orchestrator.
type Opts struct {
	Service     *services.FitbitService
	Store       *tokenstore.Store
	Validator   *tokenstore.Validator
	Router      *deeplink.Router
	OpenBrowser BrowserOpener
	Poller      Poller
	PollEvery   time.Duration
	PollTimeout time.Duration
	Logger      *log.Logger
}

// Orchestrator drives the state machine:
//
//	Idle -> AwaitingRedirect -> (TokenReceived | NoTokenReceived | ErrorReceived)
//	     -> Validating -> (Connected | ValidationFailed)
//
// ManualEntry is reachable from NoTokenReceived, ErrorReceived,
// ValidationFailed, and directly from Idle as a user shortcut.
type Orchestrator struct {
	svc         *services.FitbitService
	store       *tokenstore.Store
	validator   *tokenstore.Validator
	router      *deeplink.Router
	openBrowser BrowserOpener
	poller      Poller
	pollEvery   time.Duration
	pollTimeout time.Duration
	logger      *log.Logger
	outcomes    chan Outcome

	mu        sync.Mutex
	state     State
	attemptID string
	nonce     string
	delivered string // token already accepted for this attempt
}

// NewOrchestrator creates an Orchestrator from Opts.
func NewOrchestrator(opts Opts) *Orchestrator {
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.PollEvery <= 0 {
		opts.PollEvery = 2 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 2 * time.Minute
	}

	return &Orchestrator{
		svc:         opts.Service,
		store:       opts.Store,
		validator:   opts.Validator,
		router:      opts.Router,
		openBrowser: opts.OpenBrowser,
		poller:      opts.Poller,
		pollEvery:   opts.PollEvery,
		pollTimeout: opts.PollTimeout,
		logger:      opts.Logger,
		outcomes:    make(chan Outcome, 8),
	}
}

// Outcomes returns the event channel the presentation layer subscribes to.
func (o *Orchestrator) Outcomes() <-chan Outcome {
	return o.outcomes
}

// State returns the current attempt state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// AttemptID returns the identifier of the current attempt, empty when idle.
func (o *Orchestrator) AttemptID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attemptID
}

// Begin starts an authorization attempt: generates the state nonce, opens
// the external browser at the provider URL, and moves to AwaitingRedirect.
// The fallback poller starts in the background when one is configured.
//
// Returns the attempt ID and the authorization URL so the caller can
// display it when the browser could not be opened automatically.
func (o *Orchestrator) Begin(ctx context.Context) (attemptID, authURL string, err error) {
	nonce, err := shared.GenerateState()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	o.mu.Lock()
	o.state = AwaitingRedirect
	o.attemptID = shared.GenerateID()
	o.nonce = nonce
	o.delivered = ""
	attemptID = o.attemptID
	o.mu.Unlock()

	authURL = o.svc.AuthURL(nonce)

	if err := o.openBrowser(authURL); err != nil {
		o.logger.Warn("failed to open browser automatically", "error", err)
	}

	if o.poller != nil {
		go o.pollPending(ctx, nonce)
	}

	return attemptID, authURL, nil
}

// Nonce returns the state nonce of the current attempt, used by the
// poller and by tests to park tokens for it.
func (o *Orchestrator) Nonce() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nonce
}

// HandleURI feeds an incoming URI from any OS channel through the router.
// Unrecognized URIs report false and are otherwise ignored; they are not
// errors. Provider error redirects move the attempt to ErrorReceived.
func (o *Orchestrator) HandleURI(ctx context.Context, uri string, channel models.Channel) (bool, error) {
	if authErr, ok := o.router.RouteError(uri); ok {
		o.mu.Lock()
		o.state = ErrorReceived
		o.mu.Unlock()
		o.emit(Outcome{Kind: OutcomeAuthError, Err: authErr})
		return true, nil
	}

	d, ok := o.router.Route(uri)
	if !ok {
		o.logger.Debug("uri did not carry a token", "channel", channel)
		return false, nil
	}

	d.Channel = channel
	return true, o.Deliver(ctx, d)
}

// Deliver accepts a token delivery from any channel. Safe for concurrent
// use; duplicate deliveries of the same token are no-op successes with
// exactly one validation call and one store write. A delivery arriving
// after the attempt was abandoned stores-if-not-connected; one arriving
// after Connected with a different token is ignored.
func (o *Orchestrator) Deliver(ctx context.Context, d models.Delivery) error {
	o.mu.Lock()
	switch {
	case o.state == Connected && d.AccessToken == o.delivered:
		o.mu.Unlock()
		o.logger.Debug("duplicate delivery after connect, ignoring", "channel", d.Channel)
		return nil
	case o.state == Connected:
		o.mu.Unlock()
		o.logger.Debug("stale delivery for a different session, ignoring", "channel", d.Channel)
		return nil
	case (o.state == TokenReceived || o.state == Validating) && d.AccessToken == o.delivered:
		o.mu.Unlock()
		o.logger.Debug("duplicate delivery while validating, ignoring", "channel", d.Channel)
		return nil
	}
	o.delivered = d.AccessToken
	o.state = TokenReceived
	o.mu.Unlock()

	o.logger.Info("token received", "channel", d.Channel, "user_id", d.UserID)

	expiresIn := d.ExpiresIn
	if expiresIn <= 0 {
		// Manual pastes and mangled redirects arrive without a lifetime;
		// fall back to the lifetime we requested from the provider.
		expiresIn = o.svc.RequestedLifetime()
	}

	tok, err := models.NewToken(d.AccessToken, expiresIn, d.UserID, d.Scope, time.Now())
	if err != nil {
		o.failDelivery(tokenstore.ReasonInvalid, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return err
	}

	o.mu.Lock()
	o.state = Validating
	o.mu.Unlock()

	validation := o.validator.Validate(ctx, tok)
	if !validation.OK {
		if validation.Reason == tokenstore.ReasonInvalid {
			// Provider rejected the credential outright; a stored copy
			// would never validate again.
			if clearErr := o.store.Clear(); clearErr != nil {
				o.logger.Warn("failed to clear rejected token", "error", clearErr)
			}
			o.failDelivery(tokenstore.ReasonInvalid, shared.ErrTokenInvalid)
			return shared.ErrTokenInvalid
		}
		// Ambiguous network failure: the token might still be valid, so
		// nothing is cleared and the user is told to retry.
		o.failDelivery(tokenstore.ReasonNetwork, shared.ErrNetworkFailure)
		return shared.ErrNetworkFailure
	}

	if storeErr := o.store.Store(tok); storeErr != nil {
		if errors.Is(storeErr, shared.ErrPersistence) {
			o.logger.Warn("token write failed, continuing in memory", "error", storeErr)
			o.emit(Outcome{Kind: OutcomePersistenceWarning, Err: storeErr})
		} else {
			o.failDelivery(tokenstore.ReasonInvalid, storeErr)
			return storeErr
		}
	} else if validation.Device != nil {
		// Token first, device second: a reader that sees a token without
		// a device treats the device fields as unknown.
		if devErr := o.store.SaveDevice(*validation.Device); devErr != nil {
			o.logger.Warn("device write failed", "error", devErr)
		}
	}

	o.mu.Lock()
	o.state = Connected
	o.mu.Unlock()

	o.emit(Outcome{Kind: OutcomeConnected, Device: validation.Device, ResetNavigation: true})
	return nil
}

// Manual runs user-pasted input through the tolerant extraction tiers and
// then the normal validation path. Reachable from any failed state and
// directly from Idle.
func (o *Orchestrator) Manual(ctx context.Context, raw string) error {
	res := extract.FromManualInput(raw)
	switch res.Kind {
	case extract.ProviderError:
		o.mu.Lock()
		o.state = ErrorReceived
		o.mu.Unlock()
		o.emit(Outcome{Kind: OutcomeAuthError, Err: res.Err})
		return res.Err
	case extract.NoToken:
		o.mu.Lock()
		o.state = ManualEntry
		o.mu.Unlock()
		return fmt.Errorf("%w: could not find a token in the pasted input", shared.ErrNoToken)
	}

	return o.Deliver(ctx, models.Delivery{
		Channel:     models.ChannelManual,
		AccessToken: res.Grant.AccessToken,
		ExpiresIn:   res.Grant.ExpiresIn,
		UserID:      res.Grant.UserID,
		Scope:       res.Grant.Scope,
		RawURI:      raw,
	})
}

// EnterManual moves straight to ManualEntry, the user-initiated shortcut.
func (o *Orchestrator) EnterManual() {
	o.mu.Lock()
	o.state = ManualEntry
	o.mu.Unlock()
}

// Abandon marks the attempt as implicitly abandoned (the user backed out).
// Later deliveries are still handled idempotently rather than crashing.
func (o *Orchestrator) Abandon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Connected {
		o.state = Idle
	}
}

// pollPending is the third delivery channel: a rate-limited poll of the
// bridge's fallback store, bounded by the attempt window.
func (o *Orchestrator) pollPending(ctx context.Context, nonce string) {
	limiter := rate.NewLimiter(rate.Every(o.pollEvery), 1)
	deadline := time.Now().Add(o.pollTimeout)

	for time.Now().Before(deadline) {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		if s := o.State(); s != AwaitingRedirect {
			return
		}

		d, err := o.poller.Poll(ctx, nonce)
		if err != nil {
			o.logger.Debug("pending poll failed", "error", err)
			continue
		}
		if d == nil {
			continue
		}

		d.Channel = models.ChannelPolledStore
		if err := o.Deliver(ctx, *d); err != nil {
			o.logger.Warn("polled delivery failed", "error", err)
		}
		return
	}

	o.mu.Lock()
	if o.state == AwaitingRedirect {
		o.state = NoTokenReceived
		o.mu.Unlock()
		o.emit(Outcome{Kind: OutcomeNoToken, Err: shared.ErrTimeout})
		return
	}
	o.mu.Unlock()
}

// failDelivery records a failed validation and reports it.
func (o *Orchestrator) failDelivery(reason tokenstore.Reason, err error) {
	o.mu.Lock()
	o.state = ValidationFailed
	// Allow the same token to be redelivered on retry.
	o.delivered = ""
	o.mu.Unlock()
	o.emit(Outcome{Kind: OutcomeValidationFailed, Reason: reason, Err: err})
}

// emit reports an outcome without ever blocking the state machine.
func (o *Orchestrator) emit(out Outcome) {
	select {
	case o.outcomes <- out:
	default:
		o.logger.Warn("outcome channel full, dropping event", "kind", out.Kind)
	}
}
