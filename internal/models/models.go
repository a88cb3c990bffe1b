// package models defines the data model for the auth bridge
package models

import (
	"fmt"
	"time"
)

// Token is the persisted credential captured from an implicit-grant redirect.
//
// The store holds at most one Token; writes are total replacements.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id,omitempty"`
	Scope       string    `json:"scope,omitempty"`
}

// NewToken derives a Token from provider-supplied capture fields.
//
// expiresIn is the provider-supplied lifetime in seconds; ExpiresAt is
// computed against now at capture time. Empty access tokens and
// non-positive lifetimes are rejected.
func NewToken(accessToken string, expiresIn int64, userID, scope string, now time.Time) (Token, error) {
	if accessToken == "" {
		return Token{}, fmt.Errorf("access token must not be empty")
	}
	if expiresIn <= 0 {
		return Token{}, fmt.Errorf("token lifetime must be positive, got %d", expiresIn)
	}

	return Token{
		AccessToken: accessToken,
		ExpiresAt:   now.Add(time.Duration(expiresIn) * time.Second),
		UserID:      userID,
		Scope:       scope,
	}, nil
}

// Valid reports whether the token exists and has not expired.
//
// Expiry is strict: now == ExpiresAt counts as expired.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// LinkedDevice summarizes the connected account's hardware and profile.
//
// Derived from a successful validation call, never from the token itself.
// A reader that finds a Token without a LinkedDevice treats the device
// fields as unknown, not as an error.
type LinkedDevice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BatteryLevel *int   `json:"battery_level,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Channel identifies the path a token delivery arrived on.
type Channel string

const (
	ChannelInitialURI  Channel = "initial-uri"  // URI that launched the app
	ChannelLiveEvent   Channel = "live-event"   // URI event while foregrounded
	ChannelPolledStore Channel = "polled-store" // bridge fallback store poll
	ChannelManual      Channel = "manual"       // user-pasted token or URL
)

// Delivery is one token delivery from any channel.
//
// All channels converge on the orchestrator's Deliver entry point, which
// treats repeat deliveries of the same token idempotently.
type Delivery struct {
	Channel     Channel
	AccessToken string
	ExpiresIn   int64
	UserID      string
	Scope       string
	RawURI      string // the URI the delivery was extracted from, for logging
}
