package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fitlink/internal/models"
	"github.com/desertthunder/fitlink/internal/services"
	"github.com/desertthunder/fitlink/internal/shared"
)

// Reason classifies why a validation did not succeed.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonInvalid means the provider rejected the bearer token (401).
	// The caller should clear the stored token.
	ReasonInvalid
	// ReasonNetwork means the validation request itself failed. The token
	// may still be valid, so the caller must NOT clear it.
	ReasonNetwork
)

// Validation is the outcome of one live capability check.
type Validation struct {
	OK     bool
	Reason Reason
	Device *models.LinkedDevice
}

// Validator performs live capability checks against the provider's
// profile endpoint using the token as a bearer credential.
type Validator struct {
	svc    *services.FitbitService
	logger *log.Logger
}

// NewValidator creates a Validator over the given provider client.
func NewValidator(svc *services.FitbitService, logger *log.Logger) *Validator {
	return &Validator{svc: svc, logger: logger}
}

// Validate checks the token against the profile endpoint and derives a
// LinkedDevice from the response. Device details (model, battery) come
// from a best-effort follow-up call and are absent when it fails.
func (v *Validator) Validate(ctx context.Context, tok models.Token) Validation {
	profile, err := v.svc.Profile(ctx, tok.AccessToken)
	if err != nil {
		if errors.Is(err, shared.ErrTokenInvalid) {
			v.logger.Info("provider rejected token", "error", err)
			return Validation{OK: false, Reason: ReasonInvalid}
		}
		v.logger.Warn("validation request failed", "error", err)
		return Validation{OK: false, Reason: ReasonNetwork}
	}

	name := profile.User.FirstName
	if name == "" {
		name = profile.User.DisplayName
	}

	device := &models.LinkedDevice{
		ID:   profile.User.EncodedID,
		Name: fmt.Sprintf("%s's Fitbit", name),
	}

	if devices, err := v.svc.Devices(ctx, tok.AccessToken); err != nil {
		v.logger.Debug("device lookup failed, keeping profile-only record", "error", err)
	} else if len(devices) > 0 {
		device.Model = devices[0].DeviceVersion
		level := devices[0].BatteryLevel
		device.BatteryLevel = &level
	}

	return Validation{OK: true, Device: device}
}
