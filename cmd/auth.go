package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/desertthunder/fitlink/internal/auth"
	"github.com/desertthunder/fitlink/internal/models"
	"github.com/desertthunder/fitlink/internal/shared"
	"github.com/desertthunder/fitlink/internal/tokenstore"
	"github.com/urfave/cli/v3"
)

// AuthConnect starts a browser-based linking attempt and waits for it to
// finish through any of the delivery channels.
func (r *Runner) AuthConnect(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err == nil {
		if config, err := shared.LoadConfig(configPath); err == nil {
			r.config = config
		}
	}

	store, closeStore, err := r.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	orch, err := r.buildOrchestrator(store)
	if err != nil {
		return err
	}

	_, authURL, err := orch.Begin(ctx)
	if err != nil {
		return err
	}

	r.writePlain("Complete the Fitbit login in your browser.\n")
	r.writePlain("If it did not open, visit:\n  %s\n\n", authURL)

	return r.awaitOutcome(orch)
}

// awaitOutcome blocks on the orchestrator's event channel and renders each
// outcome until a terminal one arrives.
func (r *Runner) awaitOutcome(orch *auth.Orchestrator) error {
	timeout := time.Duration(r.config.Poll.Timeout)*time.Second + 30*time.Second

	for {
		select {
		case out := <-orch.Outcomes():
			switch out.Kind {
			case auth.OutcomeConnected:
				r.writePlain("✓ Fitbit connected\n")
				if out.Device != nil {
					r.writePlain("Account: %s\n", out.Device.Name)
					if out.Device.Model != "" {
						r.writePlain("Device: %s\n", out.Device.Model)
					}
				}
				return nil

			case auth.OutcomePersistenceWarning:
				r.writePlain("! The token could not be saved; reconnect will be needed after a restart.\n")

			case auth.OutcomeValidationFailed:
				if out.Reason == tokenstore.ReasonNetwork {
					r.writePlain("✗ Could not reach Fitbit to check the token. Retry, or use 'auth manual'.\n")
				} else {
					r.writePlain("✗ Fitbit rejected the token. Run 'auth connect' again.\n")
				}
				return fmt.Errorf("%w: validation failed", shared.ErrAuthFailed)

			case auth.OutcomeAuthError:
				r.writePlain("✗ Fitbit declined the authorization: %v\n", out.Err)
				return fmt.Errorf("%w: %v", shared.ErrAuthFailed, out.Err)

			case auth.OutcomeNoToken:
				r.writePlain("✗ No redirect arrived. Paste the final browser address with 'auth manual'.\n")
				return fmt.Errorf("%w: no token received", shared.ErrNoToken)
			}

		case <-time.After(timeout):
			orch.Abandon()
			return fmt.Errorf("%w: gave up waiting for the redirect", shared.ErrTimeout)
		}
	}
}

// statusReport is the auth status wire shape for --json output.
type statusReport struct {
	Connected bool                 `json:"connected"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
	UserID    string               `json:"user_id,omitempty"`
	Scope     string               `json:"scope,omitempty"`
	Device    *models.LinkedDevice `json:"device,omitempty"`
}

// AuthStatus reports the stored token's validity and the linked device.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	tok, err := store.Load()
	if err != nil {
		return err
	}

	report := statusReport{}
	if tok != nil && tok.Valid(time.Now()) {
		report.Connected = true
		report.ExpiresAt = &tok.ExpiresAt
		report.UserID = tok.UserID
		report.Scope = tok.Scope

		if device, err := store.LoadDevice(); err == nil {
			report.Device = device
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}

	if !report.Connected {
		if tok != nil {
			r.writePlain("✗ Not connected (token expired %s)\n", tok.ExpiresAt.Format(time.RFC1123))
		} else {
			r.writePlain("✗ Not connected\n")
		}
		return nil
	}

	r.writePlain("✓ Connected\n")
	r.writePlain("Expires: %s\n", report.ExpiresAt.Format(time.RFC1123))
	if report.UserID != "" {
		r.writePlain("User: %s\n", report.UserID)
	}
	if report.Device != nil {
		r.writePlain("Device: %s", report.Device.Name)
		if report.Device.Model != "" {
			r.writePlain(" (%s)", report.Device.Model)
		}
		r.writePlain("\n")
	}
	return nil
}

// AuthDisconnect removes the stored token and device record.
func (r *Runner) AuthDisconnect(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Clear(); err != nil {
		return err
	}

	return r.writePlain("✓ Disconnected\n")
}

// AuthManual feeds pasted input through the tolerant extraction tiers.
func (r *Runner) AuthManual(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("input")

	if cmd.Bool("paste") {
		text, err := clipboard.ReadAll()
		if err != nil {
			return fmt.Errorf("%w: could not read the clipboard: %v", shared.ErrInvalidInput, err)
		}
		input = text
	}

	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: provide the redirect URL or token, or use --paste", shared.ErrMissingArgument)
	}

	store, closeStore, err := r.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	orch, err := r.buildOrchestrator(store)
	if err != nil {
		return err
	}

	if err := orch.Manual(ctx, input); err != nil {
		return err
	}

	return r.awaitOutcome(orch)
}

// AuthURI routes a deep-link URI the OS handed to the app.
func (r *Runner) AuthURI(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("uri")
	if uri == "" {
		return fmt.Errorf("%w: uri argument required", shared.ErrMissingArgument)
	}

	store, closeStore, err := r.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	orch, err := r.buildOrchestrator(store)
	if err != nil {
		return err
	}

	handled, err := orch.HandleURI(ctx, uri, models.ChannelInitialURI)
	if err != nil {
		return err
	}
	if !handled {
		return r.writePlain("URI did not carry a token; nothing to do.\n")
	}

	return r.awaitOutcome(orch)
}
