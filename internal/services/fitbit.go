// Fitbit Web API client for the implicit-grant auth bridge
//
// Endpoint shapes based on https://dev.fitbit.com/build/reference/web-api/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/fitlink/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL = "https://www.fitbit.com/oauth2/authorize"
	defaultAPIBase = "https://api.fitbit.com"
)

// FitbitProfile represents the authenticated user's profile document.
type FitbitProfile struct {
	User FitbitUser `json:"user"`
}

// FitbitUser carries the profile fields the bridge consumes.
type FitbitUser struct {
	EncodedID   string `json:"encodedId"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	FullName    string `json:"fullName"`
}

// FitbitDevice represents one tracker registered to the account.
type FitbitDevice struct {
	ID            string `json:"id"`
	DeviceVersion string `json:"deviceVersion"`
	Battery       string `json:"battery"`
	BatteryLevel  int    `json:"batteryLevel"`
	Type          string `json:"type"`
}

// FitbitService builds implicit-grant authorization URLs and performs
// bearer-authenticated API calls. There is no token exchange: the implicit
// grant returns the access token directly in the redirect fragment, so the
// oauth2 config carries no client secret.
type FitbitService struct {
	config     *oauth2.Config
	httpClient *http.Client
	apiBase    string
	expiresIn  int64
}

// NewFitbitService creates a FitbitService from the provider settings.
func NewFitbitService(cfg shared.FitbitConfig) (*FitbitService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: fitbit client_id", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: fitbit redirect_uri", shared.ErrMissingCredentials)
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	config := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      strings.Fields(cfg.Scope),
		Endpoint:    oauth2.Endpoint{AuthURL: authURL},
	}

	return &FitbitService{
		config:     config,
		httpClient: http.DefaultClient,
		apiBase:    apiBase,
		expiresIn:  cfg.ExpiresIn,
	}, nil
}

func (s *FitbitService) Name() string {
	return "Fitbit"
}

// AuthURL returns the provider authorization URL for the implicit grant.
//
// response_type=token replaces the oauth2 package's default code flow, and
// the requested token lifetime rides along as expires_in.
func (s *FitbitService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("expires_in", strconv.FormatInt(s.expiresIn, 10)),
	)
}

// RequestedLifetime returns the configured token lifetime in seconds, used
// as the fallback when a delivery arrives without expires_in.
func (s *FitbitService) RequestedLifetime() int64 {
	return s.expiresIn
}

// SetHTTPClient replaces the underlying transport. Tests inject a mock
// round-tripper through this.
func (s *FitbitService) SetHTTPClient(c *http.Client) {
	s.httpClient = c
}

// Profile retrieves the authenticated user's profile with the token as a
// bearer credential.
func (s *FitbitService) Profile(ctx context.Context, token string) (*FitbitProfile, error) {
	var profile FitbitProfile
	if err := s.doRequest(ctx, token, "/1/user/-/profile.json", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Devices retrieves the trackers registered to the account.
func (s *FitbitService) Devices(ctx context.Context, token string) ([]FitbitDevice, error) {
	var devices []FitbitDevice
	if err := s.doRequest(ctx, token, "/1/user/-/devices.json", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// doRequest performs a bearer-authenticated GET against the Fitbit API.
//
// 401 maps to [shared.ErrTokenInvalid]; transport failures and other
// non-2xx statuses map to [shared.ErrNetworkFailure] so callers never
// clear a token on an ambiguous outcome.
func (s *FitbitService) doRequest(ctx context.Context, token, endpoint string, result any) error {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	client := oauth2.NewClient(ctx, ts)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: status 401", shared.ErrTokenInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: fitbit API status %d", shared.ErrNetworkFailure, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
