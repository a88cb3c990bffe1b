package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/fitlink/internal/models"
	"github.com/desertthunder/fitlink/internal/shared"
)

// Client polls a bridge instance's pending endpoint from the app side.
// It satisfies the orchestrator's Poller contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a poll client for the bridge at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Poll asks the bridge for a grant parked under the state nonce. Returns
// nil with no error when nothing is parked yet; the caller keeps polling.
func (c *Client) Poll(ctx context.Context, state string) (*models.Delivery, error) {
	endpoint := fmt.Sprintf("%s/auth/pending?state=%s", c.baseURL, url.QueryEscape(state))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: pending poll status %d", shared.ErrNetworkFailure, resp.StatusCode)
	}

	var pending pendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		return nil, fmt.Errorf("failed to decode pending response: %w", err)
	}

	return &models.Delivery{
		Channel:     models.ChannelPolledStore,
		AccessToken: pending.AccessToken,
		ExpiresIn:   pending.ExpiresIn,
		UserID:      pending.UserID,
		Scope:       pending.Scope,
	}, nil
}
