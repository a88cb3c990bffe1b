package tokenstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/fitlink/internal/models"
	"github.com/desertthunder/fitlink/internal/services"
	"github.com/desertthunder/fitlink/internal/shared"
	testutils "github.com/desertthunder/fitlink/internal/testing"
)

func newTestValidator(t *testing.T, rt http.RoundTripper) *Validator {
	t.Helper()

	svc, err := services.NewFitbitService(shared.FitbitConfig{
		ClientID:    "CLIENT",
		RedirectURI: "http://127.0.0.1:3000/auth",
		ExpiresIn:   3600,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	svc.SetHTTPClient(&http.Client{Transport: rt})

	return NewValidator(svc, shared.NewLogger(io.Discard))
}

func testToken(t *testing.T) models.Token {
	t.Helper()
	tok, err := models.NewToken("TOK1", 3600, "U9", "profile", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestValidator(t *testing.T) {
	t.Run("Accepted Token Yields Device From Profile", func(t *testing.T) {
		v := newTestValidator(t, testutils.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			switch {
			case strings.Contains(r.URL.Path, "profile.json"):
				return testutils.JSONResponse(200, `{"user":{"encodedId":"U9","firstName":"Ann","displayName":"AnnD"}}`), nil
			case strings.Contains(r.URL.Path, "devices.json"):
				return testutils.JSONResponse(200, `[{"id":"D1","deviceVersion":"Versa 2","batteryLevel":72,"type":"TRACKER"}]`), nil
			}
			return testutils.JSONResponse(404, `{}`), nil
		}))

		result := v.Validate(context.Background(), testToken(t))
		if !result.OK {
			t.Fatalf("expected validation to succeed, got reason %v", result.Reason)
		}
		if result.Device == nil {
			t.Fatal("expected a derived device")
		}
		if result.Device.ID != "U9" {
			t.Errorf("unexpected device ID %s", result.Device.ID)
		}
		if result.Device.Name != "Ann's Fitbit" {
			t.Errorf("unexpected device name %s", result.Device.Name)
		}
		if result.Device.Model != "Versa 2" {
			t.Errorf("unexpected device model %s", result.Device.Model)
		}
		if result.Device.BatteryLevel == nil || *result.Device.BatteryLevel != 72 {
			t.Errorf("unexpected battery level %v", result.Device.BatteryLevel)
		}
	})

	t.Run("Display Name Fallback", func(t *testing.T) {
		v := newTestValidator(t, testutils.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			if strings.Contains(r.URL.Path, "profile.json") {
				return testutils.JSONResponse(200, `{"user":{"encodedId":"U9","displayName":"AnnD"}}`), nil
			}
			return testutils.JSONResponse(200, `[]`), nil
		}))

		result := v.Validate(context.Background(), testToken(t))
		if !result.OK {
			t.Fatal("expected validation to succeed")
		}
		if result.Device.Name != "AnnD's Fitbit" {
			t.Errorf("unexpected device name %s", result.Device.Name)
		}
	})

	t.Run("Rejected Token Reports ReasonInvalid", func(t *testing.T) {
		v := newTestValidator(t, testutils.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			return testutils.JSONResponse(401, `{"errors":[{"errorType":"invalid_token"}]}`), nil
		}))

		result := v.Validate(context.Background(), testToken(t))
		if result.OK {
			t.Fatal("expected validation to fail")
		}
		if result.Reason != ReasonInvalid {
			t.Errorf("expected ReasonInvalid, got %v", result.Reason)
		}
	})

	t.Run("Transport Failure Reports ReasonNetwork", func(t *testing.T) {
		v := newTestValidator(t, testutils.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}))

		result := v.Validate(context.Background(), testToken(t))
		if result.OK {
			t.Fatal("expected validation to fail")
		}
		if result.Reason != ReasonNetwork {
			t.Errorf("expected ReasonNetwork, got %v", result.Reason)
		}
	})

	t.Run("Device Lookup Failure Keeps Profile Record", func(t *testing.T) {
		v := newTestValidator(t, testutils.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			if strings.Contains(r.URL.Path, "profile.json") {
				return testutils.JSONResponse(200, `{"user":{"encodedId":"U9","firstName":"Ann"}}`), nil
			}
			return testutils.JSONResponse(503, `{}`), nil
		}))

		result := v.Validate(context.Background(), testToken(t))
		if !result.OK {
			t.Fatal("device lookup failures must not fail validation")
		}
		if result.Device == nil || result.Device.ID != "U9" {
			t.Fatalf("expected profile-derived device, got %+v", result.Device)
		}
		if result.Device.Model != "" || result.Device.BatteryLevel != nil {
			t.Errorf("device details must stay empty when lookup fails: %+v", result.Device)
		}
	})
}
