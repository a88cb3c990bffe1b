package extract

import (
	"testing"
)

func TestExtract(t *testing.T) {
	t.Run("Equivalent Encodings Yield Identical Grants", func(t *testing.T) {
		urls := map[string]string{
			"hash":               "https://moodtunes-app.github.io/auth#access_token=abc123&expires_in=86400&user_id=U1",
			"query":              "https://moodtunes-app.github.io/auth?access_token=abc123&expires_in=86400&user_id=U1",
			"malformed ampersand": "https://moodtunes-app.github.io/auth&access_token=abc123&expires_in=86400&user_id=U1",
		}

		for name, u := range urls {
			t.Run(name, func(t *testing.T) {
				res := Extract(u)
				if res.Kind != TokenFound {
					t.Fatalf("expected token for %s encoding, got kind %d", name, res.Kind)
				}
				if res.Grant.AccessToken != "abc123" {
					t.Errorf("expected access token abc123, got %s", res.Grant.AccessToken)
				}
				if res.Grant.ExpiresIn != 86400 {
					t.Errorf("expected expires_in 86400, got %d", res.Grant.ExpiresIn)
				}
				if res.Grant.UserID != "U1" {
					t.Errorf("expected user_id U1, got %s", res.Grant.UserID)
				}
			})
		}
	})

	t.Run("Provider Error Short-Circuits", func(t *testing.T) {
		res := Extract("https://moodtunes-app.github.io/auth#error=invalid_request&error_description=Foo+bar&access_token=should_not_extract")
		if res.Kind != ProviderError {
			t.Fatalf("expected provider error, got kind %d", res.Kind)
		}
		if res.Err.Code != "invalid_request" {
			t.Errorf("expected code invalid_request, got %s", res.Err.Code)
		}
		if res.Err.Description != "Foo bar" {
			t.Errorf("expected decoded description 'Foo bar', got %q", res.Err.Description)
		}
		if res.Grant.AccessToken != "" {
			t.Error("error result must not carry a token")
		}
	})

	t.Run("Percent Decoding", func(t *testing.T) {
		res := Extract("https://moodtunes-app.github.io/auth#access_token=abc%2F123&expires_in=3600&scope=activity%20profile")
		if res.Kind != TokenFound {
			t.Fatalf("expected token, got kind %d", res.Kind)
		}
		if res.Grant.AccessToken != "abc/123" {
			t.Errorf("expected decoded token abc/123, got %s", res.Grant.AccessToken)
		}
		if res.Grant.Scope != "activity profile" {
			t.Errorf("expected decoded scope, got %q", res.Grant.Scope)
		}
	})

	t.Run("Hash Wins Over Query", func(t *testing.T) {
		res := Extract("https://example.com/auth?access_token=fromquery#access_token=fromhash&expires_in=60")
		if res.Grant.AccessToken != "fromhash" {
			t.Errorf("expected fragment token to win, got %s", res.Grant.AccessToken)
		}
	})

	t.Run("Regex Fallback For Double-Encoded URL", func(t *testing.T) {
		// No fragment, no query separator: only the raw capture tier can see this.
		res := Extract("https://example.com/auth&access_token=tok99&expires_in=120&user_id=U7")
		if res.Kind != TokenFound {
			t.Fatalf("expected token via regex fallback, got kind %d", res.Kind)
		}
		if res.Grant.AccessToken != "tok99" || res.Grant.ExpiresIn != 120 || res.Grant.UserID != "U7" {
			t.Errorf("unexpected grant %+v", res.Grant)
		}
	})

	t.Run("No Token Present", func(t *testing.T) {
		for _, u := range []string{
			"https://example.com/",
			"https://example.com/auth?state=xyz",
			"",
		} {
			if res := Extract(u); res.Kind != NoToken {
				t.Errorf("expected no token for %q, got kind %d", u, res.Kind)
			}
		}
	})

	t.Run("Invalid Lifetime Becomes Zero", func(t *testing.T) {
		res := Extract("https://example.com/auth#access_token=abc&expires_in=banana")
		if res.Kind != TokenFound {
			t.Fatalf("expected token, got kind %d", res.Kind)
		}
		if res.Grant.ExpiresIn != 0 {
			t.Errorf("expected zero lifetime for unparsable expires_in, got %d", res.Grant.ExpiresIn)
		}
	})
}

func TestFromManualInput(t *testing.T) {
	t.Run("Full Redirect URL", func(t *testing.T) {
		res := FromManualInput("  https://moodtunes-app.github.io/auth#access_token=pasted&expires_in=3600 ")
		if res.Kind != TokenFound || res.Grant.AccessToken != "pasted" {
			t.Errorf("expected pasted token from full URL, got %+v", res)
		}
	})

	t.Run("Bare Token", func(t *testing.T) {
		res := FromManualInput("eyJhbGciOi.payload.sig")
		if res.Kind != TokenFound || res.Grant.AccessToken != "eyJhbGciOi.payload.sig" {
			t.Errorf("expected bare token accepted, got %+v", res)
		}
		if res.Grant.ExpiresIn != 0 {
			t.Errorf("bare token lifetime must be unknown, got %d", res.Grant.ExpiresIn)
		}
	})

	t.Run("Garbage Input", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "not a token at all", "https://example.com/"} {
			if res := FromManualInput(raw); res.Kind != NoToken {
				t.Errorf("expected no token for %q, got kind %d", raw, res.Kind)
			}
		}
	})

	t.Run("Provider Error In Pasted URL", func(t *testing.T) {
		res := FromManualInput("https://x.io/auth#error=access_denied&error_description=User+denied")
		if res.Kind != ProviderError {
			t.Fatalf("expected provider error, got kind %d", res.Kind)
		}
		if res.Err.Description != "User denied" {
			t.Errorf("unexpected description %q", res.Err.Description)
		}
	})
}
