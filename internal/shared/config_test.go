package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.App.Scheme == "" {
		t.Error("default config must carry an app scheme")
	}
	if cfg.Credentials.Fitbit.RedirectURI == "" {
		t.Error("default config must carry the canonical redirect URI")
	}
	if cfg.Credentials.Fitbit.ExpiresIn <= 0 {
		t.Error("default config must request a positive token lifetime")
	}
	if cfg.Bridge.Port == 0 {
		t.Error("default config must carry the bridge port")
	}
	if cfg.Dispatch.MaxAttempts <= 0 {
		t.Error("default config must bound the dispatch attempts")
	}
	if len(cfg.App.KnownDomains) == 0 {
		t.Error("default config must list the known redirect domains")
	}
}

func TestDefaultConfigWithMalformedEnvironment(t *testing.T) {
	t.Setenv("FITLINK_BRIDGE_PORT", "not-a-number")
	t.Setenv("FITLINK_APP_SCHEME", "override")

	cfg := DefaultConfig()
	if cfg.Bridge.Port != 3000 {
		t.Errorf("malformed value must keep the embedded default, got %d", cfg.Bridge.Port)
	}
	if cfg.App.Scheme != "override" {
		t.Errorf("valid overrides must still apply, got %q", cfg.App.Scheme)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Reads TOML File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[credentials.fitbit]
client_id = "CLIENT"
redirect_uri = "http://127.0.0.1:3000/auth"
expires_in = 3600

[app]
scheme = "moodtunes"

[bridge]
host = "0.0.0.0"
port = 8080
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.Credentials.Fitbit.ClientID != "CLIENT" {
			t.Errorf("unexpected client ID %q", cfg.Credentials.Fitbit.ClientID)
		}
		if cfg.Bridge.Host != "0.0.0.0" || cfg.Bridge.Port != 8080 {
			t.Errorf("unexpected bridge settings %+v", cfg.Bridge)
		}
	})

	t.Run("Environment Overrides File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[credentials.fitbit]
client_id = "FROM_FILE"
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		t.Setenv("FITLINK_FITBIT_CLIENT_ID", "FROM_ENV")
		t.Setenv("FITLINK_BRIDGE_PORT", "9999")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.Credentials.Fitbit.ClientID != "FROM_ENV" {
			t.Errorf("environment must win, got %q", cfg.Credentials.Fitbit.ClientID)
		}
		if cfg.Bridge.Port != 9999 {
			t.Errorf("environment must win, got port %d", cfg.Bridge.Port)
		}
	})

	t.Run("Missing File Is An Error", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Error("expected an error for a missing file")
		}
	})
}

func TestCreateConfigFile(t *testing.T) {
	t.Run("Writes Example Config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("created file did not load: %v", err)
		}
		if cfg.App.Scheme == "" {
			t.Error("created config must carry the app scheme")
		}
	})

	t.Run("Refuses To Overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("# existing"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := CreateConfigFile(path); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Credentials.Fitbit.ClientID = "SAVED"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("saved file did not load: %v", err)
	}
	if loaded.Credentials.Fitbit.ClientID != "SAVED" {
		t.Errorf("roundtrip lost the client ID, got %q", loaded.Credentials.Fitbit.ClientID)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Credentials.Fitbit.ClientID = "CLIENT"
		return cfg
	}

	t.Run("Complete Config Passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Missing Client ID", func(t *testing.T) {
		cfg := valid()
		cfg.Credentials.Fitbit.ClientID = ""
		if err := cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Missing Redirect URI", func(t *testing.T) {
		cfg := valid()
		cfg.Credentials.Fitbit.RedirectURI = ""
		if err := cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Non Positive Lifetime", func(t *testing.T) {
		cfg := valid()
		cfg.Credentials.Fitbit.ExpiresIn = 0
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Missing Scheme", func(t *testing.T) {
		cfg := valid()
		cfg.App.Scheme = ""
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
