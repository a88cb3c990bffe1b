package tokenstore

import (
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/fitlink/internal/models"
	"github.com/desertthunder/fitlink/internal/shared"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return NewStore(db, shared.NewLogger(io.Discard)), db
}

func mustToken(t *testing.T, access string, lifetime int64) models.Token {
	t.Helper()
	tok, err := models.NewToken(access, lifetime, "U9", "profile", time.Now())
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	return tok
}

func TestStore(t *testing.T) {
	t.Run("Store And Load Roundtrip", func(t *testing.T) {
		s, _ := newTestStore(t)
		tok := mustToken(t, "TOK1", 3600)

		if err := s.Store(tok); err != nil {
			t.Fatalf("store failed: %v", err)
		}

		loaded, err := s.Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("expected a stored token")
		}
		if loaded.AccessToken != "TOK1" || loaded.UserID != "U9" || loaded.Scope != "profile" {
			t.Errorf("unexpected token %+v", loaded)
		}
	})

	t.Run("Load With Nothing Stored", func(t *testing.T) {
		s, _ := newTestStore(t)
		loaded, err := s.Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if loaded != nil {
			t.Errorf("expected no token, got %+v", loaded)
		}
	})

	t.Run("Replacement Is Total", func(t *testing.T) {
		s, _ := newTestStore(t)
		first, err := models.NewToken("OLD", 3600, "U1", "activity profile", time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Store(first); err != nil {
			t.Fatal(err)
		}

		second, err := models.NewToken("NEW", 60, "", "", time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Store(second); err != nil {
			t.Fatal(err)
		}

		loaded, err := s.Load()
		if err != nil {
			t.Fatal(err)
		}
		if loaded.AccessToken != "NEW" {
			t.Errorf("expected replacement token, got %s", loaded.AccessToken)
		}
		if loaded.UserID != "" || loaded.Scope != "" {
			t.Errorf("old fields must not survive replacement: %+v", loaded)
		}
	})

	t.Run("Rejects Empty Access Token", func(t *testing.T) {
		s, _ := newTestStore(t)
		if err := s.Store(models.Token{ExpiresAt: time.Now().Add(time.Hour)}); err == nil {
			t.Error("expected error persisting an empty access token")
		}
	})

	t.Run("IsValid Uses Strict Expiry", func(t *testing.T) {
		s, _ := newTestStore(t)
		tok := mustToken(t, "TOK2", 100)
		if err := s.Store(tok); err != nil {
			t.Fatal(err)
		}

		if !s.IsValid(time.Now()) {
			t.Error("expected token to be valid immediately after store")
		}
		if s.IsValid(tok.ExpiresAt) {
			t.Error("now == expiresAt must count as expired")
		}
		if s.IsValid(tok.ExpiresAt.Add(time.Minute)) {
			t.Error("expected token to be invalid after expiry")
		}
	})

	t.Run("IsValid With Nothing Stored", func(t *testing.T) {
		s, _ := newTestStore(t)
		if s.IsValid(time.Now()) {
			t.Error("empty store must not report a valid token")
		}
	})

	t.Run("Clear Removes Token And Device", func(t *testing.T) {
		s, _ := newTestStore(t)
		if err := s.Store(mustToken(t, "TOK3", 3600)); err != nil {
			t.Fatal(err)
		}
		level := 80
		if err := s.SaveDevice(models.LinkedDevice{ID: "U9", Name: "Ann's Fitbit", BatteryLevel: &level, Model: "Versa 2"}); err != nil {
			t.Fatal(err)
		}

		if err := s.Clear(); err != nil {
			t.Fatalf("clear failed: %v", err)
		}

		if tok, _ := s.Load(); tok != nil {
			t.Error("token must be gone after clear")
		}
		if dev, _ := s.LoadDevice(); dev != nil {
			t.Error("device must be gone after clear")
		}
	})

	t.Run("Token Without Device Is Not An Error", func(t *testing.T) {
		s, _ := newTestStore(t)
		if err := s.Store(mustToken(t, "TOK4", 3600)); err != nil {
			t.Fatal(err)
		}

		dev, err := s.LoadDevice()
		if err != nil {
			t.Fatalf("device load must not fail when absent: %v", err)
		}
		if dev != nil {
			t.Errorf("expected no device, got %+v", dev)
		}
	})

	t.Run("Device Roundtrip", func(t *testing.T) {
		s, _ := newTestStore(t)
		level := 55
		want := models.LinkedDevice{ID: "U9", Name: "Ann's Fitbit", BatteryLevel: &level, Model: "Charge 5"}
		if err := s.SaveDevice(want); err != nil {
			t.Fatal(err)
		}

		got, err := s.LoadDevice()
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Fatal("expected a device record")
		}
		if got.ID != want.ID || got.Name != want.Name || got.Model != want.Model {
			t.Errorf("unexpected device %+v", got)
		}
		if got.BatteryLevel == nil || *got.BatteryLevel != 55 {
			t.Errorf("unexpected battery level %v", got.BatteryLevel)
		}
	})
}
