package shared

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a == b {
		t.Error("consecutive IDs must differ")
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(a) != 32 {
		t.Errorf("unexpected nonce length %d", len(a))
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Errorf("nonce is not hex: %v", err)
	}
	if a == b {
		t.Error("consecutive nonces must differ")
	}
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]string{"status": "connected"}

	compact, err := MarshalJSON(data, false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(compact), "\n") {
		t.Error("compact output must not contain newlines")
	}

	pretty, err := MarshalJSON(data, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(pretty), "\n  ") {
		t.Error("pretty output must be indented")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "key") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fitlink.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}
	logger.Info("to file")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(content), "to file") {
		t.Errorf("unexpected file content %q", content)
	}
}
