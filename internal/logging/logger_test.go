package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewAddsServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, Options{Level: "debug", App: "wallet", Env: "production"})
	logger.Debug("hello", "k", "v")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if line["app"] != "wallet" || line["env"] != "production" || line["k"] != "v" {
		t.Fatalf("unexpected attributes: %v", line)
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, Options{Level: "chatty", Text: true})
	logger.Debug("dropped")
	logger.Info("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("unexpected output %q", out)
	}
}
