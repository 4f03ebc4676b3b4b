package funding

import (
	"net/url"
	"testing"
)

func stateFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("authorize url %s has no state", raw)
	}
	return state
}
