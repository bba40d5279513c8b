package signup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNotify(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	err := w.Notify(context.Background(), Request{
		RoomID:                "!acorn:example.com",
		Email:                 "alice@example.com",
		CommunityInformation:  "Community Name: Acorn Collective",
		TokenSetupInformation: "name: Acorn, symbol: ACORN",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	content := payload["content"]
	for _, want := range []string{
		"!acorn:example.com",
		"Email: alice@example.com",
		"Community: Community Name: Acorn Collective",
		"Token Setup Information: name: Acorn, symbol: ACORN",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q: %q", want, content)
		}
	}
}

func TestNotify_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	err := w.Notify(context.Background(), Request{RoomID: "!r:example.com"})
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Fatalf("err = %v, want HTTP 500 rejection", err)
	}
}
