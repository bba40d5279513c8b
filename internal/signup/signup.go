// Package signup forwards community onboarding requests to the operator's
// chat webhook. The bot itself cannot provision communities; it collects the
// request and hands it to the team.
package signup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Request is one onboarding submission.
type Request struct {
	// RoomID identifies where the request came from.
	RoomID                string
	Email                 string
	CommunityInformation  string
	TokenSetupInformation string
}

// Webhook posts signup requests to a chat webhook endpoint.
type Webhook struct {
	url  string
	http *http.Client
}

// NewWebhook returns a Webhook for url. Pass 0 for the default timeout.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Webhook{url: url, http: &http.Client{Timeout: timeout}}
}

// Notify renders the request and posts it. Chat webhooks accept a single
// content field, so the request is flattened into markdown text.
func (w *Webhook) Notify(ctx context.Context, req Request) error {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** has requested access to the community wallet.\n", req.RoomID)
	if req.Email != "" {
		fmt.Fprintf(&b, "\nEmail: %s", req.Email)
	}
	if req.CommunityInformation != "" {
		fmt.Fprintf(&b, "\nCommunity: %s", req.CommunityInformation)
	}
	if req.TokenSetupInformation != "" {
		fmt.Fprintf(&b, "\nToken Setup Information: %s", req.TokenSetupInformation)
	}

	body, err := json.Marshal(map[string]string{"content": b.String()})
	if err != nil {
		return fmt.Errorf("signup: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("signup: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("signup: webhook rejected the request (HTTP %d)", resp.StatusCode)
	}
	return nil
}
