package commands

// onboarding.go covers account lifecycle commands: requesting a new community
// (signup) and granting an external wallet control over the sender's card
// account (add-owner).

import (
	"context"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"

	"communibot/internal/resolve"
	"communibot/internal/signup"
)

const signupUsage = "usage: signup <email> | <community name> | <description> | <website> | <token details>"

// Signup handles `signup <email> | <name> | <description> | <website> |
// <token details>` and forwards the request to the operator's webhook.
func (h *Handlers) Signup(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	if h.Signups == nil {
		return "signup is not configured", nil
	}

	raw := strings.TrimSpace(strings.TrimPrefix(cmd.RawText, cmd.Name))
	parts := strings.Split(raw, "|")
	if raw == "" || len(parts) != 5 {
		return "", fmt.Errorf("%s", signupUsage)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return "", fmt.Errorf("%s", signupUsage)
		}
	}

	req := signup.Request{
		RoomID: evt.RoomID.String(),
		Email:  parts[0],
		CommunityInformation: fmt.Sprintf("Community Name: %s\nCommunity Description: %s\nWebsite: <%s>",
			parts[1], parts[2], parts[3]),
		TokenSetupInformation: parts[4],
	}
	if err := h.Signups.Notify(ctx, req); err != nil {
		return "", fmt.Errorf("failed to send signup request: %w", err)
	}

	dm := "Your signup request has been sent successfully. The team will get back to you soon."
	if h.SignupInvite != "" {
		dm += fmt.Sprintf("\n\nJoin %s to stay updated.", h.SignupInvite)
	}
	// The private confirmation is best effort; the room reply covers it.
	_ = h.Messenger.SendDirectMessage(ctx, platformID(evt.Sender.String()), dm)
	return "✅ signup request sent", nil
}

// AddOwner handles `add-owner <address>`: for every community in the room's
// scope, the sender's card account gains the given address as an owner.
// Accounts that already list the owner are skipped.
func (h *Handlers) AddOwner(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	if len(cmd.Args) != 1 {
		return "", fmt.Errorf("usage: add-owner <address>")
	}
	owner := cmd.Args[0]
	if !resolve.IsAddress(owner) {
		return "", fmt.Errorf("%q is not a 0x address", owner)
	}

	roomID := evt.RoomID.String()
	sender := evt.Sender.String()
	coms := h.Catalog.List(roomID)
	if len(coms) == 0 {
		return "no communities are configured for this room", nil
	}

	rep := h.liveReport(roomID)
	for _, com := range coms {
		rep.SetHeader(ctx, fmt.Sprintf("⚙️ adding owner to %s", com.Name))

		account, err := h.actorAccount(ctx, com, sender)
		if err != nil {
			return "", err
		}

		if already, err := h.Owners.IsSafeOwner(ctx, com, account, owner); err == nil && already {
			rep.Appendf(ctx, "✅ %s: %s already controls %s", com.Alias, shortAddress(owner), shortAddress(account))
			continue
		}

		if !h.HasSigningKey {
			return "", fmt.Errorf("signing key not configured")
		}

		hash, err := h.OwnerExec.AddOwner(ctx, com, resolve.HashUserID(platformID(sender)), owner)
		if err != nil {
			rep.Appendf(ctx, "❌ failed to add owner to %s: %v", com.Alias, err)
			continue
		}
		if link := com.TxURL(hash); link != "" {
			rep.Appendf(ctx, "✅ added %s as an owner of your %s account (%s)", shortAddress(owner), com.Alias, link)
		} else {
			rep.Appendf(ctx, "✅ added %s as an owner of your %s account", shortAddress(owner), com.Alias)
		}
	}
	rep.SetHeader(ctx, "✅ done")
	return "", nil
}
