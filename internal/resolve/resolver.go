// Package resolve classifies raw user-supplied recipient strings and resolves
// them to canonical on-chain addresses.
//
// Three reference kinds are recognised, tried in a fixed precedence order:
// platform mentions (bridge-ghost style, a numeric user ID wrapped in <@...>),
// domain names (ENS), and raw 0x address literals. The precedence is an
// explicit, testable property of Classify rather than implicit code order.
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	"communibot/internal/community"
	"communibot/internal/progress"
)

// Kind is the classification of a raw recipient string.
type Kind int

const (
	// KindMention is a platform user mention such as <@1234567890>.
	KindMention Kind = iota
	// KindDomain is a domain-name reference such as alice.eth.
	KindDomain
	// KindAddress is everything else, validated as a 0x literal downstream.
	KindAddress
)

var (
	// mentionPattern is deliberately loose about the payload: the wrapper
	// identifies a mention, digit extraction decides whether it is usable.
	mentionPattern = regexp.MustCompile(`^<@!?[^<>]*>$`)
	// domainPattern is a conservative heuristic: label(.label)+ with an
	// alphabetic final label of length >= 2. It will match some non-domain
	// strings; that ambiguity is accepted.
	domainPattern  = regexp.MustCompile(`^[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,}$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	digitsPattern  = regexp.MustCompile(`[0-9]+`)
)

// Classify returns the reference kind for raw. First match wins:
// mention before domain before raw address.
func Classify(raw string) Kind {
	switch {
	case mentionPattern.MatchString(raw):
		return KindMention
	case domainPattern.MatchString(raw):
		return KindDomain
	default:
		return KindAddress
	}
}

// IsReference reports whether raw plausibly names a recipient: a mention, a
// domain name, or a 0x address literal. Unlike Classify it does not treat
// arbitrary words as address candidates.
func IsReference(raw string) bool {
	return mentionPattern.MatchString(raw) ||
		domainPattern.MatchString(raw) ||
		addressPattern.MatchString(raw)
}

// IsAddress reports whether raw is a 0x address literal.
func IsAddress(raw string) bool {
	return addressPattern.MatchString(raw)
}

// FailReason identifies why a reference could not be resolved.
type FailReason string

const (
	FailNone                 FailReason = ""
	FailInvalidUserID        FailReason = "invalid_user_id"
	FailAccountNotFound      FailReason = "account_not_found"
	FailNameNotFound         FailReason = "name_not_found"
	FailInvalidAddressFormat FailReason = "invalid_address_format"
)

// Profile is optional display metadata for a resolved address.
type Profile struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Reference is the result of resolving one raw recipient string. A resolved
// reference has a non-empty Address; a failed one has a Reason. UserID is set
// only for mention-derived references and enables private follow-up messages.
type Reference struct {
	Raw     string
	Kind    Kind
	Address string
	UserID  string
	Profile *Profile
	Reason  FailReason
}

// Resolved reports whether the reference carries a canonical address.
func (r Reference) Resolved() bool { return r.Address != "" }

// DisplayName returns the best available name for the reference: profile
// name, then profile username, then the raw input.
func (r Reference) DisplayName() string {
	if r.Profile != nil {
		if r.Profile.Name != "" {
			return r.Profile.Name
		}
		if r.Profile.Username != "" {
			return r.Profile.Username
		}
	}
	return r.Raw
}

// CardDirectory maps a hashed platform user key to the bound account address
// within a community. An empty address means no account is bound.
type CardDirectory interface {
	CardAddress(ctx context.Context, com *community.Community, hashedUserKey string) (string, error)
}

// NameService resolves a domain name to an address via the given RPC
// endpoint. An empty address means the name does not resolve.
type NameService interface {
	ResolveName(ctx context.Context, rpcURL, domain string) (string, error)
}

// ProfileDirectory looks up display metadata for an address. A nil profile
// means none is published.
type ProfileDirectory interface {
	Profile(ctx context.Context, com *community.Community, address string) (*Profile, error)
}

// Resolver resolves raw recipient strings to canonical addresses.
//
// NameRPCURL is the endpoint used for domain-name resolution; when empty,
// resolving a domain reference is a configuration error for the whole
// command, not a per-item failure. Profiles is optional: when nil, raw
// address references are simply not enriched.
type Resolver struct {
	Cards      CardDirectory
	Names      NameService
	Profiles   ProfileDirectory
	NameRPCURL string
}

// ErrNameServiceNotConfigured is returned when a domain reference is
// encountered but no name-resolution endpoint is configured.
var ErrNameServiceNotConfigured = fmt.Errorf("name resolution endpoint is not configured")

// HashUserID returns the deterministic one-way key for a platform user ID:
// 0x-prefixed keccak-256 of its UTF-8 bytes.
func HashUserID(userID string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(userID))
	return fmt.Sprintf("0x%x", h.Sum(nil))
}

// Mention formats a platform user ID back into mention syntax.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// Resolve classifies raw and resolves it to a Reference. Every failure path
// appends one human-readable diagnostic line to rep before returning, keeping
// the user-visible log synchronized with resolution attempts mid-batch.
//
// The returned error is non-nil only for configuration failures that are
// fatal for the whole command (a missing name-resolution endpoint); ordinary
// per-item failures come back as an unresolved Reference.
func (r *Resolver) Resolve(ctx context.Context, raw string, com *community.Community, rep *progress.Report) (Reference, error) {
	raw = strings.TrimSpace(raw)
	ref := Reference{Raw: raw, Kind: Classify(raw)}

	switch ref.Kind {
	case KindMention:
		userID := digitsPattern.FindString(raw)
		if userID == "" {
			ref.Reason = FailInvalidUserID
			rep.Append(ctx, "Invalid user id")
			return ref, nil
		}
		addr, err := r.Cards.CardAddress(ctx, com, HashUserID(userID))
		if err != nil {
			ref.Reason = FailAccountNotFound
			rep.Appendf(ctx, "Could not look up an account for %s", raw)
			return ref, nil
		}
		if addr == "" {
			ref.Reason = FailAccountNotFound
			rep.Append(ctx, "Could not find an account to send to!")
			return ref, nil
		}
		ref.Address = addr
		ref.UserID = userID
		return ref, nil

	case KindDomain:
		if r.NameRPCURL == "" {
			return ref, ErrNameServiceNotConfigured
		}
		addr, err := r.Names.ResolveName(ctx, r.NameRPCURL, raw)
		if err != nil || addr == "" {
			ref.Reason = FailNameNotFound
			rep.Append(ctx, "Could not find an ENS name for the domain")
			return ref, nil
		}
		ref.Address = addr
		return ref, nil

	default:
		if !addressPattern.MatchString(raw) {
			ref.Reason = FailInvalidAddressFormat
			rep.Append(ctx, "Invalid format: it's either a mention, a domain name or an address")
			return ref, nil
		}
		ref.Address = raw
		if r.Profiles != nil {
			// Best effort: a missing or unreachable profile directory only
			// means the success line falls back to the raw input.
			if p, err := r.Profiles.Profile(ctx, com, raw); err == nil {
				ref.Profile = p
			}
		}
		return ref, nil
	}
}
