package onchain

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"communibot/internal/community"
)

// The bundler service submits and confirms on-chain operations on the bot's
// behalf. It is consumed as an opaque async operation: one request per
// recipient, returning a transaction hash or failing. Requests are
// authenticated with an HMAC-SHA256 signature over the body, derived from the
// bot's signing key.

// Bundler is an HTTP client for community bundler endpoints.
type Bundler struct {
	signingKey []byte
	http       *http.Client
}

// NewBundler returns a Bundler that signs requests with signingKey.
func NewBundler(signingKey string, timeout time.Duration) *Bundler {
	if timeout == 0 {
		timeout = defaultRPCTimeout
	}
	return &Bundler{
		signingKey: []byte(signingKey),
		http:       &http.Client{Timeout: timeout},
	}
}

// operation is the wire envelope submitted to a bundler endpoint.
type operation struct {
	Kind        string `json:"kind"` // transfer | mint | burn | add_owner
	Token       string `json:"token"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Amount      string `json:"amount,omitempty"` // token smallest unit, decimal string
	Description string `json:"description,omitempty"`
}

type submitResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

// Transfer submits a token transfer from the sender's account to recipient.
func (b *Bundler) Transfer(ctx context.Context, com *community.Community, from, to string, amount *big.Int, message string) (string, error) {
	return b.submit(ctx, com, operation{
		Kind:        "transfer",
		Token:       com.Token.Address,
		From:        from,
		To:          to,
		Amount:      amount.String(),
		Description: message,
	})
}

// Mint submits a mint of new tokens to recipient.
func (b *Bundler) Mint(ctx context.Context, com *community.Community, to string, amount *big.Int, message string) (string, error) {
	return b.submit(ctx, com, operation{
		Kind:        "mint",
		Token:       com.Token.Address,
		To:          to,
		Amount:      amount.String(),
		Description: message,
	})
}

// Burn submits a burn of tokens from the given account.
func (b *Bundler) Burn(ctx context.Context, com *community.Community, from string, amount *big.Int, message string) (string, error) {
	return b.submit(ctx, com, operation{
		Kind:        "burn",
		Token:       com.Token.Address,
		From:        from,
		Amount:      amount.String(),
		Description: message,
	})
}

// AddOwner submits an owner addition for the card account bound to
// hashedUserKey, granting owner control over it.
func (b *Bundler) AddOwner(ctx context.Context, com *community.Community, hashedUserKey, owner string) (string, error) {
	return b.submit(ctx, com, operation{
		Kind:  "add_owner",
		Token: com.Token.Address,
		From:  hashedUserKey,
		To:    owner,
	})
}

func (b *Bundler) submit(ctx context.Context, com *community.Community, op operation) (string, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("bundler: marshal operation: %w", err)
	}

	url := strings.TrimRight(com.BundlerURL, "/") + "/ops"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("bundler: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", b.sign(body))

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bundler: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("bundler: read response: %w", err)
	}

	var sr submitResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", fmt.Errorf("bundler: decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || sr.Error != "" {
		return "", fmt.Errorf("bundler: operation rejected (HTTP %d): %s", resp.StatusCode, sr.Error)
	}
	if sr.TxHash == "" {
		return "", fmt.Errorf("bundler: no transaction hash in response")
	}
	return sr.TxHash, nil
}

// sign returns the hex HMAC-SHA256 of body under the signing key.
func (b *Bundler) sign(body []byte) string {
	mac := hmac.New(sha256.New, b.signingKey)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Transfer describes one historical token transfer reported by a bundler.
type Transfer struct {
	TxHash    string    `json:"tx_hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Transfers lists recent token transfers touching address, most recent first.
func (b *Bundler) Transfers(ctx context.Context, com *community.Community, address string, limit int) ([]Transfer, error) {
	url := fmt.Sprintf("%s/logs/transfers/%s/%s?limit=%d",
		strings.TrimRight(com.BundlerURL, "/"), com.Token.Address, address, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bundler: create request: %w", err)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bundler: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bundler: transfers query failed (HTTP %d)", resp.StatusCode)
	}

	var out struct {
		Transfers []Transfer `json:"transfers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bundler: decode transfers: %w", err)
	}
	return out.Transfers, nil
}
