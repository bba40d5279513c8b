package onchain

import (
	"context"
	"fmt"

	"communibot/internal/community"
)

// CardAddress looks up the account bound to a hashed platform user key in the
// community's card registry contract. Returns "" when no account is bound
// (the registry answers with the zero address).
//
// Implements resolve.CardDirectory.
func (c *Client) CardAddress(ctx context.Context, com *community.Community, hashedUserKey string) (string, error) {
	word, err := padWord(hashedUserKey)
	if err != nil {
		return "", fmt.Errorf("card address: %w", err)
	}
	data := append(Selector("getCardAddress(bytes32)"), word...)

	result, err := c.EthCall(ctx, com.RPCURL, com.CardRegistry, data)
	if err != nil {
		return "", fmt.Errorf("card address: %w", err)
	}
	return wordToAddress(result), nil
}

// IsSafeOwner reports whether owner is in the owner set of the Safe backing
// a card account.
func (c *Client) IsSafeOwner(ctx context.Context, com *community.Community, account, owner string) (bool, error) {
	word, err := padAddress(owner)
	if err != nil {
		return false, fmt.Errorf("safe owner: %w", err)
	}
	data := append(Selector("isOwner(address)"), word...)

	result, err := c.EthCall(ctx, com.RPCURL, account, data)
	if err != nil {
		return false, fmt.Errorf("safe owner: %w", err)
	}
	return !allZero(result), nil
}
