package onchain

import (
	"context"
	"fmt"
	"strings"
)

// ensRegistry is the canonical ENS registry address, identical on mainnet and
// every network that deploys the standard registry.
const ensRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

// Namehash computes the EIP-137 hash of a domain name.
func Namehash(name string) []byte {
	node := make([]byte, 32)
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := Keccak256([]byte(labels[i]))
		node = Keccak256(append(node, labelHash...))
	}
	return node
}

// ResolveName resolves a domain name to an address via the ENS registry on
// rpcURL. Returns "" when the name has no resolver or the resolver has no
// address record.
//
// Implements resolve.NameService.
func (c *Client) ResolveName(ctx context.Context, rpcURL, domain string) (string, error) {
	node := Namehash(strings.ToLower(domain))

	// Registry: resolver(bytes32) -> address
	data := append(Selector("resolver(bytes32)"), node...)
	result, err := c.EthCall(ctx, rpcURL, ensRegistry, data)
	if err != nil {
		return "", fmt.Errorf("ens: resolver lookup: %w", err)
	}
	resolver := wordToAddress(result)
	if resolver == "" {
		return "", nil
	}

	// Resolver: addr(bytes32) -> address
	data = append(Selector("addr(bytes32)"), node...)
	result, err = c.EthCall(ctx, rpcURL, resolver, data)
	if err != nil {
		return "", fmt.Errorf("ens: addr lookup: %w", err)
	}
	return wordToAddress(result), nil
}
