package onchain

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"communibot/internal/community"
)

// BalanceOf returns the token balance of account in the token's smallest
// unit. An account the chain has never seen reads as zero.
func (c *Client) BalanceOf(ctx context.Context, com *community.Community, account string) (*big.Int, error) {
	word, err := padAddress(account)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	data := append(Selector("balanceOf(address)"), word...)

	result, err := c.EthCall(ctx, com.RPCURL, com.Token.Address, data)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	return wordToBig(result), nil
}

// ParseUnits converts a decimal amount to the token's fixed-point integer
// representation. The amount is rendered as its shortest round-tripping
// decimal first and excess fraction digits are cut off, so precision beyond
// the token's decimals truncates rather than rounds.
func ParseUnits(amount float64, decimals int) *big.Int {
	s := strconv.FormatFloat(amount, 'f', -1, 64)
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	for len(frac) < decimals {
		frac += "0"
	}
	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

// FormatUnits renders a fixed-point integer amount as a decimal string,
// trimming trailing fraction zeros.
func FormatUnits(amount *big.Int, decimals int) string {
	if decimals == 0 {
		return amount.String()
	}
	s := amount.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) <= decimals {
		s = "0" + s
	}
	whole, frac := s[:len(s)-decimals], s[len(s)-decimals:]
	frac = strings.TrimRight(frac, "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
