// Package onchain talks to the blockchain side of a community: token
// balances, the card-address directory, ENS resolution, profile lookups, and
// the bundler service that submits operations. Contract reads go through a
// minimal JSON-RPC eth_call client with hand-rolled ABI encoding for the
// handful of fixed-shape calls this bot needs.
package onchain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

const defaultRPCTimeout = 15 * time.Second

// Client is a minimal Ethereum JSON-RPC client. Safe for concurrent use.
type Client struct {
	http *http.Client
}

// NewClient returns a Client with the given HTTP timeout (0 = 15 s default).
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultRPCTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// EthCall performs eth_call against rpcURL with the given contract address
// and call data, returning the raw result bytes.
func (c *Client) EthCall(ctx context.Context, rpcURL, to string, data []byte) ([]byte, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params:  []any{callParams{To: to, Data: "0x" + hex.EncodeToString(data)}, "latest"},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rpc: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rpc: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rpc: read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("rpc: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc: error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var resultHex string
	if err := json.Unmarshal(rpcResp.Result, &resultHex); err != nil {
		return nil, fmt.Errorf("rpc: decode result: %w", err)
	}
	return decodeHex(resultHex)
}

// --- ABI helpers -----------------------------------------------------------

// Keccak256 returns the keccak-256 digest of data.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Selector returns the 4-byte function selector for an ABI signature such as
// "balanceOf(address)".
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// padAddress left-pads a 0x address literal to a 32-byte ABI word.
func padAddress(address string) ([]byte, error) {
	raw, err := decodeHex(address)
	if err != nil || len(raw) != 20 {
		return nil, fmt.Errorf("invalid address literal %q", address)
	}
	word := make([]byte, 32)
	copy(word[12:], raw)
	return word, nil
}

// padWord left-pads a 0x hex literal (at most 32 bytes) to a 32-byte word.
func padWord(hexLiteral string) ([]byte, error) {
	raw, err := decodeHex(hexLiteral)
	if err != nil || len(raw) > 32 {
		return nil, fmt.Errorf("invalid word literal %q", hexLiteral)
	}
	word := make([]byte, 32)
	copy(word[32-len(raw):], raw)
	return word, nil
}

// wordToAddress extracts the trailing 20 bytes of a 32-byte result word as a
// 0x address literal. Returns "" for the zero address.
func wordToAddress(word []byte) string {
	if len(word) < 32 {
		return ""
	}
	addr := word[12:32]
	if allZero(addr) {
		return ""
	}
	return "0x" + hex.EncodeToString(addr)
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// wordToBig interprets a result word as an unsigned integer.
func wordToBig(word []byte) *big.Int {
	return new(big.Int).SetBytes(word)
}
