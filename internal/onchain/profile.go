package onchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"communibot/internal/community"
	"communibot/internal/resolve"
)

// Profile fetches the display profile for an address from the community's
// IPFS gateway. Profiles are keyed by lowercased address. A community without
// a configured gateway, a 404, or an unreachable gateway all degrade to a nil
// profile; enrichment is strictly best effort.
//
// Implements resolve.ProfileDirectory.
func (c *Client) Profile(ctx context.Context, com *community.Community, address string) (*resolve.Profile, error) {
	if com.IPFSGateway == "" {
		return nil, nil
	}

	url := fmt.Sprintf("%s/profiles/%s.json",
		strings.TrimRight(com.IPFSGateway, "/"), strings.ToLower(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("profile: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var p resolve.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	return &p, nil
}
