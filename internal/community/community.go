// Package community provides the static catalog of configured token
// communities. The catalog is loaded once at startup, schema-validated, and
// immutable for the process lifetime.
package community

import "fmt"

// Token describes a community's primary fungible token.
type Token struct {
	Standard string `yaml:"standard" json:"standard"`
	Address  string `yaml:"address" json:"address"`
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals int    `yaml:"decimals" json:"decimals"`
}

// Community is one configured token community. Alias is the unique key used
// by every command and by the task classifier.
type Community struct {
	Alias           string `yaml:"alias" json:"alias"`
	Name            string `yaml:"name" json:"name"`
	ChainID         int64  `yaml:"chain_id" json:"chain_id"`
	RPCURL          string `yaml:"rpc_url" json:"rpc_url"`
	Token           Token  `yaml:"token" json:"token"`
	CardRegistry    string `yaml:"card_registry" json:"card_registry"`
	AccountFactory  string `yaml:"account_factory,omitempty" json:"account_factory,omitempty"`
	ProfileRegistry string `yaml:"profile_registry,omitempty" json:"profile_registry,omitempty"`
	BundlerURL      string `yaml:"bundler_url" json:"bundler_url"`
	ExplorerURL     string `yaml:"explorer_url" json:"explorer_url"`
	IPFSGateway     string `yaml:"ipfs_gateway,omitempty" json:"ipfs_gateway,omitempty"`
}

// TxURL returns the explorer link for a transaction hash.
func (c *Community) TxURL(hash string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", c.ExplorerURL, hash)
}
