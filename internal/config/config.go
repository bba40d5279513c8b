// Package config loads bot configuration from a YAML file layered with
// COMMUNIBOT_* environment variables. Secrets (the Matrix access token, the
// oracle API key, the signing key) are expected from the environment and
// never belong in the file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Matrix   MatrixConfig  `koanf:"matrix"`
	Oracle   OracleConfig  `koanf:"oracle"`
	Catalog  CatalogConfig `koanf:"catalog"`
	Database string        `koanf:"database"`
	Signer   SignerConfig  `koanf:"signer"`
	Commands CommandConfig `koanf:"commands"`
	Signup   SignupConfig  `koanf:"signup"`
}

type MatrixConfig struct {
	Homeserver  string `koanf:"homeserver"`
	UserID      string `koanf:"user_id"`
	AccessToken string `koanf:"access_token"`
	// UserTemplate formats bridged platform user IDs into Matrix user IDs.
	UserTemplate string `koanf:"user_template"`
}

type OracleConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

type CatalogConfig struct {
	Path string `koanf:"path"`
	// NameRPCURL is the endpoint used for ENS resolution of domain-name
	// recipients. Domain recipients fail when unset.
	NameRPCURL string `koanf:"name_rpc_url"`
}

type SignerConfig struct {
	Key string `koanf:"key"`
}

type SignupConfig struct {
	// WebhookURL receives onboarding requests. Signup is disabled when empty.
	WebhookURL string `koanf:"webhook_url"`
	// InviteURL is an optional link included in the confirmation sent to the
	// requester.
	InviteURL string `koanf:"invite_url"`
}

type CommandConfig struct {
	Prefix string `koanf:"prefix"`
	// Managers are Matrix user IDs allowed to mint and burn.
	Managers       []string      `koanf:"managers"`
	ConfirmTimeout time.Duration `koanf:"confirm_timeout"`
}

const envPrefix = "COMMUNIBOT_"

// Load reads the config file at path, then overlays environment variables.
// COMMUNIBOT_MATRIX_ACCESS_TOKEN maps to matrix.access_token and so on.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "communibot.db"
	}
	if c.Commands.Prefix == "" {
		c.Commands.Prefix = "!cb"
	}
	if c.Commands.ConfirmTimeout == 0 {
		c.Commands.ConfirmTimeout = 15 * time.Second
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.Matrix.Homeserver == "" {
		missing = append(missing, "matrix.homeserver")
	}
	if c.Matrix.UserID == "" {
		missing = append(missing, "matrix.user_id")
	}
	if c.Matrix.AccessToken == "" {
		missing = append(missing, "matrix.access_token")
	}
	if c.Catalog.Path == "" {
		missing = append(missing, "catalog.path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
