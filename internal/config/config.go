package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matheuscscp/jwks-fixture/internal/constants"
)

const (
	EnvConfigFile = "JWKS_FIXTURE_CONFIG"

	defaultConfigFile = "/etc/jwks-fixture/config/config.yaml"

	defaultServerAddr      = ":8080"
	defaultKeySize         = 2048
	defaultValidKeyTTL     = time.Hour
	defaultExpiredKeyTTL   = -time.Hour
	defaultExpiredTokenAge = 24 * time.Hour

	minKeySize = 2048
)

type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Keys   KeysConfig   `yaml:"keys" json:"keys"`
	Tokens TokensConfig `yaml:"tokens" json:"tokens"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	CORS bool   `yaml:"cors" json:"cors"`
}

// KeysConfig controls the keys the store generates on demand.
type KeysConfig struct {
	Size       int           `yaml:"size" json:"size"`
	ValidTTL   time.Duration `yaml:"validTTL" json:"validTTL"`
	ExpiredTTL time.Duration `yaml:"expiredTTL" json:"expiredTTL"`
	// Prime generates a valid key at startup so the discovery document is
	// never empty on a fresh server.
	Prime bool `yaml:"prime" json:"prime"`
}

type TokensConfig struct {
	Subject string `yaml:"subject" json:"subject"`
	// ExpiredTokenAge is how long before issuance an expired token's exp lies.
	ExpiredTokenAge time.Duration `yaml:"expiredTokenAge" json:"expiredTokenAge"`
}

// Load reads the config file named by fileName, or by JWKS_FIXTURE_CONFIG when
// fileName is empty. A missing default file yields the default config.
func Load(fileName string) (*Config, error) {
	explicit := true
	if fileName == "" {
		fileName = os.Getenv(EnvConfigFile)
	}
	if fileName == "" {
		fileName = defaultConfigFile
		explicit = false
	}
	var cfg Config
	f, err := os.Open(fileName)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode config file '%s': %w", fileName, err)
		}
	case !explicit && errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	if err := cfg.ValidateAndInitialize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ValidateAndInitialize() error {
	// Apply defaults.
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.Keys.Size == 0 {
		c.Keys.Size = defaultKeySize
	}
	if c.Keys.ValidTTL == 0 {
		c.Keys.ValidTTL = defaultValidKeyTTL
	}
	if c.Keys.ExpiredTTL == 0 {
		c.Keys.ExpiredTTL = defaultExpiredKeyTTL
	}
	if c.Tokens.Subject == "" {
		c.Tokens.Subject = constants.TokenSubject
	}
	if c.Tokens.ExpiredTokenAge == 0 {
		c.Tokens.ExpiredTokenAge = defaultExpiredTokenAge
	}

	// Validate.
	if c.Keys.Size < minKeySize {
		return fmt.Errorf("keys.size must be at least %d, got %d", minKeySize, c.Keys.Size)
	}
	if c.Keys.ValidTTL < 0 {
		return fmt.Errorf("keys.validTTL must be positive, got %s", c.Keys.ValidTTL)
	}
	if c.Keys.ExpiredTTL > 0 {
		return fmt.Errorf("keys.expiredTTL must not be positive, got %s", c.Keys.ExpiredTTL)
	}
	if c.Tokens.ExpiredTokenAge < 0 {
		return fmt.Errorf("tokens.expiredTokenAge must be positive, got %s", c.Tokens.ExpiredTokenAge)
	}

	return nil
}
