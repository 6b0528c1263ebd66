// Package config provides configuration management for walletd.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	walleterr "github.com/eigenix/walletd/pkg/errors"
)

// Config represents the daemon configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Bitcoin   BitcoinConfig   `yaml:"bitcoin"`
	Monero    MoneroConfig    `yaml:"monero"`
	Authority AuthorityConfig `yaml:"authority"`
	Collector CollectorConfig `yaml:"collector"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig defines the REST/metrics listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BitcoinConfig defines the Bitcoin Core wallet host settings.
type BitcoinConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	CookiePath string `yaml:"cookie_path"`
	WalletName string `yaml:"wallet_name"`
	Rescan     bool   `yaml:"rescan"`
}

// MoneroConfig defines the monero-wallet-rpc host settings.
type MoneroConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	WalletName string `yaml:"wallet_name"`
	Password   string `yaml:"password"`
}

// AuthorityConfig defines the upstream seed authority endpoint.
type AuthorityConfig struct {
	RPCURL string `yaml:"rpc_url"`
}

// CollectorConfig defines the metrics collection loop settings.
type CollectorConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	// Probe failures in a row before a handle is considered unhealthy
	// and reconciliation is retried.
	UnhealthyAfter int `yaml:"unhealthy_after"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file, layered over defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, walleterr.Wrap(walleterr.ErrConfigNotFound, "%s", path)
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, walleterr.Wrap(walleterr.ErrConfigInvalid, "%s", path)
	}

	return cfg, nil
}

// Validate checks that required values are present.
func Validate(cfg *Config) error {
	missing := ""
	switch {
	case cfg.Bitcoin.RPCURL == "":
		missing = "bitcoin.rpc_url"
	case cfg.Bitcoin.WalletName == "":
		missing = "bitcoin.wallet_name"
	case cfg.Monero.RPCURL == "":
		missing = "monero.rpc_url"
	case cfg.Monero.WalletName == "":
		missing = "monero.wallet_name"
	case cfg.Authority.RPCURL == "":
		missing = "authority.rpc_url"
	}
	if missing != "" {
		return walleterr.WithDetails(walleterr.ErrConfigInvalid, map[string]string{
			"missing": missing,
		})
	}
	return nil
}
