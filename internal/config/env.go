package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvBitcoinRPCURL     = "WALLETD_BITCOIN_RPC_URL"
	EnvBitcoinCookiePath = "WALLETD_BITCOIN_COOKIE_PATH"
	EnvBitcoinWallet     = "WALLETD_BITCOIN_WALLET"
	EnvMoneroRPCURL      = "WALLETD_MONERO_RPC_URL"
	EnvMoneroWallet      = "WALLETD_MONERO_WALLET"
	EnvMoneroPassword    = "WALLETD_MONERO_PASSWORD" // #nosec G101 -- const name, not a credential
	EnvAuthorityRPCURL   = "WALLETD_AUTHORITY_RPC_URL"
	EnvServerHost        = "WALLETD_HOST"
	EnvServerPort        = "WALLETD_PORT"
	EnvLogLevel          = "WALLETD_LOG_LEVEL"
	EnvLogFile           = "WALLETD_LOG_FILE"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvBitcoinRPCURL); v != "" {
		cfg.Bitcoin.RPCURL = v
	}

	if v := os.Getenv(EnvBitcoinCookiePath); v != "" {
		cfg.Bitcoin.CookiePath = v
	}

	if v := os.Getenv(EnvBitcoinWallet); v != "" {
		cfg.Bitcoin.WalletName = v
	}

	if v := os.Getenv(EnvMoneroRPCURL); v != "" {
		cfg.Monero.RPCURL = v
	}

	if v := os.Getenv(EnvMoneroWallet); v != "" {
		cfg.Monero.WalletName = v
	}

	if v := os.Getenv(EnvMoneroPassword); v != "" {
		cfg.Monero.Password = v
	}

	if v := os.Getenv(EnvAuthorityRPCURL); v != "" {
		cfg.Authority.RPCURL = v
	}

	if v := os.Getenv(EnvServerHost); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}
