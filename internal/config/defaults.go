package config

// Defaults returns the default configuration.
// Endpoint defaults match a single-host deployment with bitcoind,
// monero-wallet-rpc, and the seed authority on localhost.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 1235,
		},
		Bitcoin: BitcoinConfig{
			RPCURL:     "http://127.0.0.1:8332",
			CookiePath: "/var/lib/bitcoind/.cookie",
			WalletName: "eigenix",
			Rescan:     false,
		},
		Monero: MoneroConfig{
			RPCURL:     "http://127.0.0.1:18082/json_rpc",
			WalletName: "eigenix",
			Password:   "",
		},
		Authority: AuthorityConfig{
			RPCURL: "http://127.0.0.1:9944",
		},
		Collector: CollectorConfig{
			IntervalSeconds: 60,
			UnhealthyAfter:  3,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}
