// Package config loads runtime configuration for the thunder CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or TOML file selected with -c or -config; a .toml
//     extension selects TOML with the same keys.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-v string   path of the encrypted vault file
//	-g int      renewal grace period for a trailing refresh token (milliseconds)
//	-l string   log level: debug, info, warn, error
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "1s" or integer
// nanoseconds. Missing keys keep their defaults.
//
//	{
//	  "vault_path": "/home/me/.config/thunder/config.vault",
//	  "community_base_url": "https://steamcommunity.com",
//	  "http_timeout": "15s",
//	  "renew_grace_period": "1s",
//	  "unlock_burst": 5,
//	  "unlock_interval": "2s",
//	  "log_level": "info",
//	  "backup": {
//	    "bucket": "vaults",
//	    "region": "us-east-1",
//	    "endpoint": "http://127.0.0.1:9000",
//	    "access_key": "minioadmin",
//	    "secret_key": "minioadmin"
//	  }
//	}
//
// Environment variables are not read; the AWS SDK's own credential chain
// still applies to backups when no access key is configured.
package config
