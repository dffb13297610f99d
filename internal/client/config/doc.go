// Package config loads settings for the authgate command-line client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Environment: AUTHGATE_SERVER_URL, AUTHGATE_LOGIN, AUTHGATE_CLIENT_TIMEOUT.
//
// Command-line flags of the CLI override all of the above.
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "login": "alice",
//	  "timeout": "10s"
//	}
package config
