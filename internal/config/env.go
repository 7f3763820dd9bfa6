package config

import "os"

// Environment variable names for overrides. Credentials are accepted from
// the environment so CI jobs and containers can run without a config file
// on disk.
const (
	EnvConfig       = "STUDIO_GO_CONFIG"
	EnvClientID     = "STUDIO_GO_CLIENT_ID"
	EnvClientSecret = "STUDIO_GO_CLIENT_SECRET"
	EnvRegion       = "STUDIO_GO_REGION"
	EnvTokenFile    = "STUDIO_GO_TOKEN_FILE"
)

// EnvOverrides holds values derived from environment variables.
// These are resolved by ReadEnvOverrides and made available to callers.
type EnvOverrides struct {
	ConfigPath   string // STUDIO_GO_CONFIG: override config file path
	ClientID     string // STUDIO_GO_CLIENT_ID: OAuth2 client id
	ClientSecret string // STUDIO_GO_CLIENT_SECRET: OAuth2 client secret
	Region       string // STUDIO_GO_REGION: Studio region override
	TokenFile    string // STUDIO_GO_TOKEN_FILE: saved-token path override
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		Region:       os.Getenv(EnvRegion),
		TokenFile:    os.Getenv(EnvTokenFile),
	}
}
