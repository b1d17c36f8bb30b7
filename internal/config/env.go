package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "ALIDRIVE_CONFIG"
	EnvAccount      = "ALIDRIVE_ACCOUNT"
	EnvRefreshToken = "ALIDRIVE_REFRESH_TOKEN"
	EnvDataDir      = "ALIDRIVE_DATA_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // ALIDRIVE_CONFIG: override config file path
	Account      string // ALIDRIVE_ACCOUNT: active account name
	RefreshToken string // ALIDRIVE_REFRESH_TOKEN: token for non-interactive login
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		Account:      os.Getenv(EnvAccount),
		RefreshToken: os.Getenv(EnvRefreshToken),
	}
}
