// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for alidrive. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
// Every option lives in one of four sections.
type Config struct {
	Network   NetworkConfig   `toml:"network"`
	Transfers TransfersConfig `toml:"transfers"`
	Share     ShareConfig     `toml:"share"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NetworkConfig controls API endpoints and HTTP client behavior.
// force_http_11 is useful behind proxies that don't support HTTP/2.
type NetworkConfig struct {
	APIURL         string `toml:"api_url"`
	AuthURL        string `toml:"auth_url"`
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
	ForceHTTP11    bool   `toml:"force_http_11"`
}

// TransfersConfig controls uploads and downloads. part_size is the size of
// each upload part; the service accepts at most 10000 parts per file.
type TransfersConfig struct {
	ParallelTransfers int    `toml:"parallel_transfers"`
	PartSize          string `toml:"part_size"`
	CheckNameMode     string `toml:"check_name_mode"`
}

// ShareConfig holds defaults for share link creation and listing.
// default_expiration is a Go duration; "0" means links never expire.
type ShareConfig struct {
	DefaultExpiration string `toml:"default_expiration"`
	OrderBy           string `toml:"order_by"`
	OrderDirection    string `toml:"order_direction"`
}

// LoggingConfig controls log output behavior: level, format, and rotation.
type LoggingConfig struct {
	LogLevel         string `toml:"log_level"`
	LogFile          string `toml:"log_file"`
	LogFormat        string `toml:"log_format"`
	LogRetentionDays int    `toml:"log_retention_days"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath string // --config flag
	Account    string // --account flag
	LogLevel   string // --log-level flag
}

// Resolved is the result of the override chain: the effective config plus
// the account it applies to.
type Resolved struct {
	Config

	// Path is the config file that was read, or would have been read when
	// no file exists.
	Path string

	// Account names the token file under the data directory.
	Account string

	// RefreshToken comes only from the environment and is used by login.
	RefreshToken string
}

// TokenPath returns the token file for the resolved account.
func (r *Resolved) TokenPath() string {
	return TokenPath(r.Account)
}
