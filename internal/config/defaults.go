package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and are chosen to work without any
// config file.
const (
	defaultAPIURL            = "https://api.alipan.com"
	defaultAuthURL           = "https://auth.alipan.com/v2/account/token"
	defaultConnectTimeout    = "10s"
	defaultDataTimeout       = "60s"
	defaultParallelTransfers = 4
	defaultPartSize          = "10MiB"
	defaultCheckNameMode     = "auto_rename"
	defaultShareExpiration   = "0"
	defaultShareOrderBy      = "created_at"
	defaultShareOrderDir     = "DESC"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultLogRetentionDays  = 30
	defaultAccount           = "default"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			APIURL:         defaultAPIURL,
			AuthURL:        defaultAuthURL,
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
		},
		Transfers: TransfersConfig{
			ParallelTransfers: defaultParallelTransfers,
			PartSize:          defaultPartSize,
			CheckNameMode:     defaultCheckNameMode,
		},
		Share: ShareConfig{
			DefaultExpiration: defaultShareExpiration,
			OrderBy:           defaultShareOrderBy,
			OrderDirection:    defaultShareOrderDir,
		},
		Logging: LoggingConfig{
			LogLevel:         defaultLogLevel,
			LogFormat:        defaultLogFormat,
			LogRetentionDays: defaultLogRetentionDays,
		},
	}
}
