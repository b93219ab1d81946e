package models

// MConfig Structure
type MConfig struct {
	Name           string         `yaml:"name"`
	Host           string         `yaml:"host"`
	Port           int            `yaml:"port"`
	LogLevel       string         `yaml:"log_level"`
	LogFormat      string         `yaml:"log_format"`
	GrpcHost       string         `yaml:"grpc_host"`
	GrpcPort       int            `yaml:"grpc_port"`
	MetricsAddr    string         `yaml:"metrics_addr"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Storage        MStorageConfig `yaml:"storage"`
	Network        MNetworkConfig `yaml:"network"`
	Binance        MBinanceConfig `yaml:"binance"`
	Relay          MRelayConfig   `yaml:"relay"`
	Pairs          MPairsConfig   `yaml:"pairs"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	DBSchema           string `yaml:"db_schema"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	RetryDelayMs   int      `yaml:"retry_delay_ms"`
	UserAgent      string   `yaml:"user_agent"`
}

type MBinanceConfig struct {
	APIKey                  string `yaml:"api_key"`
	APISecret               string `yaml:"api_secret"`
	WSURL                   string `yaml:"ws_url"`
	RestURL                 string `yaml:"rest_url"`
	Interval                string `yaml:"interval"`
	HandshakeTimeoutSeconds int    `yaml:"handshake_timeout_seconds"`
}

type MRelayConfig struct {
	OpenTimeoutMs        int `yaml:"open_timeout_ms"`
	TerminateTimeoutMs   int `yaml:"terminate_timeout_ms"`
	EventBuffer          int `yaml:"event_buffer"`
	SendBuffer           int `yaml:"send_buffer"`
	MaxSymbolsPerSession int `yaml:"max_symbols_per_session"`
	MaxUpstreamSymbols   int `yaml:"max_upstream_symbols"`
}

type MPairsConfig struct {
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	AvatarURL       string `yaml:"avatar_url"`
}

// -----------------------------------------------------------------------------

// HasCredentials reports whether both Binance credentials are present.
func (b MBinanceConfig) HasCredentials() bool {
	return b.APIKey != "" && b.APISecret != ""
}

// LoggingLevel and LoggingFormat let the logger read its settings without
// importing the config package.
func (c *MConfig) LoggingLevel() string {
	if c == nil {
		return ""
	}
	return c.LogLevel
}

func (c *MConfig) LoggingFormat() string {
	if c == nil {
		return ""
	}
	return c.LogFormat
}
