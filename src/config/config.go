package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"kline-relay/src/helpers"
	"kline-relay/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file.
const (
	EnvBinanceKey    = "BINANCE_API_KEY"
	EnvBinanceSecret = "BINANCE_API_SECRET"
	EnvPort          = "RELAY_PORT"
	EnvLogLevel      = "RELAY_LOG_LEVEL"
)

// Binance kline intervals accepted by the stream API.
var validIntervals = map[string]struct{}{
	"1s": {}, "1m": {}, "3m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "2h": {}, "4h": {}, "6h": {}, "8h": {}, "12h": {},
	"1d": {}, "3d": {}, "1w": {}, "1M": {},
}

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file, a best-effort
// .env file and the process environment, in that order of precedence.
func NewConfig(configPath string, envFiles ...string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	// 3. Credentials usually live in .env, never in the YAML file
	loadDotEnv(envFiles...)
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func loadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "kline-relay"
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 3041
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.GrpcHost == "" {
		c.GrpcHost = "127.0.0.1"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}
	if c.Network.RetryDelayMs == 0 {
		c.Network.RetryDelayMs = 500
	}
	if c.Binance.WSURL == "" {
		c.Binance.WSURL = "wss://stream.binance.com:9443"
	}
	if c.Binance.RestURL == "" {
		c.Binance.RestURL = "https://api.binance.com"
	}
	if c.Binance.Interval == "" {
		c.Binance.Interval = "1m"
	}
	if c.Binance.HandshakeTimeoutSeconds == 0 {
		c.Binance.HandshakeTimeoutSeconds = 10
	}
	if c.Relay.OpenTimeoutMs == 0 {
		c.Relay.OpenTimeoutMs = 10000
	}
	if c.Relay.TerminateTimeoutMs == 0 {
		c.Relay.TerminateTimeoutMs = 5000
	}
	if c.Relay.EventBuffer == 0 {
		c.Relay.EventBuffer = 1024
	}
	if c.Relay.SendBuffer == 0 {
		c.Relay.SendBuffer = 256
	}
	if c.Relay.MaxUpstreamSymbols == 0 {
		c.Relay.MaxUpstreamSymbols = 1024
	}
	if c.Pairs.CacheTTLSeconds == 0 {
		c.Pairs.CacheTTLSeconds = 3600
	}
	if c.Pairs.AvatarURL == "" {
		c.Pairs.AvatarURL = "https://dummyimage.com/320x320/000/fff.png&text=%s"
	}
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides file values with environment variables when set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvBinanceKey); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv(EnvBinanceSecret); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return helpers.NewConfigurationError(fmt.Sprintf("invalid %s '%s'", EnvPort, v), err)
		}
		c.Port = port
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format: %s", c.LogFormat)
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort < 0 || c.GrpcPort > 65535 {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.RetryDelayMs < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	// Binance
	if _, ok := validIntervals[c.Binance.Interval]; !ok {
		return fmt.Errorf("unsupported kline interval: %s", c.Binance.Interval)
	}
	if !strings.HasPrefix(c.Binance.WSURL, "ws://") && !strings.HasPrefix(c.Binance.WSURL, "wss://") {
		return fmt.Errorf("binance ws_url must use ws:// or wss://: %s", c.Binance.WSURL)
	}
	if !strings.HasPrefix(c.Binance.RestURL, "http://") && !strings.HasPrefix(c.Binance.RestURL, "https://") {
		return fmt.Errorf("binance rest_url must use http:// or https://: %s", c.Binance.RestURL)
	}

	// Relay
	if c.Relay.OpenTimeoutMs <= 0 || c.Relay.TerminateTimeoutMs <= 0 {
		return fmt.Errorf("relay timeouts must be greater than 0")
	}
	if c.Relay.EventBuffer <= 0 || c.Relay.SendBuffer <= 0 {
		return fmt.Errorf("relay buffers must be greater than 0")
	}
	if c.Relay.MaxSymbolsPerSession < 0 {
		return fmt.Errorf("max symbols per session cannot be negative")
	}
	if c.Relay.MaxUpstreamSymbols < 0 {
		return fmt.Errorf("max upstream symbols cannot be negative")
	}

	// Pairs
	if c.Pairs.CacheTTLSeconds < 0 {
		return fmt.Errorf("pairs cache ttl cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path.
// Credentials are never written back.
func (c *Config) Save(configPath string) error {
	clean := *c.MConfig
	clean.Binance.APIKey = ""
	clean.Binance.APISecret = ""

	data, err := yaml.Marshal(&clean)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
