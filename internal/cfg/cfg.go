package cfg

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"dashboard-portfolios/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	WsURL            string
	Ping             time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	ReadLimit        int64
	Reconnect        bool
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	MetricsPort      int // 0 disables the status server
	DataPath         string
	LogLevel         string
}

type ConfigFile struct {
	Feed struct {
		WsURL            string `yaml:"wsURL"`
		PingInterval     string `yaml:"pingInterval"`
		ReadTimeout      string `yaml:"readTimeout"`
		WriteTimeout     string `yaml:"writeTimeout"`
		HandshakeTimeout string `yaml:"handshakeTimeout"`
		ReadLimit        int64  `yaml:"readLimit"`
	} `yaml:"feed"`

	Reconnect struct {
		Enabled *bool  `yaml:"enabled"`
		Min     string `yaml:"min"`
		Max     string `yaml:"max"`
	} `yaml:"reconnect"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort *int   `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads the settings. An optional dotenv file is applied first, then a
// YAML file named by CONFIG_FILE, and environment variables override both.
func Load() (Settings, error) {
	if err := loadDotEnv(); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadDotEnv() error {
	if path := os.Getenv(common.EnvEnvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	// .env in the working directory is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := defaultSettings()
	if config.Reconnect.Enabled != nil {
		defaults.Reconnect = *config.Reconnect.Enabled
	}
	if config.System.MetricsPort != nil {
		defaults.MetricsPort = *config.System.MetricsPort
	}

	settings := Settings{
		WsURL:            getEnvOrDefault(common.EnvWsURL, orString(config.Feed.WsURL, defaults.WsURL)),
		Ping:             getDurationOrDefault(common.EnvPingInterval, parseDurationOr(config.Feed.PingInterval, defaults.Ping)),
		ReadTimeout:      getDurationOrDefault(common.EnvReadTimeout, parseDurationOr(config.Feed.ReadTimeout, defaults.ReadTimeout)),
		WriteTimeout:     getDurationOrDefault(common.EnvWriteTimeout, parseDurationOr(config.Feed.WriteTimeout, defaults.WriteTimeout)),
		HandshakeTimeout: getDurationOrDefault(common.EnvHandshakeLimit, parseDurationOr(config.Feed.HandshakeTimeout, defaults.HandshakeTimeout)),
		ReadLimit:        getInt64OrDefault(common.EnvReadLimit, orInt64(config.Feed.ReadLimit, defaults.ReadLimit)),
		Reconnect:        getBoolOrDefault(common.EnvReconnect, defaults.Reconnect),
		ReconnectMin:     getDurationOrDefault(common.EnvReconnectMin, parseDurationOr(config.Reconnect.Min, defaults.ReconnectMin)),
		ReconnectMax:     getDurationOrDefault(common.EnvReconnectMax, parseDurationOr(config.Reconnect.Max, defaults.ReconnectMax)),
		MetricsPort:      getIntOrDefault(common.EnvMetricsPort, defaults.MetricsPort),
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, defaults.LogLevel)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	d := defaultSettings()
	settings := Settings{
		WsURL:            getEnvOrDefault(common.EnvWsURL, d.WsURL),
		Ping:             getDurationOrDefault(common.EnvPingInterval, d.Ping),
		ReadTimeout:      getDurationOrDefault(common.EnvReadTimeout, d.ReadTimeout),
		WriteTimeout:     getDurationOrDefault(common.EnvWriteTimeout, d.WriteTimeout),
		HandshakeTimeout: getDurationOrDefault(common.EnvHandshakeLimit, d.HandshakeTimeout),
		ReadLimit:        getInt64OrDefault(common.EnvReadLimit, d.ReadLimit),
		Reconnect:        getBoolOrDefault(common.EnvReconnect, d.Reconnect),
		ReconnectMin:     getDurationOrDefault(common.EnvReconnectMin, d.ReconnectMin),
		ReconnectMax:     getDurationOrDefault(common.EnvReconnectMax, d.ReconnectMax),
		MetricsPort:      getIntOrDefault(common.EnvMetricsPort, d.MetricsPort),
		DataPath:         os.Getenv(common.EnvDataPath), // optional
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, d.LogLevel),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func defaultSettings() Settings {
	return Settings{
		WsURL:            common.DefaultWsURL,
		Ping:             common.DefaultPingSeconds * time.Second,
		ReadTimeout:      common.DefaultReadTimeoutSecs * time.Second,
		WriteTimeout:     common.DefaultWriteTimeoutSecs * time.Second,
		HandshakeTimeout: common.DefaultHandshakeSecs * time.Second,
		ReadLimit:        common.DefaultReadLimit,
		Reconnect:        common.DefaultReconnect,
		ReconnectMin:     common.DefaultReconnectMinMs * time.Millisecond,
		ReconnectMax:     common.DefaultReconnectMaxSecs * time.Second,
		MetricsPort:      common.DefaultMetricsPort,
		LogLevel:         common.DefaultLogLevel,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDurationOr(v string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultValue
}

func orString(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func orInt64(v, defaultValue int64) int64 {
	if v != 0 {
		return v
	}
	return defaultValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.WsURL == "" {
		return errors.New(common.ErrMsgWsURLRequired)
	}
	u, err := url.Parse(settings.WsURL)
	if err != nil {
		return fmt.Errorf("invalid WebSocket URL %q: %w", settings.WsURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("WebSocket URL must use ws or wss scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("WebSocket URL %q has no host", settings.WsURL)
	}

	if settings.Ping < time.Second || settings.Ping > 5*time.Minute {
		return fmt.Errorf("ping interval must be between 1s and 5m, got %v", settings.Ping)
	}
	if settings.ReadTimeout <= settings.Ping {
		return fmt.Errorf("read timeout (%v) must exceed ping interval (%v)", settings.ReadTimeout, settings.Ping)
	}
	if settings.WriteTimeout < 100*time.Millisecond || settings.WriteTimeout > time.Minute {
		return fmt.Errorf("write timeout must be between 100ms and 1m, got %v", settings.WriteTimeout)
	}
	if settings.HandshakeTimeout < 100*time.Millisecond || settings.HandshakeTimeout > time.Minute {
		return fmt.Errorf("handshake timeout must be between 100ms and 1m, got %v", settings.HandshakeTimeout)
	}
	if settings.ReadLimit < common.MinReadLimit || settings.ReadLimit > common.MaxReadLimit {
		return fmt.Errorf("read limit must be between %d and %d bytes, got %d", common.MinReadLimit, common.MaxReadLimit, settings.ReadLimit)
	}

	if settings.ReconnectMin < 10*time.Millisecond {
		return fmt.Errorf("minimum reconnect backoff must be at least 10ms, got %v", settings.ReconnectMin)
	}
	if settings.ReconnectMax < settings.ReconnectMin || settings.ReconnectMax > 10*time.Minute {
		return fmt.Errorf("maximum reconnect backoff must be between %v and 10m, got %v", settings.ReconnectMin, settings.ReconnectMax)
	}

	if settings.MetricsPort != 0 && (settings.MetricsPort < common.MinMetricsPort || settings.MetricsPort > common.MaxMetricsPort) {
		return fmt.Errorf("metrics port must be 0 or between %d and %d, got %d", common.MinMetricsPort, common.MaxMetricsPort, settings.MetricsPort)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}
