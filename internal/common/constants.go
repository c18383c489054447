package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvEnvFile        = "ENV_FILE"
	EnvWsURL          = "WS_URL"
	EnvPingInterval   = "PING_INTERVAL"
	EnvReadTimeout    = "READ_TIMEOUT"
	EnvWriteTimeout   = "WRITE_TIMEOUT"
	EnvReadLimit      = "READ_LIMIT"
	EnvReconnect      = "RECONNECT"
	EnvReconnectMin   = "RECONNECT_MIN"
	EnvReconnectMax   = "RECONNECT_MAX"
	EnvMetricsPort    = "METRICS_PORT"
	EnvDataPath       = "DATA_PATH"
	EnvLogLevel       = "LOG_LEVEL"
	EnvHandshakeLimit = "HANDSHAKE_TIMEOUT"
)

// Configuration defaults
const (
	DefaultWsURL            = "ws://localhost:9001/ws"
	DefaultMetricsPort      = 8080
	DefaultReadLimit        = 4 << 20 // 4MB, full snapshots can be large
	DefaultLogLevel         = "info"
	DefaultReconnect        = true
	DefaultPingSeconds      = 15
	DefaultReadTimeoutSecs  = 60
	DefaultWriteTimeoutSecs = 10
	DefaultHandshakeSecs    = 10
	DefaultReconnectMinMs   = 1000
	DefaultReconnectMaxSecs = 30
)

// Validation constants
const (
	MinMetricsPort = 1024
	MaxMetricsPort = 65535
	MinReadLimit   = 1 << 10
	MaxReadLimit   = 64 << 20
)

// Common error messages
const (
	ErrMsgWsURLRequired = "WebSocket URL cannot be empty"
)
