package feed

import (
	"strconv"
	"time"
)

// State is the lifecycle state of a session's connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Config describes the feed endpoint and connection behavior.
type Config struct {
	URL              string
	PingInterval     time.Duration // 0 disables keep-alive pings
	ReadTimeout      time.Duration // 0 disables read deadlines
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	ReadLimit        int64
	Reconnect        bool
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
}

// DefaultConfig returns the settings of the reference deployment.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://localhost:9001/ws",
		PingInterval:     15 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadLimit:        4 << 20,
		Reconnect:        true,
		ReconnectMin:     time.Second,
		ReconnectMax:     30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = d.ReconnectMin
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = max(c.ReconnectMin, d.ReconnectMax)
	}
	return c
}
