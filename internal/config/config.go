package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DoyleJ11/plinko-sync/internal/transport"
)

type Config struct {
	Environment string
	LogLevel    string

	// Mode is local, host or join.
	Mode string
	// HTTPAddr serves the state feed; empty disables it.
	HTTPAddr       string
	OriginPatterns []string

	ICEServers   []string
	ChannelLabel string
	// HandshakeTimeout bounds waiting for the peer's channel; zero waits forever.
	HandshakeTimeout time.Duration

	DefaultBet int
	TickHz     int
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment:      getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Mode:             getEnv("PLINKO_MODE", "local"),
		HTTPAddr:         getEnv("PLINKO_HTTP_ADDR", ""),
		OriginPatterns:   getEnvList("PLINKO_ORIGIN_PATTERNS", nil),
		ICEServers:       getEnvList("PLINKO_ICE_SERVERS", transport.DefaultICEServers),
		ChannelLabel:     getEnv("PLINKO_CHANNEL_LABEL", "game"),
		HandshakeTimeout: time.Duration(getEnvInt("PLINKO_HANDSHAKE_TIMEOUT", 0)) * time.Second,
		DefaultBet:       max(1, getEnvInt("PLINKO_DEFAULT_BET", 100)),
		TickHz:           getEnvInt("PLINKO_TICK_HZ", 60),
	}
}

// TickInterval is the physics ticker period.
func (c *Config) TickInterval() time.Duration {
	if c.TickHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.TickHz)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
