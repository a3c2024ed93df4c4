package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	Port          string
	LogLevel      string
	LogFormat     string
	SessionSecret string

	// HeartbeatInterval is how long a stream may idle before a heartbeat
	// frame is injected.
	HeartbeatInterval time.Duration

	// Stream connection limits.
	MaxConnections      int64
	MaxConnectionsPerIP int
	ConnectionRate      float64
	ConnectionBurst     int
}

func Load() (*Config, error) {
	// A missing .env file is fine; real env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		SessionSecret: getEnv("SESSION_SECRET", ""),
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	heartbeat, err := getDuration("HEARTBEAT_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}
	if heartbeat <= 0 {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	cfg.HeartbeatInterval = heartbeat

	maxConns, err := getInt64("MAX_CONNECTIONS", 10000)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnections = maxConns

	maxPerIP, err := getInt("MAX_CONNECTIONS_PER_IP", 50)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnectionsPerIP = maxPerIP

	connRate, err := getFloat("CONNECTION_RATE", 10)
	if err != nil {
		return nil, err
	}
	cfg.ConnectionRate = connRate

	connBurst, err := getInt("CONNECTION_BURST", 20)
	if err != nil {
		return nil, err
	}
	cfg.ConnectionBurst = connBurst

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 15s): %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
