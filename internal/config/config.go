package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures all environment-driven settings for the service.
type Config struct {
	Addr string

	ModelPath    string
	MetadataPath string
	Device       string
	ImageSize    int
	Conf         float64
	IoU          float64
	MaxInflight  int64

	InboundToken     string
	InboundJWTSecret string
	SharedSecret     string

	HTTPTimeout      time.Duration
	PostTimeout      time.Duration
	CallbackMaxRetry int

	RedisAddr   string
	DatabaseDSN string
	S3Enabled   bool

	ShutdownTimeout time.Duration
}

// FromEnv builds the configuration from environment variables, falling back
// to defaults that match a local single-process deployment.
func FromEnv() Config {
	return Config{
		Addr: getEnv("ADDR", ":8080"),

		ModelPath:    getEnv("MODEL_PATH", "best.onnx"),
		MetadataPath: getEnv("MODEL_METADATA", "best.json"),
		Device:       getEnv("DEVICE", "cpu"),
		ImageSize:    getEnvInt("IMGSZ", 640),
		Conf:         getEnvFloat("CONF", 0.25),
		IoU:          getEnvFloat("IOU", 0.45),
		MaxInflight:  int64(getEnvInt("MAX_INFLIGHT", 2)),

		InboundToken:     os.Getenv("INBOUND_TOKEN"),
		InboundJWTSecret: os.Getenv("INBOUND_JWT_SECRET"),
		SharedSecret:     os.Getenv("SHARED_SECRET"),

		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		PostTimeout:      getEnvDuration("POST_TIMEOUT", 60*time.Second),
		CallbackMaxRetry: getEnvInt("CALLBACK_MAX_RETRY", 3),

		RedisAddr:   os.Getenv("REDIS_ADDR"),
		DatabaseDSN: os.Getenv("DATABASE_DSN"),
		S3Enabled:   getEnvBool("S3_ENABLED", true),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return fallback
}
