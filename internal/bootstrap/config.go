package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// KeyEnvironment selects the znt_test_ or znt_live_ credential prefix.
	KeyEnvironment string

	IDPBaseURL      string
	IDPClientID     string
	IDPClientSecret string
	IDPTokenURL     string
	IDPTimeout      time.Duration

	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	IPGuardRPS   float64
	IPGuardBurst int
}

func LoadConfig() *Config {
	idpBaseURL := getEnv("IDP_BASE_URL", "http://localhost:9000")

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KeyEnvironment: getEnv("KEY_ENVIRONMENT", "live"),

		IDPBaseURL:      idpBaseURL,
		IDPClientID:     getEnv("IDP_CLIENT_ID", ""),
		IDPClientSecret: getEnv("IDP_CLIENT_SECRET", ""),
		IDPTokenURL:     getEnv("IDP_TOKEN_URL", idpBaseURL+"/oauth/token"),
		IDPTimeout:      getEnvDuration("IDP_TIMEOUT", 3*time.Second),

		BreakerFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         getEnvDuration("BREAKER_COOLDOWN", 30*time.Second),

		IPGuardRPS:   getEnvFloat("IP_GUARD_RPS", 20),
		IPGuardBurst: getEnvInt("IP_GUARD_BURST", 40),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
