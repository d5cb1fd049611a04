package config

import (
	"os"
	"strconv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	MediaRoot   string
}

// Load builds Config from environment with sensible defaults. DATABASE_URL is
// a MySQL DSN, or a sqlite:// path for local development. MediaRoot is the
// directory attachments are written under.
func Load() *Config {
	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "sqlite://bboard.db"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		MediaRoot:   getEnv("MEDIA_ROOT", "./media"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
