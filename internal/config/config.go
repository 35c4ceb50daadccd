package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// client side
	APIBaseURL         string
	APITimeout         time.Duration
	SessionBackend     string
	SessionFile        string
	RedisAddr          string
	RedisPassword      string
	DemoMode           bool
	DriverPollInterval time.Duration

	// demo API
	Port      string
	DBUrl     string
	JWTSecret string
	RateLimit float64
	RateBurst int

	LogLevel string
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, using defaults")
	}

	return Config{
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:8000"),
		APITimeout:         getDuration("API_TIMEOUT", 10*time.Second),
		SessionBackend:     getEnv("SESSION_BACKEND", "file"),
		SessionFile:        getEnv("SESSION_FILE", defaultSessionFile()),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		DemoMode:           getBool("DEMO_MODE", false),
		DriverPollInterval: getDuration("DRIVER_POLL_INTERVAL", 30*time.Second),
		Port:               getEnv("PORT", "8000"),
		DBUrl:              os.Getenv("DB_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RateLimit:          getFloat("RATE_LIMIT", 10),
		RateBurst:          getInt("RATE_BURST", 20),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tecnoroute-session.json"
	}
	return filepath.Join(home, ".tecnoroute", "session.json")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
